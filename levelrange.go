// levelrange.go — depth ranges a map may be placed in.
//
// A level range is written as "[!]branch:low[-high]", "low[-high]" or a bare
// depth. The leading "!" denies the range instead of allowing it. A map's
// depth list is the ordered union of its ranges; the map is usable at a spot
// when some non-deny range matches it and no deny range does.
package mapdef

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultBranch is assumed when a range names no branch.
const DefaultBranch = "D"

// LevelRange is one [shallowest, deepest] span within a branch.
type LevelRange struct {
	Branch              string
	Shallowest, Deepest int
	Deny                bool
}

// ParseLevelRange parses a single range fragment.
func ParseLevelRange(s string) (LevelRange, error) {
	lr := LevelRange{Branch: DefaultBranch, Shallowest: 1, Deepest: 1}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "!") {
		lr.Deny = true
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return lr, parseErr("depth", s)
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		br := strings.TrimSpace(s[:i])
		if br == "" {
			return lr, parseErr("depth", s)
		}
		lr.Branch = br
		s = strings.TrimSpace(s[i+1:])
	}
	low, high, err := parseDepthSpan(s)
	if err != nil {
		return lr, err
	}
	lr.Shallowest, lr.Deepest = low, high
	return lr, nil
}

func parseDepthSpan(s string) (low, high int, err error) {
	if s == "*" {
		return 1, maxDepth, nil
	}
	parts := strings.SplitN(s, "-", 2)
	low, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || low < 1 {
		return 0, 0, parseErr("depth", s)
	}
	high = low
	if len(parts) == 2 {
		hs := strings.TrimSpace(parts[1])
		if hs == "" || hs == "*" {
			high = maxDepth
		} else {
			high, err = strconv.Atoi(hs)
			if err != nil {
				return 0, 0, parseErr("depth", s)
			}
		}
	}
	if high < low {
		return 0, 0, fmt.Errorf("inverted depth range: %q", s)
	}
	return low, high, nil
}

// maxDepth bounds open-ended ranges like "8-".
const maxDepth = 50

// ParseDepthRanges parses a comma-separated list of range fragments. Each
// fragment is parsed independently; the first bad fragment aborts the list.
func ParseDepthRanges(s string) ([]LevelRange, error) {
	var out []LevelRange
	for _, frag := range strings.Split(s, ",") {
		frag = strings.TrimSpace(frag)
		if frag == "" {
			continue
		}
		lr, err := ParseLevelRange(frag)
		if err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, nil
}

// Matches reports whether the range covers the given spot.
func (lr LevelRange) Matches(id LevelID) bool {
	return lr.Branch == id.Branch &&
		id.Depth >= lr.Shallowest && id.Depth <= lr.Deepest
}

// MatchesDepth reports whether the range covers a bare depth, ignoring the
// branch. Useful for branch-agnostic queries.
func (lr LevelRange) MatchesDepth(depth int) bool {
	return depth >= lr.Shallowest && depth <= lr.Deepest
}

// Valid reports whether the range denotes at least one level.
func (lr LevelRange) Valid() bool {
	return lr.Shallowest > 0 && lr.Deepest >= lr.Shallowest
}

// Span is the number of levels the range covers.
func (lr LevelRange) Span() int {
	if !lr.Valid() {
		return 0
	}
	return lr.Deepest - lr.Shallowest + 1
}

func (lr LevelRange) String() string {
	var b strings.Builder
	if lr.Deny {
		b.WriteByte('!')
	}
	b.WriteString(lr.Branch)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(lr.Shallowest))
	if lr.Deepest != lr.Shallowest {
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(lr.Deepest))
	}
	return b.String()
}

// DepthRangesMatch applies the allow/deny semantics of a whole range list.
func DepthRangesMatch(ranges []LevelRange, id LevelID) bool {
	allowed := false
	for _, lr := range ranges {
		if !lr.Matches(id) {
			continue
		}
		if lr.Deny {
			return false
		}
		allowed = true
	}
	return allowed
}

func depthRangesString(ranges []LevelRange) string {
	parts := make([]string, 0, len(ranges))
	for _, lr := range ranges {
		parts = append(parts, lr.String())
	}
	return strings.Join(parts, ", ")
}

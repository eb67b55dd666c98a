// mons.go — the monster placement-spec grammar.
//
// A MONS spec is a list of weighted alternatives separated by '/'. Each
// alternative is a monster name with optional qualifiers:
//
//	w:<n>            selection weight (default 10)
//	(<n>)            trailing secondary parameter: hydra head count, or
//	                 any monster-specific numeric tag
//	zombie <name>    leading qualifier sub-grammars: the alternative is a
//	skeleton <name>  derived monster wrapping the base monster <name>
//	simulacrum <name>
//	spectre <name>
//	generate_awake   the monster starts awake
//	fix:<spec>       freeze marker on the whole spec: the slot resolves
//	                 once and reuses the pick for this definition instance
//
// Names resolve through the MonsterLookup collaborator; an unresolved name
// is a parse error carrying the offending token. Re-setting a populated
// slot index replaces its alternatives outright.
package mapdef

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Sentinel monster ids understood by placement code outside this package.
const (
	RandomMonster = -1
	NoMonster     = -2
)

// MonsSpec is one monster placement descriptor.
type MonsSpec struct {
	ID     int // monster id, RandomMonster or NoMonster
	Num    int // base monster for derived kinds, or head count
	Weight int
	Awake  bool
}

// derived monster qualifiers, each itself a monster the lookup must know
var derivedQualifiers = []string{"zombie", "skeleton", "simulacrum", "spectre"}

// MonsList is an ordered sequence of monster slots, one per numeric map
// glyph, each independently fixed or not.
type MonsList struct {
	lookup MonsterLookup
	slots  []*monsSlot
}

type monsSlot struct {
	Slot[MonsSpec]
	raw string
}

// NewMonsList builds an empty list resolving names through lookup.
func NewMonsList(lookup MonsterLookup) *MonsList {
	return &MonsList{lookup: lookup}
}

// Size is the number of populated slots.
func (ml *MonsList) Size() int { return len(ml.slots) }

// Clear drops every slot.
func (ml *MonsList) Clear() { ml.slots = nil }

// AddMons parses spec and appends a new slot. fixSlot freezes the slot even
// without the textual fix: marker.
func (ml *MonsList) AddMons(spec string, fixSlot bool) error {
	slot, err := ml.parseSpec(spec, fixSlot)
	if err != nil {
		return err
	}
	ml.slots = append(ml.slots, slot)
	return nil
}

// SetMons replaces slot i outright (no merge). i may be one past the end,
// which appends.
func (ml *MonsList) SetMons(i int, spec string) error {
	if i < 0 || i > len(ml.slots) {
		return fmt.Errorf("monster slot %d out of range (have %d)", i, len(ml.slots))
	}
	slot, err := ml.parseSpec(spec, false)
	if err != nil {
		return err
	}
	if i == len(ml.slots) {
		ml.slots = append(ml.slots, slot)
	} else {
		ml.slots[i] = slot
	}
	return nil
}

// GetMonster picks from slot i, honoring a frozen slot's memoized choice.
// Using an index that cannot exist is a programming error.
func (ml *MonsList) GetMonster(i int, rng *rand.Rand) MonsSpec {
	if i < 0 || i >= len(ml.slots) {
		panic(fmt.Sprintf("mapdef: monster slot %d out of range (have %d)", i, len(ml.slots)))
	}
	spec, ok := ml.slots[i].Pick(rng)
	if !ok {
		return MonsSpec{ID: RandomMonster, Weight: 10}
	}
	return spec
}

// RawSpecs returns the literal spec text per slot, for persistence.
func (ml *MonsList) RawSpecs() []string {
	out := make([]string, len(ml.slots))
	for i, s := range ml.slots {
		out[i] = s.raw
	}
	return out
}

// FixFlags returns each slot's freeze flag, index-aligned with RawSpecs.
func (ml *MonsList) FixFlags() []bool {
	out := make([]bool, len(ml.slots))
	for i, s := range ml.slots {
		out[i] = s.Fix
	}
	return out
}

// Copy returns a deep copy with every memoized pick discarded.
func (ml *MonsList) Copy() *MonsList {
	out := &MonsList{lookup: ml.lookup}
	for _, s := range ml.slots {
		ns := &monsSlot{Slot: s.Slot.Copy(), raw: s.raw}
		out.slots = append(out.slots, ns)
	}
	return out
}

func (ml *MonsList) parseSpec(spec string, fixSlot bool) (*monsSlot, error) {
	raw := spec
	s := strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(s, "fix:"); ok {
		fixSlot = true
		s = strings.TrimSpace(rest)
	}
	slot := &monsSlot{raw: raw}
	slot.Fix = fixSlot
	for _, alt := range strings.Split(s, "/") {
		ms, err := ml.parseOne(alt)
		if err != nil {
			return nil, err
		}
		slot.Alts = append(slot.Alts, Weighted[MonsSpec]{Value: ms, Weight: ms.Weight})
	}
	if len(slot.Alts) == 0 {
		return nil, parseErr("monster", spec)
	}
	return slot, nil
}

func (ml *MonsList) parseOne(frag string) (MonsSpec, error) {
	ms := MonsSpec{ID: RandomMonster, Weight: 10}
	s := strings.TrimSpace(frag)

	var found bool
	if s, found = stripTag(s, "generate_awake"); found {
		ms.Awake = true
	}
	w, s, err := stripWeight(s, 10)
	if err != nil {
		return ms, err
	}
	ms.Weight = w

	s, num, hasNum, err := stripParenNumber(s)
	if err != nil {
		return ms, parseErr("monster", frag)
	}
	if hasNum {
		ms.Num = num
	}

	switch s {
	case "":
		return ms, parseErr("monster", frag)
	case "random", "any":
		return ms, nil
	case "nothing":
		ms.ID = NoMonster
		return ms, nil
	}

	// Derived-monster sub-grammar: "<qualifier> <base name>".
	for _, q := range derivedQualifiers {
		base, ok := strings.CutPrefix(s, q+" ")
		if !ok {
			continue
		}
		qid, ok := ml.lookup.MonsterByName(q)
		if !ok {
			return ms, fmt.Errorf("unknown monster: %q", q)
		}
		bid, ok := ml.lookup.MonsterByName(strings.TrimSpace(base))
		if !ok {
			return ms, fmt.Errorf("unknown monster: %q", strings.TrimSpace(base))
		}
		ms.ID = qid
		ms.Num = bid
		return ms, nil
	}

	id, ok := ml.lookup.MonsterByName(s)
	if !ok {
		return ms, fmt.Errorf("unknown monster: %q", s)
	}
	ms.ID = id
	return ms, nil
}

// --- spec-token helpers shared by the placement grammars ---

// stripTag removes a bare word token from s, reporting whether it was
// present.
func stripTag(s, tag string) (string, bool) {
	fields := strings.Fields(s)
	out := fields[:0]
	found := false
	for _, f := range fields {
		if f == tag {
			found = true
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " "), found
}

// stripWeight removes a "w:<n>" token, returning the declared or default
// weight.
func stripWeight(s string, def int) (int, string, error) {
	fields := strings.Fields(s)
	out := fields[:0]
	w := def
	for _, f := range fields {
		if rest, ok := strings.CutPrefix(f, "w:"); ok {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return 0, "", parseErr("weight", f)
			}
			w = n
			continue
		}
		out = append(out, f)
	}
	return w, strings.Join(out, " "), nil
}

// stripParenNumber removes a trailing "(<n>)" secondary parameter.
func stripParenNumber(s string) (rest string, n int, ok bool, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ")") {
		return s, 0, false, nil
	}
	open := strings.LastIndexByte(s, '(')
	if open < 0 {
		return s, 0, false, fmt.Errorf("unbalanced parens: %q", s)
	}
	n, err = strconv.Atoi(strings.TrimSpace(s[open+1 : len(s)-1]))
	if err != nil {
		return s, 0, false, err
	}
	return strings.TrimSpace(s[:open]), n, true, nil
}

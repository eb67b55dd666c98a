// grid.go — the glyph-grid transform engine.
//
// OVERVIEW
// ========
// MapLines stores a map's rectangular glyph grid as an ordered list of text
// rows plus an ordered queue of pending transforms. Two transform kinds
// exist, fixed by the grammar, so they are modeled as a closed tagged
// variant rather than an open hierarchy:
//
//   - shuffle — permute a declared set of glyphs (or equal-length glyph
//     blocks) among their original positions;
//   - subst   — replace occurrences of a key glyph with a weighted-random
//     choice from a replacement list.
//
// Grammar (returned as errors, never panics):
//
//	subst:    [fix:]<glyphs>:<repl>[/,]<repl>...   repl = [N*]glyph (N >= 0)
//	shuffle:  seg[/seg]...                         all segs equal length
//
// ApplyTransforms runs every queued shuffle, then every queued subst, each
// exactly once, consuming randomness; it is deliberately non-idempotent. A
// fixed subst resolves its replacement on first use and substitutes the same
// glyph thereafter for the lifetime of this MapLines instance; Copy resets
// the frozen value so a resolved map copy re-rolls.
//
// Normalise establishes the rectangularity invariant: afterwards every row
// has identical length, short rows padded on the right with the fill glyph.
package mapdef

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

type transformKind int

const (
	ttShuffle transformKind = iota
	ttSubst
)

// SubstSpec is one queued weighted substitution. Key is the glyph to
// replace; a fixed spec freezes its first resolved replacement.
type SubstSpec struct {
	Key  byte
	Fix  bool
	Repl []Weighted[byte]

	frozen   byte
	resolved bool
	raw      string
}

// Value picks the replacement glyph, honoring the frozen value of a fixed
// spec.
func (s *SubstSpec) Value(rng *rand.Rand) byte {
	if s.Fix && s.resolved {
		return s.frozen
	}
	total := 0
	for _, r := range s.Repl {
		total += r.Weight
	}
	if total <= 0 {
		return s.Key
	}
	draw := rng.Intn(total)
	sum := 0
	out := s.Key
	for _, r := range s.Repl {
		sum += r.Weight
		if sum > draw {
			out = r.Value
			break
		}
	}
	if s.Fix {
		s.frozen = out
		s.resolved = true
	}
	return out
}

func (s *SubstSpec) describe() string { return s.raw }

type transform struct {
	kind  transformKind
	spec  string     // literal spec text, for removal and describe
	subst *SubstSpec // kind == ttSubst only
}

// MapLines is the grid plus its pending transform queue. The zero value is
// an empty grid ready for use.
type MapLines struct {
	lines      []string
	transforms []transform

	solidNorth, solidEast, solidSouth, solidWest bool
	solidChecked                                 bool
}

// AddLine appends a row verbatim. Any cached border-solidity result is
// invalidated.
func (m *MapLines) AddLine(s string) {
	m.lines = append(m.lines, s)
	m.solidChecked = false
}

// Width is the length of the longest row.
func (m *MapLines) Width() int {
	w := 0
	for _, l := range m.lines {
		if len(l) > w {
			w = len(l)
		}
	}
	return w
}

// Height is the number of rows.
func (m *MapLines) Height() int { return len(m.lines) }

// Lines returns the backing rows. Callers treating the grid as resolved
// must not mutate them.
func (m *MapLines) Lines() []string { return m.lines }

// SetLine replaces row y, extending the grid with empty rows as needed.
func (m *MapLines) SetLine(y int, s string) {
	for len(m.lines) <= y {
		m.lines = append(m.lines, "")
	}
	m.lines[y] = s
	m.solidChecked = false
}

// RemoveLine deletes row y. It reports false when y is out of range.
func (m *MapLines) RemoveLine(y int) bool {
	if y < 0 || y >= len(m.lines) {
		return false
	}
	m.lines = append(m.lines[:y], m.lines[y+1:]...)
	m.solidChecked = false
	return true
}

// Clear drops the grid and every queued transform.
func (m *MapLines) Clear() {
	m.lines = nil
	m.transforms = nil
	m.solidChecked = false
}

// Glyph is a bounds-checked read of the grid. Out-of-range coordinates
// return ErrBounds rather than failing hard.
func (m *MapLines) Glyph(x, y int) (byte, error) {
	if y < 0 || y >= len(m.lines) || x < 0 || x >= len(m.lines[y]) {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d map", ErrBounds, x, y, m.Width(), m.Height())
	}
	return m.lines[y][x], nil
}

// At is Glyph over a Coord.
func (m *MapLines) At(c Coord) (byte, error) { return m.Glyph(c.X, c.Y) }

// --- subst / shuffle grammars ---

// AddSubst parses a substitution spec and queues it. A spec may open with
// the "fix:" freeze marker; multiple key glyphs queue one substitution per
// key, each frozen independently.
func (m *MapLines) AddSubst(spec string) error {
	raw := spec
	s := strings.TrimSpace(spec)
	fix := false
	if rest, ok := strings.CutPrefix(s, "fix:"); ok {
		fix = true
		s = strings.TrimSpace(rest)
	}
	sep := strings.IndexByte(s, ':')
	if sep <= 0 || sep == len(s)-1 {
		return parseErr("subst", raw)
	}
	keys := strings.TrimSpace(s[:sep])
	repl, err := parseGlyphReplacements(s[sep+1:])
	if err != nil {
		return err
	}
	if keys == "" {
		return parseErr("subst", raw)
	}
	for i := 0; i < len(keys); i++ {
		if keys[i] == ' ' || keys[i] == '\t' {
			continue
		}
		m.transforms = append(m.transforms, transform{
			kind:  ttSubst,
			spec:  raw,
			subst: &SubstSpec{
				Key:  keys[i],
				Fix:  fix,
				Repl: append([]Weighted[byte](nil), repl...),
				raw:  raw,
			},
		})
	}
	return nil
}

// parseGlyphReplacements parses a '/'- or ','-separated list of [N*]glyph
// entries. The default weight is 1; zero weights are allowed and never
// selected.
func parseGlyphReplacements(s string) ([]Weighted[byte], error) {
	var out []Weighted[byte]
	for _, ent := range strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == ',' }) {
		ent = strings.TrimSpace(ent)
		if ent == "" {
			continue
		}
		weight := 1
		glyph := ent
		if star := strings.IndexByte(ent, '*'); star >= 0 {
			w, err := strconv.Atoi(strings.TrimSpace(ent[:star]))
			if err != nil || w < 0 {
				return nil, parseErr("subst replacement", ent)
			}
			weight = w
			glyph = strings.TrimSpace(ent[star+1:])
		}
		if len(glyph) != 1 {
			return nil, parseErr("subst replacement", ent)
		}
		out = append(out, Weighted[byte]{Value: glyph[0], Weight: weight})
	}
	if len(out) == 0 {
		return nil, parseErr("subst replacement list", s)
	}
	return out, nil
}

// AddShuffle parses and queues a shuffle spec.
func (m *MapLines) AddShuffle(spec string) error {
	if err := checkShuffle(spec); err != nil {
		return err
	}
	m.transforms = append(m.transforms, transform{kind: ttShuffle, spec: spec})
	return nil
}

func checkShuffle(spec string) error {
	s := strings.TrimSpace(spec)
	if s == "" {
		return parseErr("shuffle", spec)
	}
	segs := strings.Split(s, "/")
	width := len(segs[0])
	seen := map[byte]bool{}
	for _, seg := range segs {
		if len(seg) == 0 || len(seg) != width {
			return fmt.Errorf("bad shuffle spec (unequal blocks): %q", spec)
		}
		for i := 0; i < len(seg); i++ {
			if seen[seg[i]] {
				return fmt.Errorf("bad shuffle spec (repeated glyph %q): %q", seg[i], spec)
			}
			seen[seg[i]] = true
		}
	}
	return nil
}

// RemoveSubst drops every queued subst whose literal spec matches.
func (m *MapLines) RemoveSubst(spec string) { m.removeTransform(ttSubst, spec) }

// RemoveShuffle drops every queued shuffle whose literal spec matches.
func (m *MapLines) RemoveShuffle(spec string) { m.removeTransform(ttShuffle, spec) }

func (m *MapLines) removeTransform(kind transformKind, spec string) {
	out := m.transforms[:0]
	for _, t := range m.transforms {
		if t.kind == kind && t.spec == spec {
			continue
		}
		out = append(out, t)
	}
	m.transforms = out
}

// ClearShuffles drops every queued shuffle.
func (m *MapLines) ClearShuffles() { m.clearTransforms(ttShuffle) }

// ClearSubsts drops every queued subst.
func (m *MapLines) ClearSubsts() { m.clearTransforms(ttSubst) }

func (m *MapLines) clearTransforms(kind transformKind) {
	out := m.transforms[:0]
	for _, t := range m.transforms {
		if t.kind == kind {
			continue
		}
		out = append(out, t)
	}
	m.transforms = out
}

// ShuffleStrings lists the queued shuffle specs in registration order.
func (m *MapLines) ShuffleStrings() []string { return m.transformStrings(ttShuffle) }

// SubstStrings lists the queued subst specs in registration order.
func (m *MapLines) SubstStrings() []string { return m.transformStrings(ttSubst) }

func (m *MapLines) transformStrings(kind transformKind) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range m.transforms {
		if t.kind != kind || seen[t.spec] {
			continue
		}
		seen[t.spec] = true
		out = append(out, t.spec)
	}
	return out
}

// ApplyTransforms executes every queued shuffle, then every queued subst,
// in registration order. Each application consumes randomness; calling twice
// may produce a different grid because unfixed substitutions re-roll.
func (m *MapLines) ApplyTransforms(rng *rand.Rand) {
	for _, t := range m.transforms {
		if t.kind == ttShuffle {
			m.resolveShuffle(rng, t.spec)
		}
	}
	for _, t := range m.transforms {
		if t.kind == ttSubst {
			m.applySubst(rng, t.subst)
		}
	}
	m.solidChecked = false
}

// resolveShuffle permutes the spec's blocks and rewrites the grid through
// the resulting glyph mapping. A spec without '/' treats each glyph as its
// own block.
func (m *MapLines) resolveShuffle(rng *rand.Rand, spec string) {
	s := strings.TrimSpace(spec)
	var segs []string
	if strings.ContainsRune(s, '/') {
		segs = strings.Split(s, "/")
	} else {
		for i := 0; i < len(s); i++ {
			segs = append(segs, s[i:i+1])
		}
	}
	if len(segs) < 2 {
		return
	}
	perm := rng.Perm(len(segs))
	mapping := map[byte]byte{}
	for i, seg := range segs {
		to := segs[perm[i]]
		for j := 0; j < len(seg); j++ {
			mapping[seg[j]] = to[j]
		}
	}
	m.mapGlyphs(mapping)
}

func (m *MapLines) mapGlyphs(mapping map[byte]byte) {
	for y, line := range m.lines {
		b := []byte(line)
		changed := false
		for x, g := range b {
			if to, ok := mapping[g]; ok && to != g {
				b[x] = to
				changed = true
			}
		}
		if changed {
			m.lines[y] = string(b)
		}
	}
}

func (m *MapLines) applySubst(rng *rand.Rand, spec *SubstSpec) {
	for y, line := range m.lines {
		b := []byte(line)
		changed := false
		for x, g := range b {
			if g == spec.Key {
				b[x] = spec.Value(rng)
				changed = true
			}
		}
		if changed {
			m.lines[y] = string(b)
		}
	}
}

// --- geometry ---

// Normalise pads every row to the maximum row length using fill,
// establishing the rectangularity invariant.
func (m *MapLines) Normalise(fill byte) {
	width := m.Width()
	for y, line := range m.lines {
		if len(line) < width {
			m.lines[y] = line + strings.Repeat(string(fill), width-len(line))
		}
	}
	m.solidChecked = false
}

// Rotate turns the grid 90 degrees, swapping width and height. The grid
// must be normalised first; ragged rows are padded with spaces.
func (m *MapLines) Rotate(clockwise bool) {
	w, h := m.Width(), m.Height()
	if w == 0 || h == 0 {
		return
	}
	rows := make([][]byte, w)
	for i := range rows {
		rows[i] = make([]byte, h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := byte(' ')
			if x < len(m.lines[y]) {
				g = m.lines[y][x]
			}
			if clockwise {
				rows[x][h-1-y] = g
			} else {
				rows[w-1-x][y] = g
			}
		}
	}
	m.lines = m.lines[:0]
	for _, r := range rows {
		m.lines = append(m.lines, string(r))
	}
	m.solidChecked = false
}

// Hmirror flips the grid around its vertical axis, reversing the column
// order of every row.
func (m *MapLines) Hmirror() {
	for y, line := range m.lines {
		b := []byte(line)
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		m.lines[y] = string(b)
	}
	m.solidChecked = false
}

// Vmirror flips the grid around its horizontal axis, reversing the row
// order.
func (m *MapLines) Vmirror() {
	for i, j := 0, len(m.lines)-1; i < j; i, j = i+1, j-1 {
		m.lines[i], m.lines[j] = m.lines[j], m.lines[i]
	}
	m.solidChecked = false
}

// --- border solidity ---

func (m *MapLines) checkBorders() {
	if m.solidChecked {
		return
	}
	h := len(m.lines)
	m.solidNorth = h > 0 && rowSolid(m.lines[0])
	m.solidSouth = h > 0 && rowSolid(m.lines[h-1])
	m.solidWest, m.solidEast = true, true
	width := m.Width()
	for _, line := range m.lines {
		if len(line) == 0 || !isSolidGlyph(line[0]) {
			m.solidWest = false
		}
		if len(line) < width || !isSolidGlyph(line[width-1]) {
			m.solidEast = false
		}
	}
	m.solidChecked = true
}

func rowSolid(line string) bool {
	for i := 0; i < len(line); i++ {
		if !isSolidGlyph(line[i]) {
			return false
		}
	}
	return len(line) > 0
}

// SolidBorders reports whether every glyph along the orientation's docking
// edge is solid, so the map can dock against a level edge without leaving a
// gap. Corner orientations need both of their edges solid; encompass maps
// need all four.
func (m *MapLines) SolidBorders(orient Orient) bool {
	m.checkBorders()
	switch orient {
	case OrientNorth:
		return m.solidSouth
	case OrientSouth:
		return m.solidNorth
	case OrientEast:
		return m.solidWest
	case OrientWest:
		return m.solidEast
	case OrientNorthwest:
		return m.solidSouth && m.solidEast
	case OrientNortheast:
		return m.solidSouth && m.solidWest
	case OrientSouthwest:
		return m.solidNorth && m.solidEast
	case OrientSoutheast:
		return m.solidNorth && m.solidWest
	case OrientEncompass:
		return m.solidNorth && m.solidSouth && m.solidEast && m.solidWest
	default:
		return false
	}
}

// Copy returns a deep copy. Frozen substitution values are reset so the
// copy's fixed choices resolve independently.
func (m *MapLines) Copy() MapLines {
	out := MapLines{lines: append([]string(nil), m.lines...)}
	out.transforms = make([]transform, 0, len(m.transforms))
	for _, t := range m.transforms {
		nt := transform{kind: t.kind, spec: t.spec}
		if t.subst != nil {
			nt.subst = &SubstSpec{
				Key:  t.subst.Key,
				Fix:  t.subst.Fix,
				Repl: append([]Weighted[byte](nil), t.subst.Repl...),
				raw:  t.subst.raw,
			}
		}
		out.transforms = append(out.transforms, nt)
	}
	return out
}

// mapdef.go — MAP DEFINITIONS: the compiler's aggregate.
//
// OVERVIEW
// ========
// A MapDef bundles everything a level description declares: name, tag set,
// placement hint, depth ranges, orientation, selection weight, the glyph
// grid, the monster/item placement lists, the keyed per-glyph overrides,
// and four script chunks (prelude, main, validate, veto).
//
// LIFECYCLE
// =========
// A definition is constructed empty, populated by the .des parser (or read
// back from the cache index and lazily completed), and then used as an
// immutable template: generation never mutates it. Resolve produces a deep
// copy with every non-fixed choice still pending and records the template
// as the copy's original for traceability; Fixup applies the queued
// transforms, normalises the grid and checks border solidity; the script
// chunks then run against the resolved copy through a Sandbox, with
// validate/veto accepting or rejecting the instantiated map.
package mapdef

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/zyedidia/generic/mapset"
)

// MapDef is one map definition, template or resolved instance.
type MapDef struct {
	Name   string
	Place  string
	Depths []LevelRange
	Orient Orient
	Chance int

	Tags  mapset.Set[string]
	Map   MapLines
	Mons  *MonsList
	Items *ItemList
	Keyed map[byte]*KeyedMapSpec

	Prelude  Chunk
	Main     Chunk
	Validate Chunk
	Veto     Chunk

	// Original points at the template this instance was resolved from;
	// it is a non-owning reference, nil on authored templates, and never
	// written through.
	Original     *MapDef
	OriginalName string

	lookup NameTable
	rng    *rand.Rand

	// two-phase cache state
	indexOnly   bool
	cacheFile   string
	cacheOffset int64
}

func newTagSet() mapset.Set[string] { return mapset.New[string]() }

// NewMapDef constructs an empty definition resolving entity names through
// lookup.
func NewMapDef(lookup NameTable) *MapDef {
	m := &MapDef{
		Chance: 10,
		Tags:   mapset.New[string](),
		Mons:   NewMonsList(lookup),
		Items:  NewItemList(lookup),
		Keyed:  map[byte]*KeyedMapSpec{},
		lookup: lookup,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	m.Prelude = NewChunk("prelude")
	m.Main = NewChunk("main")
	m.Validate = NewChunk("validate")
	m.Veto = NewChunk("veto")
	return m
}

// SetSeed makes every weighted pick and shuffle of this definition
// reproducible.
func (m *MapDef) SetSeed(seed int64) {
	m.rng = rand.New(rand.NewSource(seed))
}

// Rand exposes the definition's random source to collaborating code.
func (m *MapDef) Rand() *rand.Rand { return m.rng }

// SetFile records the source file on the definition and its chunks, used
// in rewritten diagnostics.
func (m *MapDef) SetFile(file string) {
	m.cacheFile = file
	m.Prelude.SetFile(file)
	m.Main.SetFile(file)
	m.Validate.SetFile(file)
	m.Veto.SetFile(file)
}

// --- tags ---

// AddTags inserts each whitespace-separated tag.
func (m *MapDef) AddTags(s string) {
	for _, t := range strings.Fields(s) {
		m.Tags.Put(t)
	}
}

// RemoveTag drops one tag if present.
func (m *MapDef) RemoveTag(t string) { m.Tags.Remove(t) }

// HasTag reports exact tag membership.
func (m *MapDef) HasTag(t string) bool { return m.Tags.Has(t) }

// HasTagPrefix reports whether any tag starts with the prefix.
func (m *MapDef) HasTagPrefix(prefix string) bool {
	found := false
	m.Tags.Each(func(t string) {
		if strings.HasPrefix(t, prefix) {
			found = true
		}
	})
	return found
}

// TagsString renders the tag set deterministically (sorted).
func (m *MapDef) TagsString() string {
	var ts []string
	m.Tags.Each(func(t string) { ts = append(ts, t) })
	sort.Strings(ts)
	return strings.Join(ts, " ")
}

// --- depths / placement ---

// AddDepth appends one parsed range.
func (m *MapDef) AddDepth(lr LevelRange) { m.Depths = append(m.Depths, lr) }

// AddDepths parses a comma-separated range list and appends every
// fragment. Fragments are parsed independently; the first bad one aborts.
func (m *MapDef) AddDepths(s string) error {
	ranges, err := ParseDepthRanges(s)
	if err != nil {
		return err
	}
	m.Depths = append(m.Depths, ranges...)
	return nil
}

// HasDepth reports whether any depth range was declared.
func (m *MapDef) HasDepth() bool { return len(m.Depths) > 0 }

// DepthsString renders the depth list for scripts and the cache index.
func (m *MapDef) DepthsString() string { return depthRangesString(m.Depths) }

// IsUsableIn applies the allow/deny depth semantics at a spot.
func (m *MapDef) IsUsableIn(id LevelID) bool {
	return DepthRangesMatch(m.Depths, id)
}

// IsMinivault reports whether the map floats inside a level rather than
// docking against an edge.
func (m *MapDef) IsMinivault() bool {
	return m.Orient == OrientNone || m.HasTag("minivault")
}

// CanDock reports whether the grid's borders permit docking the map with
// the given orientation.
func (m *MapDef) CanDock(o Orient) bool {
	if o == OrientNone || o == OrientFloat {
		return true
	}
	return m.Map.SolidBorders(o)
}

// --- keyed specs ---

// KeySpec returns the keyed spec for a placement glyph, creating it lazily
// when create is set.
func (m *MapDef) KeySpec(key byte, create bool) *KeyedMapSpec {
	if ks, ok := m.Keyed[key]; ok {
		return ks
	}
	if !create {
		return nil
	}
	ks := newKeyedMapSpec(key, m.lookup)
	m.Keyed[key] = ks
	return ks
}

// AddKeyFeat handles a "KFEAT: <key> = <spec>" directive body.
func (m *MapDef) AddKeyFeat(s string) error {
	key, rest, err := splitKeyedSpec(s)
	if err != nil {
		return err
	}
	return m.KeySpec(key, true).SetFeat(m.lookup, rest, false)
}

// AddKeyMons handles a "KMONS: <key> = <spec>" directive body.
func (m *MapDef) AddKeyMons(s string) error {
	key, rest, err := splitKeyedSpec(s)
	if err != nil {
		return err
	}
	return m.KeySpec(key, true).SetMons(rest, false)
}

// AddKeyItem handles a "KITEM: <key> = <spec>" directive body.
func (m *MapDef) AddKeyItem(s string) error {
	key, rest, err := splitKeyedSpec(s)
	if err != nil {
		return err
	}
	return m.KeySpec(key, true).SetItem(rest, false)
}

// --- grid queries exposed to placement code ---

// GlyphAt is a bounds-checked glyph read.
func (m *MapDef) GlyphAt(c Coord) (byte, error) { return m.Map.At(c) }

// InBounds reports whether the coordinate lies on the grid.
func (m *MapDef) InBounds(c Coord) bool {
	return c.Y >= 0 && c.Y < m.Map.Height() && c.X >= 0 && c.X < m.Map.Width()
}

// FindFirstGlyph scans rows top to bottom for the first occurrence.
func (m *MapDef) FindFirstGlyph(g byte) (Coord, bool) {
	for y, line := range m.Map.Lines() {
		for x := 0; x < len(line); x++ {
			if line[x] == g {
				return Coord{x, y}, true
			}
		}
	}
	return Coord{-1, -1}, false
}

// FindGlyph collects every occurrence in row-major order.
func (m *MapDef) FindGlyph(g byte) []Coord {
	var out []Coord
	for y, line := range m.Map.Lines() {
		for x := 0; x < len(line); x++ {
			if line[x] == g {
				out = append(out, Coord{x, y})
			}
		}
	}
	return out
}

// FeatureAt resolves the feature a coordinate will produce, fixing a keyed
// KFEAT slot in the process. ok is false outside the grid.
func (m *MapDef) FeatureAt(c Coord) (feat int, glyph byte, ok bool) {
	g, err := m.GlyphAt(c)
	if err != nil {
		return 0, 0, false
	}
	if ks := m.KeySpec(g, false); ks != nil {
		fs := ks.GetFeat(m.rng)
		if fs.Glyph != 0 {
			return 0, fs.Glyph, true
		}
		return fs.Feat, 0, true
	}
	return 0, g, true
}

// TraversableAt classifies a cell for connectivity checks, honoring keyed
// feature overrides.
func (m *MapDef) TraversableAt(c Coord) bool {
	feat, glyph, ok := m.FeatureAt(c)
	if !ok {
		return false
	}
	if glyph != 0 {
		return !isSolidGlyph(glyph)
	}
	return m.lookup.FeatureTraversable(feat)
}

// FloodFinder builds a connectivity checker over this map's grid.
func (m *MapDef) FloodFinder() *FloodFind {
	return NewFloodFind(m.TraversableAt, m.InBounds)
}

// --- geometry passthroughs ---

func (m *MapDef) Hmirror()                 { m.Map.Hmirror() }
func (m *MapDef) Vmirror()                 { m.Map.Vmirror() }
func (m *MapDef) Rotate(cw bool)           { m.Map.Rotate(cw) }
func (m *MapDef) Normalise()               { m.Map.Normalise('x') }
func (m *MapDef) ShuffleStrings() []string { return m.Map.ShuffleStrings() }
func (m *MapDef) SubstStrings() []string   { return m.Map.SubstStrings() }

// --- script chunk assembly ---

// AddPreludeLine appends an authored prelude fragment.
func (m *MapDef) AddPreludeLine(line int, s string) { m.Prelude.Add(line, s) }

// AddMainLine appends an authored main-chunk fragment.
func (m *MapDef) AddMainLine(line int, s string) { m.Main.Add(line, s) }

// --- lifecycle ---

// Resolve produces an independent deep copy with all non-fixed choices
// still pending, recording the template as the copy's original. The
// template itself is never mutated by generation.
func (m *MapDef) Resolve() *MapDef {
	out := &MapDef{
		Name:         m.Name,
		Place:        m.Place,
		Depths:       append([]LevelRange(nil), m.Depths...),
		Orient:       m.Orient,
		Chance:       m.Chance,
		Tags:         mapset.New[string](),
		Map:          m.Map.Copy(),
		Mons:         m.Mons.Copy(),
		Items:        m.Items.Copy(),
		Keyed:        map[byte]*KeyedMapSpec{},
		Prelude:      m.Prelude,
		Main:         m.Main,
		Validate:     m.Validate,
		Veto:         m.Veto,
		Original:     m,
		OriginalName: m.Name,
		lookup:       m.lookup,
		rng:          m.rng,
	}
	m.Tags.Each(func(t string) { out.Tags.Put(t) })
	for k, ks := range m.Keyed {
		out.Keyed[k] = ks.copy(m.lookup)
	}
	return out
}

// Fixup applies the queued transforms, normalises the grid with the
// default fill glyph, and checks border solidity for docking maps.
func (m *MapDef) Fixup() error {
	m.Map.ApplyTransforms(m.rng)
	m.Map.Normalise('x')
	if m.Orient != OrientNone && m.Orient != OrientFloat && !m.Map.SolidBorders(m.Orient) {
		return fmt.Errorf("map %q has non-solid docking border for orient %s", m.Name, m.Orient)
	}
	return nil
}

// withMapGlobal exposes the definition to scripts as the global "map" for
// the duration of fn.
func (m *MapDef) withMapGlobal(sb *Sandbox, fn func() error) error {
	sb.L.SetGlobal("map", pushableMap(sb.L, m))
	defer sb.L.SetGlobal("map", lua.LNil)
	return fn()
}

// RunLua executes the prelude and, unless skipMain is set, the main chunk
// against this definition.
func (m *MapDef) RunLua(sb *Sandbox, skipMain bool) error {
	return m.withMapGlobal(sb, func() error {
		if err := m.Prelude.LoadCall(sb, ""); err != nil {
			return err
		}
		if skipMain {
			return nil
		}
		return m.Main.LoadCall(sb, "")
	})
}

// TestLuaValidate runs the validation chunk; true means the map passed.
// An empty chunk accepts.
func (m *MapDef) TestLuaValidate(sb *Sandbox) (bool, error) {
	return m.testBoolChunk(sb, &m.Validate, true)
}

// TestLuaVeto runs the veto chunk; true means the chunk vetoed the map.
// An empty chunk never vetoes.
func (m *MapDef) TestLuaVeto(sb *Sandbox) (bool, error) {
	return m.testBoolChunk(sb, &m.Veto, false)
}

func (m *MapDef) testBoolChunk(sb *Sandbox, c *Chunk, def bool) (bool, error) {
	f, err := c.LoadFunction(sb)
	if err != nil {
		if errors.Is(err, ErrEmptyChunk) {
			return def, nil
		}
		return def, err
	}
	out := def
	err = m.withMapGlobal(sb, func() error {
		if err := sb.enter(); err != nil {
			return err
		}
		defer sb.leave()
		rets, err := sb.protectedCall(f, 1)
		if err != nil {
			c.lastError = err.Error()
			if isSandboxFault(err) {
				return err
			}
			return &ScriptError{Context: c.context, Msg: c.OrigError()}
		}
		out = !lua.LVIsFalse(rets[0])
		return nil
	})
	return out, err
}

// Verify performs the static sanity checks of a populated definition.
func (m *MapDef) Verify() error {
	if m.Name == "" {
		return fmt.Errorf("map has no name")
	}
	if m.Map.Height() == 0 {
		return fmt.Errorf("map %q has no grid", m.Name)
	}
	if !m.HasDepth() && m.Place == "" {
		return fmt.Errorf("map %q has neither DEPTH: nor PLACE:", m.Name)
	}
	// Every numeric placement glyph must have a matching MONS slot.
	maxDigit := 0
	for _, line := range m.Map.Lines() {
		for i := 0; i < len(line); i++ {
			if line[i] >= '1' && line[i] <= '9' && int(line[i]-'0') > maxDigit {
				maxDigit = int(line[i] - '0')
			}
		}
	}
	if maxDigit > m.Mons.Size() {
		return fmt.Errorf("map %q uses monster glyph %d but defines %d MONS slots",
			m.Name, maxDigit, m.Mons.Size())
	}
	return nil
}

// IndexOnly reports whether the definition is a cache summary whose body
// has not been loaded yet.
func (m *MapDef) IndexOnly() bool { return m.indexOnly }

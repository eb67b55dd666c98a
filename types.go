// types.go — SHARED TYPES & COLLABORATOR CONTRACTS for the level compiler.
//
// OVERVIEW
// ========
// Package mapdef compiles textual level descriptions (ASCII glyph grids plus
// declarative directives) into fully resolved, placeable map definitions, and
// embeds a sandboxed Lua interpreter so map authors can attach prelude,
// validation and veto scripts to a definition.
//
// This file defines the small vocabulary shared by every component:
//
//   - Coord — a grid coordinate (0-indexed, top-to-bottom rows).
//   - Orient — where a map docks against the surrounding level.
//   - LevelID — an opaque (branch, depth) pair used for depth matching.
//   - The collaborator interfaces the compiler consumes but does not own:
//     MonsterLookup, ItemLookup and FeatureLookup resolve author-written
//     entity names to game identifiers. The game supplies the real tables;
//     LintTable is a permissive stand-in for offline linting and tests.
//
// The game's own type tables, the live dungeon grid and rendering are all
// outside this package. Everything that crosses that boundary goes through
// the interfaces below.
package mapdef

import "hash/fnv"

// Coord is a position on a map grid. X is the column, Y the row; (0,0) is
// the top-left corner.
type Coord struct {
	X, Y int
}

// Orient describes which edge (or corner) of the level a map docks against.
// OrientNone marks minivaults and maps placed by explicit coordinates.
type Orient int

const (
	OrientNone Orient = iota
	OrientNorth
	OrientSouth
	OrientEast
	OrientWest
	OrientNorthwest
	OrientNortheast
	OrientSouthwest
	OrientSoutheast
	OrientEncompass
	OrientFloat
)

var orientNames = [...]string{
	"none", "north", "south", "east", "west",
	"northwest", "northeast", "southwest", "southeast",
	"encompass", "float",
}

func (o Orient) String() string {
	if o < 0 || int(o) >= len(orientNames) {
		return "none"
	}
	return orientNames[o]
}

// ParseOrient maps an orientation name back to its Orient value. The empty
// string is intentionally mapped to OrientNone.
func ParseOrient(s string) (Orient, bool) {
	for i, n := range orientNames {
		if s == n {
			return Orient(i), true
		}
	}
	if s == "" {
		return OrientNone, true
	}
	return OrientNone, false
}

// LevelID identifies a spot in the dungeon: a branch name and a depth within
// that branch. The compiler treats branch names as opaque strings.
type LevelID struct {
	Branch string
	Depth  int
}

// solidGlyphs are the wall glyphs a map may use on a docking edge.
const solidGlyphs = "xcbv"

func isSolidGlyph(g byte) bool {
	for i := 0; i < len(solidGlyphs); i++ {
		if solidGlyphs[i] == g {
			return true
		}
	}
	return false
}

// MonsterLookup resolves monster names to game monster ids.
type MonsterLookup interface {
	MonsterByName(name string) (id int, ok bool)
}

// ItemLookup resolves item names and item-class names to game identifiers.
type ItemLookup interface {
	// ItemByName resolves a full item name to (class, subtype).
	ItemByName(name string) (class, sub int, ok bool)
	// ItemClassByName resolves a bare class name ("weapon", "potion", ...)
	// for random-by-class specs.
	ItemClassByName(name string) (class int, ok bool)
}

// FeatureLookup resolves dungeon feature names and classifies features for
// connectivity checks.
type FeatureLookup interface {
	FeatureByName(name string) (feat int, ok bool)
	// FeatureTraversable reports whether a creature can walk through the
	// feature; flood fills use it to classify key-resolved cells.
	FeatureTraversable(feat int) bool
}

// NameTable bundles the three lookups a map definition needs.
type NameTable interface {
	MonsterLookup
	ItemLookup
	FeatureLookup
}

// LintTable is a NameTable that accepts every name, deriving stable ids by
// hashing. It lets the compiler and the REPL check .des files without the
// game's tables loaded; real generation must use the game's own NameTable.
type LintTable struct{}

func hashName(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}

func (LintTable) MonsterByName(name string) (int, bool) { return hashName(name), true }
func (LintTable) ItemByName(name string) (int, int, bool) {
	return hashName(name) & 0xff, hashName(name) >> 8, true
}
func (LintTable) ItemClassByName(name string) (int, bool) { return hashName(name) & 0xff, true }
func (LintTable) FeatureByName(name string) (int, bool)   { return hashName(name), true }
func (LintTable) FeatureTraversable(feat int) bool        { return true }

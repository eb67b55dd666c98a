// dgnlua.go — the dgn script API.
//
// Exposes map definitions to level scripts as userdata and installs the
// "dgn" and "crawl" tables into a sandbox. Every native routes back to its
// governing wrapper through SandboxFor and pays one throttle tick, so a
// script hammering the API is slowed and eventually cut off like any other
// runaway.
//
// Coordinates crossing the boundary are raw grid coordinates (0-based);
// map line indices are 1-based per Lua convention.
package mapdef

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

const mapMetatable = "dgn.mtmap"

// GridAccessor lets the host expose its live game grid to scripts. It is
// optional; scripts calling dgn.grid without one raise an error.
type GridAccessor interface {
	Bounds(c Coord) bool
	FeatureAt(c Coord) int
	SetFeatureAt(c Coord, feat int)
}

// DungeonAPI holds the per-sandbox state of the dgn bindings that does not
// live on any single map definition.
type DungeonAPI struct {
	s    *Sandbox
	grid GridAccessor
	args []string

	// DefaultDepths is the ambient depth list applied to definitions that
	// declare none of their own.
	DefaultDepths []LevelRange
}

// RegisterDungeonAPI installs the dgn and crawl tables into the sandbox
// and returns the binding state. grid may be nil.
func RegisterDungeonAPI(s *Sandbox, args []string, grid GridAccessor) *DungeonAPI {
	api := &DungeonAPI{s: s, grid: grid, args: append([]string(nil), args...)}
	L := s.L

	mt := L.NewTypeMetatable(mapMetatable)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		m := checkMap(L, 1)
		L.Push(lua.LString("map[" + m.Name + "]"))
		return 1
	}))

	dgn := L.NewTable()
	L.SetFuncs(dgn, dgnFuncs)
	L.SetField(dgn, "default_depth", L.NewFunction(api.luaDefaultDepth))
	L.SetField(dgn, "grid", L.NewFunction(api.luaGrid))
	L.SetGlobal("dgn", dgn)

	crawl := L.NewTable()
	L.SetField(crawl, "args", L.NewFunction(api.luaArgs))
	L.SetGlobal("crawl", crawl)

	return api
}

// SetMapGlobal binds m as the script global "map"; a nil m clears it.
func SetMapGlobal(s *Sandbox, m *MapDef) {
	if m == nil {
		s.L.SetGlobal("map", lua.LNil)
		return
	}
	s.L.SetGlobal("map", pushableMap(s.L, m))
}

// pushableMap wraps a definition as script userdata.
func pushableMap(L *lua.LState, m *MapDef) lua.LValue {
	ud := L.NewUserData()
	ud.Value = m
	L.SetMetatable(ud, L.GetTypeMetatable(mapMetatable))
	return ud
}

func checkMap(L *lua.LState, n int) *MapDef {
	ud := L.CheckUserData(n)
	if m, ok := ud.Value.(*MapDef); ok {
		return m
	}
	L.ArgError(n, "map expected")
	return nil
}

// tick finds the governing sandbox and pays one throttle unit. Natives
// running outside any registered sandbox (a bare LState in tests) skip the
// accounting.
func tick(L *lua.LState) {
	if sb := SandboxFor(L); sb != nil {
		sb.Tick(1)
	}
}

var dgnFuncs = map[string]lua.LGFunction{
	"name":             dgnName,
	"depth":            dgnDepth,
	"place":            dgnPlace,
	"tags":             dgnTags,
	"tags_remove":      dgnTagsRemove,
	"chance":           dgnChance,
	"weight":           dgnChance,
	"orient":           dgnOrient,
	"shuffle":          dgnShuffle,
	"shuffle_remove":   dgnShuffleRemove,
	"subst":            dgnSubst,
	"subst_remove":     dgnSubstRemove,
	"map":              dgnMap,
	"mons":             dgnMons,
	"item":             dgnItem,
	"kfeat":            dgnKfeat,
	"kitem":            dgnKitem,
	"kmons":            dgnKmons,
	"points_connected": dgnPointsConnected,
	"gly_point":        dgnGlyPoint,
	"gly_points":       dgnGlyPoints,
	"original_map":     dgnOriginalMap,
}

func dgnName(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if L.GetTop() > 1 {
		m.Name = L.CheckString(2)
	}
	L.Push(lua.LString(m.Name))
	return 1
}

func dgnDepth(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		if L.Get(i) == lua.LNil {
			m.Depths = nil
			continue
		}
		if err := m.AddDepths(L.CheckString(i)); err != nil {
			L.RaiseError("%s", err.Error())
		}
	}
	L.Push(lua.LString(m.DepthsString()))
	return 1
}

func dgnPlace(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if L.GetTop() > 1 {
		m.Place = L.CheckString(2)
	}
	L.Push(lua.LString(m.Place))
	return 1
}

func dgnTags(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		if L.Get(i) == lua.LNil {
			m.Tags = newTagSet()
			continue
		}
		m.AddTags(L.CheckString(i))
	}
	L.Push(lua.LString(m.TagsString()))
	return 1
}

func dgnTagsRemove(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		for _, t := range strings.Fields(L.CheckString(i)) {
			m.RemoveTag(t)
		}
	}
	L.Push(lua.LString(m.TagsString()))
	return 1
}

func dgnChance(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if L.GetTop() > 1 {
		n := L.CheckInt(2)
		if n < 0 {
			L.RaiseError("map chance must be non-negative, got %d", n)
		}
		m.Chance = n
	}
	L.Push(lua.LNumber(m.Chance))
	return 1
}

func dgnOrient(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if L.GetTop() > 1 {
		o, ok := ParseOrient(L.CheckString(2))
		if !ok {
			L.RaiseError("bad orient: %q", L.CheckString(2))
		}
		m.Orient = o
	}
	L.Push(lua.LString(m.Orient.String()))
	return 1
}

func dgnShuffle(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		if err := m.Map.AddShuffle(L.CheckString(i)); err != nil {
			L.RaiseError("%s", err.Error())
		}
	}
	return pushStringList(L, m.ShuffleStrings())
}

func dgnShuffleRemove(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		m.Map.RemoveShuffle(L.CheckString(i))
	}
	return pushStringList(L, m.ShuffleStrings())
}

func dgnSubst(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		if err := m.Map.AddSubst(L.CheckString(i)); err != nil {
			L.RaiseError("%s", err.Error())
		}
	}
	return pushStringList(L, m.SubstStrings())
}

func dgnSubstRemove(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		m.Map.RemoveSubst(L.CheckString(i))
	}
	return pushStringList(L, m.SubstStrings())
}

// dgnMap covers the line-level grid operations:
//
//	dgn.map(m)            -> table of lines
//	dgn.map(m, nil)       -> clear grid
//	dgn.map(m, "line")    -> append line
//	dgn.map(m, i)         -> line i (1-based)
//	dgn.map(m, i, "line") -> replace line i
//	dgn.map(m, i, nil)    -> delete line i
func dgnMap(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	switch L.GetTop() {
	case 1:
		return pushStringList(L, m.Map.Lines())
	case 2:
		switch v := L.Get(2).(type) {
		case *lua.LNilType:
			m.Map.Clear()
			return 0
		case lua.LString:
			m.Map.AddLine(string(v))
			return 0
		case lua.LNumber:
			i := int(v)
			if i < 1 || i > m.Map.Height() {
				L.RaiseError("map line %d out of range 1..%d", i, m.Map.Height())
			}
			L.Push(lua.LString(m.Map.Lines()[i-1]))
			return 1
		}
		L.ArgError(2, "string, number or nil expected")
		return 0
	default:
		i := L.CheckInt(2)
		if i < 1 || i > m.Map.Height() {
			L.RaiseError("map line %d out of range 1..%d", i, m.Map.Height())
		}
		if L.Get(3) == lua.LNil {
			m.Map.RemoveLine(i - 1)
			return 0
		}
		m.Map.SetLine(i-1, L.CheckString(3))
		return 0
	}
}

func dgnMons(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	switch {
	case L.GetTop() == 1:
	case L.Get(2) == lua.LNil:
		m.Mons.Clear()
	case L.Get(2).Type() == lua.LTNumber:
		if err := m.Mons.SetMons(L.CheckInt(2)-1, L.CheckString(3)); err != nil {
			L.RaiseError("%s", err.Error())
		}
	default:
		if err := m.Mons.AddMons(L.CheckString(2), false); err != nil {
			L.RaiseError("%s", err.Error())
		}
	}
	L.Push(lua.LNumber(m.Mons.Size()))
	return 1
}

func dgnItem(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	switch {
	case L.GetTop() == 1:
	case L.Get(2) == lua.LNil:
		m.Items.Clear()
	case L.Get(2).Type() == lua.LTNumber:
		if err := m.Items.SetItem(L.CheckInt(2)-1, L.CheckString(3)); err != nil {
			L.RaiseError("%s", err.Error())
		}
	default:
		if err := m.Items.AddItem(L.CheckString(2), false); err != nil {
			L.RaiseError("%s", err.Error())
		}
	}
	L.Push(lua.LNumber(m.Items.Size()))
	return 1
}

func dgnKfeat(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if err := m.AddKeyFeat(L.CheckString(2)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func dgnKitem(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if err := m.AddKeyItem(L.CheckString(2)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func dgnKmons(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if err := m.AddKeyMons(L.CheckString(2)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// dgnPointsConnected checks that every listed point is reachable from the
// first one: dgn.points_connected(m, x0, y0, x1, y1, ...).
func dgnPointsConnected(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	n := L.GetTop() - 1
	if n < 4 || n%2 != 0 {
		L.RaiseError("points_connected needs at least two x,y pairs")
	}
	ff := m.FloodFinder()
	start := Coord{L.CheckInt(2), L.CheckInt(3)}
	for i := 4; i <= L.GetTop(); i += 2 {
		ff.AddPoint(Coord{L.CheckInt(i), L.CheckInt(i + 1)})
	}
	L.Push(lua.LBool(ff.PointsConnectedFrom(start)))
	return 1
}

func dgnGlyPoint(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	g := checkGlyph(L, 2)
	c, ok := m.FindFirstGlyph(g)
	if !ok {
		return 0
	}
	L.Push(lua.LNumber(c.X))
	L.Push(lua.LNumber(c.Y))
	return 2
}

func dgnGlyPoints(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	g := checkGlyph(L, 2)
	out := L.NewTable()
	for _, c := range m.FindGlyph(g) {
		p := L.NewTable()
		L.SetField(p, "x", lua.LNumber(c.X))
		L.SetField(p, "y", lua.LNumber(c.Y))
		out.Append(p)
	}
	L.Push(out)
	return 1
}

func dgnOriginalMap(L *lua.LState) int {
	tick(L)
	m := checkMap(L, 1)
	if m.Original == nil {
		return 0
	}
	L.Push(pushableMap(L, m.Original))
	return 1
}

func (api *DungeonAPI) luaDefaultDepth(L *lua.LState) int {
	tick(L)
	if L.GetTop() > 0 {
		if L.Get(1) == lua.LNil {
			api.DefaultDepths = nil
		} else {
			ranges, err := ParseDepthRanges(L.CheckString(1))
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			api.DefaultDepths = ranges
		}
	}
	L.Push(lua.LString(depthRangesString(api.DefaultDepths)))
	return 1
}

// luaGrid reads or writes a cell of the host's live game grid.
func (api *DungeonAPI) luaGrid(L *lua.LState) int {
	tick(L)
	if api.grid == nil {
		L.RaiseError("no live grid bound to this sandbox")
	}
	c := Coord{L.CheckInt(1), L.CheckInt(2)}
	if !api.grid.Bounds(c) {
		L.RaiseError("grid point (%d,%d) out of bounds", c.X, c.Y)
	}
	if L.GetTop() > 2 {
		api.grid.SetFeatureAt(c, L.CheckInt(3))
	}
	L.Push(lua.LNumber(api.grid.FeatureAt(c)))
	return 1
}

func (api *DungeonAPI) luaArgs(L *lua.LState) int {
	tick(L)
	return pushStringList(L, api.args)
}

func checkGlyph(L *lua.LState, n int) byte {
	s := L.CheckString(n)
	if len(s) != 1 {
		L.ArgError(n, "single glyph expected")
	}
	return s[0]
}

func pushStringList(L *lua.LState, ss []string) int {
	out := L.NewTable()
	for _, s := range ss {
		out.Append(lua.LString(s))
	}
	L.Push(out)
	return 1
}

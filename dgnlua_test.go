package mapdef

import (
	"strings"
	"testing"
)

func newScriptedMap(t *testing.T, lines ...string) (*Sandbox, *MapDef) {
	t.Helper()
	sb := NewSandbox(false)
	t.Cleanup(sb.Close)
	RegisterDungeonAPI(sb, []string{"test"}, nil)
	m := newTestMap(t, lines...)
	SetMapGlobal(sb, m)
	return sb, m
}

func Test_Dgn_NamePlaceOrient(t *testing.T) {
	sb, m := newScriptedMap(t, "x.x")
	mustNoErr(t, sb.ExecString(`
		dgn.name(map, "renamed")
		dgn.place(map, "D:2")
		dgn.orient(map, "north")
	`, "test"))
	if m.Name != "renamed" || m.Place != "D:2" || m.Orient != OrientNorth {
		t.Fatalf("got %q %q %v", m.Name, m.Place, m.Orient)
	}
	if err := sb.ExecString(`dgn.orient(map, "sideways")`, "test"); err == nil {
		t.Fatalf("bad orient accepted")
	}
}

func Test_Dgn_TagsAddRemove(t *testing.T) {
	sb, m := newScriptedMap(t, "x")
	mustNoErr(t, sb.ExecString(`dgn.tags(map, "allow_dup no_pool_fixup")`, "test"))
	if !m.HasTag("allow_dup") || !m.HasTag("no_pool_fixup") {
		t.Fatalf("tags not applied: %q", m.TagsString())
	}
	mustNoErr(t, sb.ExecString(`dgn.tags_remove(map, "allow_dup")`, "test"))
	if m.HasTag("allow_dup") || !m.HasTag("no_pool_fixup") {
		t.Fatalf("tags_remove wrong: %q", m.TagsString())
	}
}

func Test_Dgn_DepthFragmentsIndependent(t *testing.T) {
	sb, m := newScriptedMap(t, "x")
	mustNoErr(t, sb.ExecString(`dgn.depth(map, "2-5, Orc:3")`, "test"))
	if len(m.Depths) != 2 {
		t.Fatalf("got %d ranges: %s", len(m.Depths), m.DepthsString())
	}
	if m.Depths[0].Branch != "D" || m.Depths[1].Branch != "Orc" {
		t.Fatalf("fragments aliased: %s", m.DepthsString())
	}
}

func Test_Dgn_MapLineOps(t *testing.T) {
	sb, m := newScriptedMap(t, "aaa", "bbb")
	mustNoErr(t, sb.ExecString(`
		dgn.map(map, "ccc")
		dgn.map(map, 2, "BBB")
		second = dgn.map(map, 2)
	`, "test"))
	if got := m.Map.Lines(); len(got) != 3 || got[1] != "BBB" || got[2] != "ccc" {
		t.Fatalf("lines %v", got)
	}
	if got := sb.L.GetGlobal("second").String(); got != "BBB" {
		t.Fatalf("read back %q", got)
	}
	mustNoErr(t, sb.ExecString(`dgn.map(map, 3, nil)`, "test"))
	if m.Map.Height() != 2 {
		t.Fatalf("delete failed: %v", m.Map.Lines())
	}
	if err := sb.ExecString(`dgn.map(map, 9)`, "test"); err == nil {
		t.Fatalf("out-of-range line read accepted")
	}
}

func Test_Dgn_MonsItemKeyed(t *testing.T) {
	sb, m := newScriptedMap(t, "1C.")
	mustNoErr(t, sb.ExecString(`
		dgn.mons(map, "orc")
		dgn.item(map, "dagger")
		dgn.kfeat(map, "C = altar")
		dgn.kmons(map, "C = rat")
	`, "test"))
	if m.Mons.Size() != 1 || m.Items.Size() != 1 {
		t.Fatalf("lists %d %d", m.Mons.Size(), m.Items.Size())
	}
	ks := m.KeySpec('C', false)
	if ks == nil || ks.Mons.Size() != 1 {
		t.Fatalf("keyed spec missing")
	}
	if err := sb.ExecString(`dgn.mons(map, "grue")`, "test"); err == nil {
		t.Fatalf("unknown monster accepted")
	}
}

func Test_Dgn_SubstShuffle(t *testing.T) {
	sb, m := newScriptedMap(t, "ab")
	mustNoErr(t, sb.ExecString(`
		dgn.subst(map, "a:c")
		dgn.shuffle(map, "ab")
		dgn.subst_remove(map, "a:c")
	`, "test"))
	if len(m.SubstStrings()) != 0 || len(m.ShuffleStrings()) != 1 {
		t.Fatalf("queues %v %v", m.SubstStrings(), m.ShuffleStrings())
	}
}

func Test_Dgn_GlyPointsAndConnectivity(t *testing.T) {
	sb, _ := newScriptedMap(t,
		"@..",
		"xx.",
		"@..",
	)
	mustNoErr(t, sb.ExecString(`
		x, y = dgn.gly_point(map, "@")
		pts = dgn.gly_points(map, "@")
		ok = dgn.points_connected(map, 0, 0, 0, 2)
	`, "test"))
	if sb.L.GetGlobal("x").String() != "0" || sb.L.GetGlobal("y").String() != "0" {
		t.Fatalf("gly_point = (%s,%s)", sb.L.GetGlobal("x"), sb.L.GetGlobal("y"))
	}
	// Both '@' cells are open and connected around the wall stub.
	if sb.L.GetGlobal("ok").String() != "true" {
		t.Fatalf("points_connected = %s", sb.L.GetGlobal("ok"))
	}
}

func Test_Dgn_OriginalMap(t *testing.T) {
	sb, m := newScriptedMap(t, "x")
	mustNoErr(t, sb.ExecString(`orig = dgn.original_map(map)`, "test"))
	if sb.L.GetGlobal("orig").String() != "nil" {
		t.Fatalf("template has no original")
	}

	SetMapGlobal(sb, m.Resolve())
	mustNoErr(t, sb.ExecString(`name = dgn.name(dgn.original_map(map))`, "test"))
	if got := sb.L.GetGlobal("name").String(); got != "test_map" {
		t.Fatalf("original name %q", got)
	}
}

func Test_Dgn_DefaultDepth(t *testing.T) {
	sb := NewSandbox(false)
	t.Cleanup(sb.Close)
	api := RegisterDungeonAPI(sb, nil, nil)
	mustNoErr(t, sb.ExecString(`dgn.default_depth("D:8-12")`, "test"))
	if len(api.DefaultDepths) != 1 || api.DefaultDepths[0].Shallowest != 8 {
		t.Fatalf("default depths %v", api.DefaultDepths)
	}
	mustNoErr(t, sb.ExecString(`dgn.default_depth(nil)`, "test"))
	if len(api.DefaultDepths) != 0 {
		t.Fatalf("nil did not clear")
	}
}

func Test_Dgn_GridWithoutAccessorFails(t *testing.T) {
	sb, _ := newScriptedMap(t, "x")
	err := sb.ExecString(`dgn.grid(0, 0)`, "test")
	if err == nil || !strings.Contains(err.Error(), "no live grid") {
		t.Fatalf("got %v", err)
	}
}

func Test_Crawl_Args(t *testing.T) {
	sb, _ := newScriptedMap(t, "x")
	mustNoErr(t, sb.ExecString(`first = crawl.args()[1]`, "test"))
	if got := sb.L.GetGlobal("first").String(); got != "test" {
		t.Fatalf("args[1] = %q", got)
	}
}

package mapdef

import (
	"strings"
	"testing"
)

func parseDes(t *testing.T, text string) []*MapDef {
	t.Helper()
	p := NewDesParser(testTable{})
	if err := p.Parse(strings.NewReader(text), "test.des"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p.Maps()
}

const sampleDes = `
# A tiny test vault.
default-depth: 3-9

NAME:   test_arrival
TAGS:   no_monster_gen arrival
ORIENT: float
CHANCE: 30
MONS:   rat / orc
ITEM:   dagger
SUBST:  ? : .
SHUFFLE: AB
KFEAT:  C = altar
KMONS:  C = orc
MAP
xxxxx
x.C.x
x.@.x
xxxxx
ENDMAP

NAME:  test_scripted
DEPTH: Orc:2-4
: dgn.tags(map, "from_main")
MAP
xx
xx
ENDMAP
{{
  marker = 1
}}
validate {{ return true }}
veto {{ return false }}
`

func Test_Des_Parse_Directives(t *testing.T) {
	maps := parseDes(t, sampleDes)
	if len(maps) != 2 {
		t.Fatalf("got %d maps, want 2", len(maps))
	}
	m := maps[0]
	if m.Name != "test_arrival" || m.Orient != OrientFloat || m.Chance != 30 {
		t.Fatalf("header wrong: %q %v %d", m.Name, m.Orient, m.Chance)
	}
	if !m.HasTag("arrival") {
		t.Fatalf("tags lost: %q", m.TagsString())
	}
	if m.Mons.Size() != 1 || m.Items.Size() != 1 {
		t.Fatalf("lists %d %d", m.Mons.Size(), m.Items.Size())
	}
	if len(m.SubstStrings()) != 1 || len(m.ShuffleStrings()) != 1 {
		t.Fatalf("transforms %v %v", m.SubstStrings(), m.ShuffleStrings())
	}
	if ks := m.KeySpec('C', false); ks == nil || ks.Mons.Size() != 1 {
		t.Fatalf("keyed spec lost")
	}
	if m.Map.Height() != 4 || m.Map.Lines()[2] != "x.@.x" {
		t.Fatalf("grid %v", m.Map.Lines())
	}
}

func Test_Des_Parse_DefaultDepthApplies(t *testing.T) {
	maps := parseDes(t, sampleDes)
	// First map declares no DEPTH:, so default-depth holds.
	if !maps[0].IsUsableIn(LevelID{"D", 5}) || maps[0].IsUsableIn(LevelID{"D", 1}) {
		t.Fatalf("default depth wrong: %s", maps[0].DepthsString())
	}
	// The second declares its own.
	if maps[1].DepthsString() != "Orc:2-4" {
		t.Fatalf("own depth lost: %s", maps[1].DepthsString())
	}
}

func Test_Des_Parse_ScriptChunks(t *testing.T) {
	maps := parseDes(t, sampleDes)
	m := maps[1]
	if m.Main.Empty() || m.Validate.Empty() || m.Veto.Empty() {
		t.Fatalf("chunks empty: main=%v validate=%v veto=%v",
			m.Main.Empty(), m.Validate.Empty(), m.Veto.Empty())
	}

	sb := NewSandbox(false)
	defer sb.Close()
	RegisterDungeonAPI(sb, nil, nil)
	mustNoErr(t, m.RunLua(sb, false))
	if !m.HasTag("from_main") {
		t.Fatalf("main line did not run: %q", m.TagsString())
	}
	if got := sb.L.GetGlobal("marker").String(); got != "1" {
		t.Fatalf("block after MAP must feed main, marker = %q", got)
	}
	ok, err := m.TestLuaValidate(sb)
	mustNoErr(t, err)
	if !ok {
		t.Fatalf("validate block lost")
	}
	vetoed, err := m.TestLuaVeto(sb)
	mustNoErr(t, err)
	if vetoed {
		t.Fatalf("veto block returned false, map must pass")
	}
}

func Test_Des_Parse_ChunkLinesAreAuthored(t *testing.T) {
	text := `NAME: liner
DEPTH: 1
MAP
x
ENDMAP
: error("kaput")
`
	maps := parseDes(t, text)
	sb := NewSandbox(false)
	defer sb.Close()
	RegisterDungeonAPI(sb, nil, nil)

	err := maps[0].RunLua(sb, false)
	mustErr(t, err)
	// The error() call sits on line 6 of the .des file.
	mustContainStr(t, err.Error(), "test.des:6")
}

func Test_Des_Parse_Errors(t *testing.T) {
	cases := []string{
		"NAME: a\nNAME: a\nDEPTH: 1\nMAP\nx\nENDMAP\n",          // duplicate name
		"DEPTH: 3\n",                                            // directive before NAME
		"NAME: a\nDEPTH: bogus\nMAP\nx\nENDMAP\n",               // bad depth
		"NAME: a\nDEPTH: 1\nORIENT: sideways\nMAP\nx\nENDMAP\n", // bad orient
		"NAME: a\nDEPTH: 1\nMAP\nx\n",                           // unterminated MAP
		"NAME: a\nDEPTH: 1\nMAP\nx\nENDMAP\n{{\nx = 1\n",        // unterminated block
		"NAME: a\nDEPTH: 1\n",                                   // no grid
	}
	for _, text := range cases {
		p := NewDesParser(testTable{})
		if err := p.Parse(strings.NewReader(text), "bad.des"); err == nil {
			t.Fatalf("accepted:\n%s", text)
		}
	}
}

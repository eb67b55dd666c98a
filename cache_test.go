package mapdef

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSampleCache(t *testing.T) (string, []*MapDef) {
	t.Helper()
	p := NewDesParser(testTable{})
	mustNoErr(t, p.Parse(strings.NewReader(sampleDes), "test.des"))

	path := filepath.Join(t.TempDir(), "maps.cdes")
	mustNoErr(t, WriteCache(path, p.Maps()))
	return path, p.Maps()
}

func Test_Cache_Index_AnswersWithoutBodies(t *testing.T) {
	path, orig := writeSampleCache(t)

	maps, err := ReadCacheIndex(path, testTable{})
	mustNoErr(t, err)
	if len(maps) != len(orig) {
		t.Fatalf("index has %d maps, want %d", len(maps), len(orig))
	}

	m := maps[0]
	if !m.IndexOnly() {
		t.Fatalf("index read must not load bodies")
	}
	if m.Name != "test_arrival" || m.Orient != OrientFloat || m.Chance != 30 {
		t.Fatalf("summary wrong: %q %v %d", m.Name, m.Orient, m.Chance)
	}
	if !m.HasTag("arrival") {
		t.Fatalf("summary tags lost: %q", m.TagsString())
	}
	// Depth queries work off the index alone.
	if !m.IsUsableIn(LevelID{"D", 5}) {
		t.Fatalf("depths lost: %s", m.DepthsString())
	}
	if m.Map.Height() != 0 {
		t.Fatalf("body leaked into index read")
	}
}

func Test_Cache_Load_CompletesBody(t *testing.T) {
	path, orig := writeSampleCache(t)

	maps, err := ReadCacheIndex(path, testTable{})
	mustNoErr(t, err)
	m := maps[0]
	mustNoErr(t, m.Load())
	if m.IndexOnly() {
		t.Fatalf("Load left the definition index-only")
	}
	// Loading twice is a no-op.
	mustNoErr(t, m.Load())

	if m.Map.Height() != orig[0].Map.Height() {
		t.Fatalf("grid %v", m.Map.Lines())
	}
	if m.Map.Lines()[2] != "x.@.x" {
		t.Fatalf("grid lines wrong: %v", m.Map.Lines())
	}
	if m.Mons.Size() != 1 || m.Items.Size() != 1 {
		t.Fatalf("lists %d %d", m.Mons.Size(), m.Items.Size())
	}
	if len(m.SubstStrings()) != 1 || len(m.ShuffleStrings()) != 1 {
		t.Fatalf("transforms %v %v", m.SubstStrings(), m.ShuffleStrings())
	}
	ks := m.KeySpec('C', false)
	if ks == nil || ks.Mons.Size() != 1 {
		t.Fatalf("keyed specs lost")
	}
	if fs := ks.GetFeat(testRand()); fs.Feat != testFeatures["altar"] {
		t.Fatalf("keyed feature lost: %+v", fs)
	}
}

func Test_Cache_Load_ChunksRunnable(t *testing.T) {
	path, _ := writeSampleCache(t)

	maps, err := ReadCacheIndex(path, testTable{})
	mustNoErr(t, err)
	m := maps[1]
	mustNoErr(t, m.Load())

	sb := NewSandbox(false)
	defer sb.Close()
	RegisterDungeonAPI(sb, nil, nil)
	mustNoErr(t, m.RunLua(sb, false))
	if !m.HasTag("from_main") {
		t.Fatalf("cached main chunk did not run: %q", m.TagsString())
	}
	ok, err := m.TestLuaValidate(sb)
	mustNoErr(t, err)
	if !ok {
		t.Fatalf("cached validate chunk lost")
	}
}

func Test_Cache_CompiledChunks_Persist(t *testing.T) {
	p := NewDesParser(testTable{})
	mustNoErr(t, p.Parse(strings.NewReader(sampleDes), "test.des"))
	maps := p.Maps()

	sb := NewSandbox(false)
	defer sb.Close()
	mustNoErr(t, maps[1].Main.Compile(sb))

	path := filepath.Join(t.TempDir(), "maps.cdes")
	mustNoErr(t, WriteCache(path, maps))

	back, err := ReadCacheIndex(path, testTable{})
	mustNoErr(t, err)
	mustNoErr(t, back[1].Load())
	if back[1].Main.State() != ChunkCompiled {
		t.Fatalf("compiled state lost: %d", back[1].Main.State())
	}
}

func Test_Cache_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.cdes")
	mustNoErr(t, os.WriteFile(path, []byte("not a cache file at all"), 0o644))

	_, err := ReadCacheIndex(path, testTable{})
	mustErr(t, err)
	var se *SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("got %T, want *SerializationError", err)
	}
}

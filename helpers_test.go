package mapdef

import (
	"math/rand"
	"strings"
	"testing"
)

// testTable is a tiny fixed name table so placement parsing is
// deterministic in tests.
type testTable struct{}

var testMonsters = map[string]int{
	"rat":        1,
	"orc":        2,
	"dragon":     3,
	"hydra":      4,
	"zombie":     100,
	"skeleton":   101,
	"simulacrum": 102,
	"spectre":    103,
}

var testItems = map[string][2]int{
	"dagger":            {10, 1},
	"potion of healing": {20, 5},
	"gold piece":        {30, 1},
	"mimicry tonic":     {20, 6},
}

var testItemClasses = map[string]int{
	"weapon": 10,
	"potion": 20,
	"gold":   30,
}

var testFeatures = map[string]int{
	"floor":      40,
	"altar":      41,
	"stone_wall": 42,
	"lava":       43,
}

func (testTable) MonsterByName(name string) (int, bool) {
	id, ok := testMonsters[name]
	return id, ok
}

func (testTable) ItemByName(name string) (int, int, bool) {
	cs, ok := testItems[name]
	return cs[0], cs[1], ok
}

func (testTable) ItemClassByName(name string) (int, bool) {
	id, ok := testItemClasses[name]
	return id, ok
}

func (testTable) FeatureByName(name string) (int, bool) {
	id, ok := testFeatures[name]
	return id, ok
}

func (testTable) FeatureTraversable(feat int) bool {
	return feat != testFeatures["stone_wall"] && feat != testFeatures["lava"]
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func mustErr(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error, got nil")
	}
}

func mustContainStr(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("expected %q to contain %q", s, sub)
	}
}

func newTestMap(t *testing.T, lines ...string) *MapDef {
	t.Helper()
	m := NewMapDef(testTable{})
	m.Name = "test_map"
	m.SetSeed(42)
	for _, l := range lines {
		m.Map.AddLine(l)
	}
	return m
}

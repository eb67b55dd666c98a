package mapdef

import "testing"

func Test_Keyed_Split(t *testing.T) {
	key, rest, err := splitKeyedSpec("C = altar")
	mustNoErr(t, err)
	if key != 'C' || rest != "altar" {
		t.Fatalf("got %q %q", key, rest)
	}
	for _, s := range []string{"", "= altar", "CD = altar", "C =", "C altar"} {
		if _, _, err := splitKeyedSpec(s); err == nil {
			t.Fatalf("splitKeyedSpec(%q) accepted, want error", s)
		}
	}
}

func Test_Keyed_Feat_NameAndGlyphReference(t *testing.T) {
	ks := newKeyedMapSpec('C', testTable{})
	mustNoErr(t, ks.SetFeat(testTable{}, "altar", false))
	fs := ks.GetFeat(testRand())
	if fs.Feat != testFeatures["altar"] || fs.Glyph != 0 {
		t.Fatalf("got %+v", fs)
	}

	// A single glyph means "whatever that glyph produces".
	mustNoErr(t, ks.SetFeat(testTable{}, ".", false))
	fs = ks.GetFeat(testRand())
	if fs.Glyph != '.' {
		t.Fatalf("glyph reference lost: %+v", fs)
	}
}

func Test_Keyed_Feat_EmptySlotFallsBackToKey(t *testing.T) {
	ks := newKeyedMapSpec('C', testTable{})
	fs := ks.GetFeat(testRand())
	if fs.Glyph != 'C' {
		t.Fatalf("empty slot must reference the key glyph, got %+v", fs)
	}
}

func Test_Keyed_Feat_FixFreezes(t *testing.T) {
	ks := newKeyedMapSpec('C', testTable{})
	mustNoErr(t, ks.SetFeat(testTable{}, "fix:altar/floor/lava", false))
	rng := testRand()
	first := ks.GetFeat(rng)
	for i := 0; i < 50; i++ {
		if got := ks.GetFeat(rng); got != first {
			t.Fatalf("fixed feature slot re-rolled: %+v then %+v", first, got)
		}
	}
}

func Test_Keyed_SetMons_ReplacesOutright(t *testing.T) {
	ks := newKeyedMapSpec('C', testTable{})
	mustNoErr(t, ks.SetMons("rat", false))
	mustNoErr(t, ks.SetMons("orc", false))
	if ks.Mons.Size() != 1 {
		t.Fatalf("SetMons must replace, have %d slots", ks.Mons.Size())
	}
	if got := ks.Mons.GetMonster(0, testRand()).ID; got != testMonsters["orc"] {
		t.Fatalf("kept the old slot: %d", got)
	}
}

func Test_Keyed_OneSpecPerKey_SharedAcrossDirectives(t *testing.T) {
	m := newTestMap(t, "xCx")
	mustNoErr(t, m.AddKeyFeat("C = altar"))
	mustNoErr(t, m.AddKeyMons("C = orc"))
	mustNoErr(t, m.AddKeyItem("C = dagger"))

	ks := m.KeySpec('C', false)
	if ks == nil {
		t.Fatalf("no keyed spec for 'C'")
	}
	if ks.Mons.Size() != 1 || ks.Item.Size() != 1 {
		t.Fatalf("directives landed on separate specs")
	}
	if fs := ks.GetFeat(testRand()); fs.Feat != testFeatures["altar"] {
		t.Fatalf("feature lost: %+v", fs)
	}
}

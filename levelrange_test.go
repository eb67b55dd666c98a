package mapdef

import "testing"

func Test_LevelRange_Parse_Singles(t *testing.T) {
	cases := []struct {
		in   string
		want LevelRange
	}{
		{"3", LevelRange{Branch: "D", Shallowest: 3, Deepest: 3}},
		{"2-5", LevelRange{Branch: "D", Shallowest: 2, Deepest: 5}},
		{"Orc:1-4", LevelRange{Branch: "Orc", Shallowest: 1, Deepest: 4}},
		{"Lair:3", LevelRange{Branch: "Lair", Shallowest: 3, Deepest: 3}},
		{"!4-6", LevelRange{Branch: "D", Shallowest: 4, Deepest: 6, Deny: true}},
		{"8-", LevelRange{Branch: "D", Shallowest: 8, Deepest: maxDepth}},
		{"*", LevelRange{Branch: "D", Shallowest: 1, Deepest: maxDepth}},
	}
	for _, c := range cases {
		got, err := ParseLevelRange(c.in)
		if err != nil {
			t.Fatalf("ParseLevelRange(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseLevelRange(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func Test_LevelRange_Parse_Rejects(t *testing.T) {
	for _, in := range []string{"", "0", "-3", "5-2", "D:", ":4", "x-y"} {
		if _, err := ParseLevelRange(in); err == nil {
			t.Fatalf("ParseLevelRange(%q) accepted, want error", in)
		}
	}
}

func Test_LevelRange_String_RoundTrip(t *testing.T) {
	for _, in := range []string{"D:3", "D:2-5", "Orc:1-4", "!D:4-6"} {
		lr, err := ParseLevelRange(in)
		mustNoErr(t, err)
		if lr.String() != in {
			t.Fatalf("String() = %q, want %q", lr.String(), in)
		}
	}
}

func Test_DepthRanges_Parse_FragmentsIndependent(t *testing.T) {
	ranges, err := ParseDepthRanges("2-5, Orc:3, !D:4")
	mustNoErr(t, err)
	if len(ranges) != 3 {
		t.Fatalf("got %d ranges, want 3", len(ranges))
	}
	if ranges[0].Branch != "D" || ranges[1].Branch != "Orc" || !ranges[2].Deny {
		t.Fatalf("fragments parsed wrong: %+v", ranges)
	}
}

func Test_DepthRanges_Match_DenyWins(t *testing.T) {
	ranges, err := ParseDepthRanges("1-10, !D:4-6")
	mustNoErr(t, err)

	if !DepthRangesMatch(ranges, LevelID{"D", 3}) {
		t.Fatalf("D:3 should match")
	}
	if DepthRangesMatch(ranges, LevelID{"D", 5}) {
		t.Fatalf("D:5 is denied, must not match")
	}
	if DepthRangesMatch(ranges, LevelID{"Orc", 3}) {
		t.Fatalf("Orc:3 is outside every allow range")
	}
}

func Test_LevelRange_Span(t *testing.T) {
	lr := LevelRange{Branch: "D", Shallowest: 2, Deepest: 5}
	if lr.Span() != 4 {
		t.Fatalf("Span() = %d, want 4", lr.Span())
	}
	if (LevelRange{}).Span() != 0 {
		t.Fatalf("zero range must span 0 levels")
	}
}

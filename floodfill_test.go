package mapdef

import "testing"

func floodOver(lines ...string) *FloodFind {
	g := gridOf(lines...)
	traversable := func(c Coord) bool {
		b, err := g.At(c)
		return err == nil && !isSolidGlyph(b)
	}
	inBounds := func(c Coord) bool {
		_, err := g.At(c)
		return err == nil
	}
	return NewFloodFind(traversable, inBounds)
}

func Test_FloodFind_OpenGridConnects(t *testing.T) {
	ff := floodOver(
		"...",
		"...",
		"...",
	)
	ff.AddPoint(Coord{2, 2})
	ff.AddPoint(Coord{0, 2})
	if !ff.PointsConnectedFrom(Coord{0, 0}) {
		t.Fatalf("open grid must connect everything")
	}
}

func Test_FloodFind_WallDisconnects(t *testing.T) {
	ff := floodOver(
		".x.",
		".x.",
		".x.",
	)
	ff.AddPoint(Coord{2, 1})
	if ff.PointsConnectedFrom(Coord{0, 1}) {
		t.Fatalf("full wall column must disconnect the sides")
	}
}

func Test_FloodFind_DiagonalPolicy(t *testing.T) {
	// The open cells only touch at a corner.
	lines := []string{
		".x",
		"x.",
	}
	ortho := floodOver(lines...)
	ortho.AddPoint(Coord{1, 1})
	if ortho.PointsConnectedFrom(Coord{0, 0}) {
		t.Fatalf("orthogonal policy must not cross a corner")
	}

	diag := floodOver(lines...)
	diag.Policy = OrthogonalAndDiagonal
	diag.AddPoint(Coord{1, 1})
	if !diag.PointsConnectedFrom(Coord{0, 0}) {
		t.Fatalf("diagonal policy must cross a corner")
	}
}

func Test_FloodFind_SolidStartNeverConnects(t *testing.T) {
	ff := floodOver(
		"x.",
		"..",
	)
	ff.AddPoint(Coord{1, 1})
	if ff.PointsConnectedFrom(Coord{0, 0}) {
		t.Fatalf("a solid start cell cannot reach anything")
	}
}

func Test_MapDef_Traversable_HonorsKeyedFeature(t *testing.T) {
	m := newTestMap(t,
		"CCC",
	)
	// 'C' is not a wall glyph, so it starts traversable.
	if !m.TraversableAt(Coord{1, 0}) {
		t.Fatalf("plain glyph should be traversable")
	}
	// Rebinding 'C' to lava makes the cell solid for connectivity.
	mustNoErr(t, m.AddKeyFeat("C = lava"))
	if m.TraversableAt(Coord{1, 0}) {
		t.Fatalf("keyed lava feature must block")
	}
}

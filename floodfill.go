// floodfill.go — generic flood-fill connectivity checker.
//
// FloodFind is parameterized over two caller-supplied collaborators: a
// traversability classifier and a bounds check. It answers "are all of
// these points mutually reachable from a start point without crossing
// non-traversable cells or leaving bounds", breadth first, visiting each
// coordinate at most once, short-circuiting as soon as every wanted point
// has been subsumed into the start's connected component. Runtime is linear
// in the cell count.
package mapdef

import "github.com/zyedidia/generic/mapset"

// NeighborPolicy selects 4- or 8-way expansion.
type NeighborPolicy int

const (
	Orthogonal NeighborPolicy = iota
	OrthogonalAndDiagonal
)

// FloodFind runs reachability queries over a bounded grid.
type FloodFind struct {
	Traversable func(Coord) bool
	InBounds    func(Coord) bool
	Policy      NeighborPolicy

	points []Coord
}

// NewFloodFind builds a checker over the two collaborators with orthogonal
// expansion.
func NewFloodFind(traversable, inBounds func(Coord) bool) *FloodFind {
	return &FloodFind{Traversable: traversable, InBounds: inBounds}
}

// AddPoint adds a seed coordinate that a later PointsConnectedFrom must
// reach.
func (f *FloodFind) AddPoint(c Coord) {
	f.points = append(f.points, c)
}

// PointsConnectedFrom reports whether every added point is reachable from
// start. An out-of-bounds or non-traversable start reaches nothing.
func (f *FloodFind) PointsConnectedFrom(start Coord) bool {
	if len(f.points) == 0 {
		return true
	}
	wanted := mapset.New[Coord]()
	for _, p := range f.points {
		wanted.Put(p)
	}
	remaining := wanted.Size()

	if !f.InBounds(start) || !f.Traversable(start) {
		return false
	}

	visited := mapset.New[Coord]()
	frontier := []Coord{start}
	visited.Put(start)
	if wanted.Has(start) {
		remaining--
	}

	for len(frontier) > 0 && remaining > 0 {
		c := frontier[0]
		frontier = frontier[1:]
		for _, n := range f.neighbors(c) {
			if visited.Has(n) || !f.InBounds(n) || !f.Traversable(n) {
				continue
			}
			visited.Put(n)
			if wanted.Has(n) {
				remaining--
			}
			frontier = append(frontier, n)
		}
	}
	return remaining == 0
}

var orthoSteps = [4]Coord{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
var diagSteps = [4]Coord{{1, -1}, {1, 1}, {-1, 1}, {-1, -1}}

func (f *FloodFind) neighbors(c Coord) []Coord {
	out := make([]Coord, 0, 8)
	for _, d := range orthoSteps {
		out = append(out, Coord{c.X + d.X, c.Y + d.Y})
	}
	if f.Policy == OrthogonalAndDiagonal {
		for _, d := range diagSteps {
			out = append(out, Coord{c.X + d.X, c.Y + d.Y})
		}
	}
	return out
}

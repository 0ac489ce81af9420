package ball

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Grid is a uniform hashed spatial grid used as the broad phase for
// ball-ball pair finding. Bodies are inserted by axis-aligned bounding box;
// FindPairs reports every pair whose boxes overlap, each pair once,
// ascending, so downstream processing is deterministic.
type Grid struct {
	cellSize float64
	cells    [][]int
	cellMask int

	mins []mgl64.Vec2
	maxs []mgl64.Vec2
}

type gridKey struct {
	X, Y int
}

// NewGrid creates a grid with the given cell size; numCells is rounded up
// to a power of two for mask hashing.
func NewGrid(cellSize float64, numCells int) *Grid {
	numCells = nextPowerOfTwo(numCells)
	return &Grid{
		cellSize: cellSize,
		cells:    make([][]int, numCells),
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Clear empties every cell, keeping allocations.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.mins = g.mins[:0]
	g.maxs = g.maxs[:0]
}

// Insert registers index in every cell its bounding box touches.
func (g *Grid) Insert(index int, boxMin, boxMax mgl64.Vec2) {
	for len(g.mins) <= index {
		g.mins = append(g.mins, mgl64.Vec2{})
		g.maxs = append(g.maxs, mgl64.Vec2{})
	}
	g.mins[index] = boxMin
	g.maxs[index] = boxMax

	minCell := g.worldToCell(boxMin)
	maxCell := g.worldToCell(boxMax)
	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			idx := g.hashCell(gridKey{x, y})
			g.cells[idx] = append(g.cells[idx], index)
		}
	}
}

// SortCells orders each cell's contents so pair discovery order does not
// depend on insertion order.
func (g *Grid) SortCells() {
	for i := range g.cells {
		if len(g.cells[i]) > 1 {
			sort.Ints(g.cells[i])
		}
	}
}

// FindPairs returns overlapping pairs [a, b] with a < b, sorted.
func (g *Grid) FindPairs() [][2]int {
	var pairs [][2]int
	seen := make(map[[2]int]bool)

	for _, cell := range g.cells {
		for i := 0; i < len(cell); i++ {
			for j := i + 1; j < len(cell); j++ {
				a, b := cell[i], cell[j]
				if a == b {
					continue
				}
				key := [2]int{a, b}
				if seen[key] {
					continue
				}
				seen[key] = true
				if g.overlaps(a, b) {
					pairs = append(pairs, key)
				}
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

func (g *Grid) overlaps(a, b int) bool {
	return g.mins[a].X() <= g.maxs[b].X() && g.mins[b].X() <= g.maxs[a].X() &&
		g.mins[a].Y() <= g.maxs[b].Y() && g.mins[b].Y() <= g.maxs[a].Y()
}

func (g *Grid) worldToCell(pos mgl64.Vec2) gridKey {
	return gridKey{
		X: int(math.Floor(pos.X() / g.cellSize)),
		Y: int(math.Floor(pos.Y() / g.cellSize)),
	}
}

func (g *Grid) hashCell(key gridKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663)
	return h & g.cellMask
}

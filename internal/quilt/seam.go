package quilt

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kiesman99/quilt/pkg/texture"
)

// cutCell is one entry of the cumulative cut cost grid. back is the offset
// (-1, 0, +1) of the predecessor position in the previous step.
type cutCell struct {
	cost float64
	back int8
}

// SeamFinder computes minimum error boundary cuts through overlap strips.
// It owns a scratch cost grid that is reused across calls, so a SeamFinder
// must not be shared between goroutines.
type SeamFinder struct {
	cells     []cutCell
	last      []float64
	positions int
	steps     int
}

// NewSeamFinder returns a SeamFinder with an empty scratch grid.
func NewSeamFinder() *SeamFinder {
	return &SeamFinder{}
}

func (f *SeamFinder) reset(positions, steps int) {
	n := positions * steps
	if cap(f.cells) < n {
		f.cells = make([]cutCell, n)
	}
	f.cells = f.cells[:n]
	if cap(f.last) < positions {
		f.last = make([]float64, positions)
	}
	f.last = f.last[:positions]
	f.positions, f.steps = positions, steps
}

func (f *SeamFinder) cell(pos, step int) cutCell {
	return f.cells[step*f.positions+pos]
}

// MinCostPath finds the monotonic path through a positions x steps cost grid
// with the lowest accumulated cost. A path holds one position per step and
// moves by at most one position between consecutive steps.
//
// Equal predecessors resolve to the lower offset first (-1, then 0, then +1)
// and the endpoint is the first minimum in ascending position order. Grids
// without positions yield a path of -1 entries.
func (f *SeamFinder) MinCostPath(positions, steps int, cost func(pos, step int) float64) []int {
	if steps <= 0 {
		return []int{}
	}
	path := make([]int, steps)
	if positions <= 0 {
		for i := range path {
			path[i] = -1
		}
		return path
	}

	f.reset(positions, steps)
	inf := math.Inf(1)

	for p := 0; p < positions; p++ {
		f.cells[p] = cutCell{cost: cost(p, 0)}
	}

	for s := 1; s < steps; s++ {
		prev := f.cells[(s-1)*positions : s*positions]
		row := f.cells[s*positions : (s+1)*positions]
		for p := range row {
			left, right := inf, inf
			if p > 0 {
				left = prev[p-1].cost
			}
			middle := prev[p].cost
			if p < positions-1 {
				right = prev[p+1].cost
			}

			ec := cost(p, s)
			switch {
			case left <= middle && left <= right:
				row[p] = cutCell{cost: left + ec, back: -1}
			case middle <= left && middle <= right:
				row[p] = cutCell{cost: middle + ec, back: 0}
			default:
				row[p] = cutCell{cost: right + ec, back: 1}
			}
		}
	}

	for p := range f.last {
		f.last[p] = f.cell(p, steps-1).cost
	}
	path[steps-1] = floats.MinIdx(f.last)

	for s := steps - 1; s > 0; s-- {
		path[s-1] = path[s] + int(f.cell(path[s], s).back)
	}
	return path
}

// Vertical cuts the width x height strip of canvas at origin against the
// same strip of tile (from the tile's top-left corner). The result has one
// entry per row; pixels of that row with a column greater than the entry
// belong to the tile.
func (f *SeamFinder) Vertical(canvas *texture.Buffer, origin image.Point, tile texture.View, width, height int) []int {
	return f.MinCostPath(width-1, height, func(col, row int) float64 {
		return cutCost(canvas.Pixel(origin.X+col, origin.Y+row), tile.Pixel(col+1, row))
	})
}

// Horizontal is the transpose of Vertical: one entry per column, pixels with
// a row greater than the entry belong to the tile.
func (f *SeamFinder) Horizontal(canvas *texture.Buffer, origin image.Point, tile texture.View, width, height int) []int {
	return f.MinCostPath(height-1, width, func(row, col int) float64 {
		return cutCost(canvas.Pixel(origin.X+col, origin.Y+row), tile.Pixel(col, row+1))
	})
}

// cutCost is the squared luminance of the absolute channel difference
// between the kept pixel and its neighbour in the incoming tile.
func cutCost(kept, incoming texture.RGB) float64 {
	l := kept.Sub(incoming).Abs().Lum()
	return l * l
}

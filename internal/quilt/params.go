package quilt

import (
	"errors"
	"fmt"
	"math"
)

// DefaultTolerance is the relative MSE band used by error-biased selection.
const DefaultTolerance = 0.1

// NearDuplicateMSE is the overlap error at or below which a candidate is
// treated as a copy of already painted pixels and skipped.
const NearDuplicateMSE = 0.001

var (
	// ErrInvalidParams is wrapped by every ParamError.
	ErrInvalidParams = errors.New("invalid quilting parameters")
	// ErrSourceTooSmall is returned when the source cannot hold a single tile
	// with at least one alternative origin.
	ErrSourceTooSmall = errors.New("source image too small for tile size")
	// ErrInvalidTarget is returned for non-positive output dimensions.
	ErrInvalidTarget = errors.New("invalid target size")
)

// ParamError describes a rejected parameter.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParams
}

// Params is the immutable per-run configuration.
type Params struct {
	TileWidth  int
	TileHeight int
	// SeamWidth and SeamHeight are the overlap extents between neighbouring
	// tiles.
	SeamWidth  int
	SeamHeight int
	// Tolerance widens the accepted MSE band to best*(1+Tolerance).
	Tolerance float64
	// MSESelection picks tiles by overlap error instead of uniformly.
	MSESelection bool
	// MinCut blends tiles along a minimum error boundary cut instead of
	// overwriting.
	MinCut bool
}

// DefaultSeam returns the overlap extent used when none is given for a tile
// extent: one sixth of the tile, at least one pixel.
func DefaultSeam(tile int) int {
	return max(1, tile/6)
}

// DefaultParams returns parameters for the given tile size with default seams,
// tolerance, MSE selection and min-cut enabled.
func DefaultParams(tileWidth, tileHeight int) Params {
	return Params{
		TileWidth:    tileWidth,
		TileHeight:   tileHeight,
		SeamWidth:    DefaultSeam(tileWidth),
		SeamHeight:   DefaultSeam(tileHeight),
		Tolerance:    DefaultTolerance,
		MSESelection: true,
		MinCut:       true,
	}
}

// Validate checks the parameters independent of any source image.
func (p Params) Validate() error {
	switch {
	case p.SeamWidth < 1:
		return &ParamError{"seamW", fmt.Sprintf("must be at least 1, got %d", p.SeamWidth)}
	case p.SeamHeight < 1:
		return &ParamError{"seamH", fmt.Sprintf("must be at least 1, got %d", p.SeamHeight)}
	case p.TileWidth <= p.SeamWidth:
		return &ParamError{"tileW", fmt.Sprintf("must exceed seam width %d, got %d", p.SeamWidth, p.TileWidth)}
	case p.TileHeight <= p.SeamHeight:
		return &ParamError{"tileH", fmt.Sprintf("must exceed seam height %d, got %d", p.SeamHeight, p.TileHeight)}
	case p.Tolerance < 0 || math.IsNaN(p.Tolerance) || math.IsInf(p.Tolerance, 0):
		return &ParamError{"tolerance", fmt.Sprintf("must be a finite value >= 0, got %v", p.Tolerance)}
	}
	return nil
}

// Grid describes the tile layout that covers a requested output size.
type Grid struct {
	// TilesX and TilesY are the tile counts per axis.
	TilesX, TilesY int
	// Width and Height are the canvas extents covered by the grid; they may
	// exceed the requested output size.
	Width, Height int
	StepX, StepY  int
}

// Total returns the number of tile placements.
func (g Grid) Total() int {
	return g.TilesX * g.TilesY
}

// Origin returns the canvas pixel origin of the tile at (col, row).
func (g Grid) Origin(col, row int) (int, int) {
	return col * g.StepX, row * g.StepY
}

// GridFor computes the tile grid for the given output size. At least one tile
// is placed on each axis.
func (p Params) GridFor(width, height int) Grid {
	g := Grid{
		StepX: p.TileWidth - p.SeamWidth,
		StepY: p.TileHeight - p.SeamHeight,
	}
	g.TilesX = tileCount(width, p.SeamWidth, g.StepX)
	g.TilesY = tileCount(height, p.SeamHeight, g.StepY)
	g.Width = g.TilesX*p.TileWidth - (g.TilesX-1)*p.SeamWidth
	g.Height = g.TilesY*p.TileHeight - (g.TilesY-1)*p.SeamHeight
	return g
}

// tileCount is ceil((target-seam)/step), clamped to one.
func tileCount(target, seam, step int) int {
	n := target - seam
	if n <= 0 {
		return 1
	}
	return (n + step - 1) / step
}

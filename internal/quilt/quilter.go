package quilt

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/kiesman99/quilt/pkg/texture"
)

// ProgressFunc is called after each tile placement with the number of tiles
// placed so far and the total for the run.
type ProgressFunc func(done, total int)

// Option configures a Quilter.
type Option func(*options)

type options struct {
	rng      *rand.Rand
	workers  int
	progress ProgressFunc
}

// WithRand sets the random source used for tile selection.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithSeed seeds a PCG random source, making runs repeatable.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithWorkers bounds the goroutines used to evaluate tile candidates.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Quilter synthesizes textures by image quilting. A Quilter holds mutable
// scratch state and a random source, so it must not run concurrently with
// itself.
type Quilter struct {
	params   Params
	selector *Selector
	seams    *SeamFinder
	progress ProgressFunc
}

// New creates a Quilter. Without WithRand or WithSeed the random source is
// seeded from system entropy.
func New(params Params, opts ...Option) (*Quilter, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Quilter{
		params:   params,
		selector: NewSelector(params, o.rng, o.workers),
		seams:    NewSeamFinder(),
		progress: o.progress,
	}, nil
}

// Quilt synthesizes a width x height texture from source. Tiles are placed
// in row-major order; each placement reads pixels written by earlier ones.
// Cancellation is checked between tiles.
func (q *Quilter) Quilt(ctx context.Context, source *texture.Buffer, width, height int) (*texture.Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTarget, width, height)
	}
	if _, _, err := q.selector.originRange(source); err != nil {
		return nil, err
	}

	grid := q.params.GridFor(width, height)
	canvas := texture.NewBuffer(grid.Width, grid.Height)

	logger := Logger()
	logger.Info("quilting started",
		slog.Int("width", width), slog.Int("height", height),
		slog.Int("tiles_x", grid.TilesX), slog.Int("tiles_y", grid.TilesY))
	start := time.Now()

	done := 0
	for row := 0; row < grid.TilesY; row++ {
		for col := 0; col < grid.TilesX; col++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			x, y := grid.Origin(col, row)
			at := image.Pt(x, y)

			tile, err := q.selector.Select(ctx, source, canvas, at)
			if err != nil {
				return nil, fmt.Errorf("select tile (%d,%d): %w", col, row, err)
			}
			q.place(tile, canvas, at)

			done++
			if q.progress != nil {
				q.progress(done, grid.Total())
			}
		}
	}

	logger.Info("quilting finished",
		slog.Int("tiles", grid.Total()), slog.Duration("elapsed", time.Since(start)))

	return canvas.Crop(width, height), nil
}

// place composites tile into canvas with its top-left corner at at.
func (q *Quilter) place(tile texture.View, canvas *texture.Buffer, at image.Point) {
	p := q.params
	w, h := tile.Width(), tile.Height()

	if !p.MinCut || (at.X == 0 && at.Y == 0) {
		copyTile(tile, canvas, at, func(int, int) bool { return true })
		return
	}

	switch {
	case at.Y == 0:
		vertical := q.seams.Vertical(canvas, at, tile, p.SeamWidth, h)
		copyTile(tile, canvas, at, func(x, y int) bool {
			return x > vertical[y]
		})
	case at.X == 0:
		horizontal := q.seams.Horizontal(canvas, at, tile, w, p.SeamHeight)
		copyTile(tile, canvas, at, func(x, y int) bool {
			return y > horizontal[x]
		})
	default:
		// Both cuts are computed before any pixel of this tile is written.
		vertical := q.seams.Vertical(canvas, at, tile, p.SeamWidth, h)
		horizontal := q.seams.Horizontal(canvas, at, tile, w, p.SeamHeight)
		copyTile(tile, canvas, at, func(x, y int) bool {
			return x > vertical[y] && y > horizontal[x]
		})
	}
}

// copyTile writes the tile pixels for which take reports true.
func copyTile(tile texture.View, canvas *texture.Buffer, at image.Point, take func(x, y int) bool) {
	for y := 0; y < tile.Height(); y++ {
		for x := 0; x < tile.Width(); x++ {
			if take(x, y) {
				canvas.SetPixel(at.X+x, at.Y+y, tile.Pixel(x, y))
			}
		}
	}
}

package quilt

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/quilt/pkg/texture"
)

// Candidate is a source tile origin together with its overlap error at the
// placement being evaluated.
type Candidate struct {
	Origin image.Point
	MSE    float64
}

// Selector picks source tiles for canvas placements.
type Selector struct {
	params  Params
	rng     *rand.Rand
	workers int
}

// NewSelector creates a Selector drawing from rng. workers bounds the number
// of goroutines evaluating candidates; values below one use GOMAXPROCS.
func NewSelector(params Params, rng *rand.Rand, workers int) *Selector {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Selector{params: params, rng: rng, workers: workers}
}

// originRange returns the number of valid tile origins along each axis of
// source. Origins range over [0, size-tile).
func (s *Selector) originRange(source *texture.Buffer) (int, int, error) {
	cols := source.Width() - s.params.TileWidth
	rows := source.Height() - s.params.TileHeight
	if cols <= 0 || rows <= 0 {
		return 0, 0, fmt.Errorf("%w: source %dx%d, tile %dx%d", ErrSourceTooSmall,
			source.Width(), source.Height(), s.params.TileWidth, s.params.TileHeight)
	}
	return cols, rows, nil
}

// Select returns the source tile to place with its top-left corner at the
// canvas position at.
func (s *Selector) Select(ctx context.Context, source, canvas *texture.Buffer, at image.Point) (texture.View, error) {
	cols, rows, err := s.originRange(source)
	if err != nil {
		return texture.View{}, err
	}

	if !s.params.MSESelection {
		x, y := s.rng.IntN(cols), s.rng.IntN(rows)
		return source.View(x, y, s.params.TileWidth, s.params.TileHeight), nil
	}

	candidates, err := s.Evaluate(ctx, source, canvas, at)
	if err != nil {
		return texture.View{}, err
	}

	accepted, fallback := Accept(candidates, s.params.Tolerance, at == image.Point{})
	if fallback {
		Logger().Warn("all candidates are near duplicates, using best match",
			slog.Int("x", at.X), slog.Int("y", at.Y), slog.Int("candidates", len(candidates)))
	}

	pick := accepted[s.rng.IntN(len(accepted))]
	Logger().Debug("tile selected",
		slog.Int("x", at.X), slog.Int("y", at.Y),
		slog.Int("src_x", pick.Origin.X), slog.Int("src_y", pick.Origin.Y),
		slog.Float64("mse", pick.MSE), slog.Int("accepted", len(accepted)))

	return source.View(pick.Origin.X, pick.Origin.Y, s.params.TileWidth, s.params.TileHeight), nil
}

// Evaluate computes the overlap MSE of every valid source origin against the
// canvas at the placement at. Candidates are returned in row-major origin
// order. The canvas is only read, so source rows are evaluated concurrently.
func (s *Selector) Evaluate(ctx context.Context, source, canvas *texture.Buffer, at image.Point) ([]Candidate, error) {
	cols, rows, err := s.originRange(source)
	if err != nil {
		return nil, err
	}

	p := s.params
	out := make([]Candidate, cols*rows)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for y := 0; y < rows; y++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for x := 0; x < cols; x++ {
				origin := image.Pt(x, y)
				out[y*cols+x] = Candidate{
					Origin: origin,
					MSE: OverlapMSE(source, canvas, origin, at,
						p.TileWidth, p.TileHeight, p.SeamWidth, p.SeamHeight),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Accept ranks candidates by MSE and returns those within the tolerance band
// best*(1+tolerance), in ascending MSE order (ties keep input order).
//
// Unless first is set, candidates with MSE at or below NearDuplicateMSE are
// excluded. If that leaves nothing, the single best candidate is returned
// and fallback is true.
func Accept(candidates []Candidate, tolerance float64, first bool) (accepted []Candidate, fallback bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	kept := candidates
	if !first {
		kept = lo.Filter(candidates, func(c Candidate, _ int) bool {
			return c.MSE > NearDuplicateMSE
		})
	}
	if len(kept) == 0 {
		best := lo.MinBy(candidates, func(a, b Candidate) bool {
			return a.MSE < b.MSE
		})
		return []Candidate{best}, true
	}

	ranked := slices.Clone(kept)
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		return cmp.Compare(a.MSE, b.MSE)
	})

	limit := ranked[0].MSE * (1 + tolerance)
	n := 0
	for n < len(ranked) && ranked[n].MSE <= limit {
		n++
	}
	return ranked[:n], false
}

package quilt

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"testing"

	"github.com/kiesman99/quilt/pkg/texture"
)

func TestGridFor(t *testing.T) {
	tests := []struct {
		tile, seam, target     int
		wantCount, wantExtent int
	}{
		{4, 1, 10, 3, 10},
		{4, 1, 11, 4, 13},
		{4, 1, 1, 1, 4},
		{2, 1, 5, 4, 5},
		{6, 2, 20, 5, 22},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("tile%d_seam%d_target%d", tc.tile, tc.seam, tc.target), func(t *testing.T) {
			p := Params{TileWidth: tc.tile, TileHeight: tc.tile, SeamWidth: tc.seam, SeamHeight: tc.seam}
			g := p.GridFor(tc.target, tc.target)
			if g.TilesX != tc.wantCount || g.TilesY != tc.wantCount {
				t.Errorf("tiles = %dx%d, want %d", g.TilesX, g.TilesY, tc.wantCount)
			}
			if g.Width != tc.wantExtent || g.Height != tc.wantExtent {
				t.Errorf("canvas = %dx%d, want %d", g.Width, g.Height, tc.wantExtent)
			}
			if g.Width < tc.target {
				t.Errorf("canvas width %d does not cover target %d", g.Width, tc.target)
			}
		})
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		field string
	}{
		{"defaults", DefaultParams(12, 12), ""},
		{"minimal tile", Params{TileWidth: 2, TileHeight: 2, SeamWidth: 1, SeamHeight: 1}, ""},
		{"zero seam", Params{TileWidth: 4, TileHeight: 4, SeamWidth: 0, SeamHeight: 1}, "seamW"},
		{"seam equals tile", Params{TileWidth: 4, TileHeight: 4, SeamWidth: 1, SeamHeight: 4}, "tileH"},
		{"negative tolerance", Params{TileWidth: 4, TileHeight: 4, SeamWidth: 1, SeamHeight: 1, Tolerance: -1}, "tolerance"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var pe *ParamError
			if !errors.As(err, &pe) || pe.Field != tc.field {
				t.Fatalf("err = %v, want ParamError on %s", err, tc.field)
			}
			if !errors.Is(err, ErrInvalidParams) {
				t.Error("ParamError should wrap ErrInvalidParams")
			}
		})
	}
}

func TestDefaultSeam(t *testing.T) {
	for tile, want := range map[int]int{2: 1, 6: 1, 11: 1, 12: 2, 60: 10} {
		if got := DefaultSeam(tile); got != want {
			t.Errorf("DefaultSeam(%d) = %d, want %d", tile, got, want)
		}
	}
}

func TestQuiltOutputSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(31, 32))
	source := randomBuffer(rng, 14, 12)

	tests := []struct {
		tileW, tileH, seamW, seamH int
		width, height              int
	}{
		{4, 4, 1, 1, 10, 10},
		{4, 4, 1, 1, 11, 7},
		{5, 3, 2, 1, 13, 9},
		{6, 6, 2, 2, 3, 3},
		{2, 2, 1, 1, 7, 5},
		{8, 5, 3, 2, 17, 21},
	}

	for _, tc := range tests {
		for _, flags := range [][2]bool{{true, true}, {true, false}, {false, true}, {false, false}} {
			name := fmt.Sprintf("%dx%d_seam%dx%d_to_%dx%d_mse%v_cut%v",
				tc.tileW, tc.tileH, tc.seamW, tc.seamH, tc.width, tc.height, flags[0], flags[1])
			t.Run(name, func(t *testing.T) {
				params := Params{
					TileWidth: tc.tileW, TileHeight: tc.tileH,
					SeamWidth: tc.seamW, SeamHeight: tc.seamH,
					Tolerance: DefaultTolerance, MSESelection: flags[0], MinCut: flags[1],
				}
				q, err := New(params, WithSeed(9))
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				out, err := q.Quilt(context.Background(), source, tc.width, tc.height)
				if err != nil {
					t.Fatalf("Quilt: %v", err)
				}
				if out.Width() != tc.width || out.Height() != tc.height {
					t.Errorf("output = %dx%d, want %dx%d", out.Width(), out.Height(), tc.width, tc.height)
				}
			})
		}
	}
}

func TestQuiltUniformSource(t *testing.T) {
	c := texture.RGB{R: 0.3, G: 0.6, B: 0.9}
	source := texture.Filled(8, 8, c)
	params := Params{TileWidth: 4, TileHeight: 4, SeamWidth: 1, SeamHeight: 1, Tolerance: 0.1}

	q, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := q.Quilt(context.Background(), source, 10, 10)
	if err != nil {
		t.Fatalf("Quilt: %v", err)
	}
	if out.Width() != 10 || out.Height() != 10 {
		t.Fatalf("output = %dx%d, want 10x10", out.Width(), out.Height())
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if got := out.Pixel(x, y); got != c {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, c)
			}
		}
	}
}

// Every source pixel has a red channel of at least 0.1, so a black output
// pixel means no tile covered it.
func TestQuiltFullCoverage(t *testing.T) {
	rng := rand.New(rand.NewPCG(41, 42))
	source := texture.NewBuffer(10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			source.SetPixel(x, y, texture.RGB{R: 0.1 + 0.9*rng.Float64(), G: rng.Float64(), B: rng.Float64()})
		}
	}

	for _, sz := range []struct{ tile, seam int }{{2, 1}, {3, 2}, {5, 4}, {5, 2}} {
		for _, mse := range []bool{true, false} {
			t.Run(fmt.Sprintf("tile%d_seam%d_mse%v", sz.tile, sz.seam, mse), func(t *testing.T) {
				params := Params{
					TileWidth: sz.tile, TileHeight: sz.tile, SeamWidth: sz.seam, SeamHeight: sz.seam,
					Tolerance: 0.1, MSESelection: mse, MinCut: true,
				}
				q, err := New(params, WithSeed(3))
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				grid := params.GridFor(12, 9)
				out, err := q.Quilt(context.Background(), source, grid.Width, grid.Height)
				if err != nil {
					t.Fatalf("Quilt: %v", err)
				}
				for y := 0; y < out.Height(); y++ {
					for x := 0; x < out.Width(); x++ {
						if out.Pixel(x, y).R < 0.1 {
							t.Fatalf("pixel (%d,%d) was never painted", x, y)
						}
					}
				}
			})
		}
	}
}

func TestQuiltDeterministicWithSeed(t *testing.T) {
	rng := rand.New(rand.NewPCG(51, 52))
	source := randomBuffer(rng, 16, 16)
	params := DefaultParams(6, 6)

	run := func(workers int) *texture.Buffer {
		q, err := New(params, WithSeed(1234), WithWorkers(workers))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out, err := q.Quilt(context.Background(), source, 20, 14)
		if err != nil {
			t.Fatalf("Quilt: %v", err)
		}
		return out
	}

	a, b := run(1), run(4)
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			if a.Pixel(x, y) != b.Pixel(x, y) {
				t.Fatalf("runs with the same seed differ at (%d,%d)", x, y)
			}
		}
	}
}

func TestQuiltProgress(t *testing.T) {
	source := randomBuffer(rand.New(rand.NewPCG(1, 1)), 10, 10)
	params := DefaultParams(4, 4)

	var calls []int
	total := -1
	q, err := New(params, WithSeed(1), WithProgress(func(done, n int) {
		calls = append(calls, done)
		total = n
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := q.Quilt(context.Background(), source, 10, 7); err != nil {
		t.Fatalf("Quilt: %v", err)
	}

	want := params.GridFor(10, 7).Total()
	if total != want || len(calls) != want {
		t.Fatalf("progress total = %d over %d calls, want %d", total, len(calls), want)
	}
	for i, done := range calls {
		if done != i+1 {
			t.Errorf("call %d reported done = %d, want %d", i, done, i+1)
		}
	}
}

func TestQuiltErrors(t *testing.T) {
	q, err := New(DefaultParams(4, 4), WithSeed(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := q.Quilt(context.Background(), texture.NewBuffer(8, 8), 0, 5); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("zero width: err = %v, want ErrInvalidTarget", err)
	}
	if _, err := q.Quilt(context.Background(), texture.NewBuffer(4, 8), 5, 5); !errors.Is(err, ErrSourceTooSmall) {
		t.Errorf("narrow source: err = %v, want ErrSourceTooSmall", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Quilt(ctx, texture.NewBuffer(8, 8), 5, 5); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: err = %v, want context.Canceled", err)
	}

	if _, err := New(Params{TileWidth: 1, TileHeight: 4, SeamWidth: 1, SeamHeight: 1}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("invalid params: err = %v, want ErrInvalidParams", err)
	}
}

// placeAndCompare composites tile at at and checks every tile pixel against
// the expected owner.
func placeAndCompare(t *testing.T, q *Quilter, canvas *texture.Buffer, tile texture.View, at image.Point, fromTile func(x, y int) bool) {
	t.Helper()
	before := canvas.Clone()
	q.place(tile, canvas, at)

	for y := 0; y < tile.Height(); y++ {
		for x := 0; x < tile.Width(); x++ {
			got := canvas.Pixel(at.X+x, at.Y+y)
			want := before.Pixel(at.X+x, at.Y+y)
			if fromTile(x, y) {
				want = tile.Pixel(x, y)
			}
			if got != want {
				t.Fatalf("pixel (%d,%d) of tile at %v = %v, want %v", x, y, at, got, want)
			}
		}
	}
}

func TestPlaceHardPartition(t *testing.T) {
	rng := rand.New(rand.NewPCG(61, 62))
	params := Params{TileWidth: 6, TileHeight: 5, SeamWidth: 3, SeamHeight: 2, Tolerance: 0.1, MinCut: true}
	q, err := New(params, WithSeed(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tile := randomBuffer(rng, 6, 5).View(0, 0, 6, 5)

	t.Run("first row", func(t *testing.T) {
		canvas := randomBuffer(rng, 12, 12)
		at := image.Pt(3, 0)
		v := NewSeamFinder().Vertical(canvas, at, tile, 3, 5)
		placeAndCompare(t, q, canvas, tile, at, func(x, y int) bool { return x > v[y] })
	})

	t.Run("first column", func(t *testing.T) {
		canvas := randomBuffer(rng, 12, 12)
		at := image.Pt(0, 3)
		h := NewSeamFinder().Horizontal(canvas, at, tile, 6, 2)
		placeAndCompare(t, q, canvas, tile, at, func(x, y int) bool { return y > h[x] })
	})

	t.Run("interior", func(t *testing.T) {
		canvas := randomBuffer(rng, 12, 12)
		at := image.Pt(3, 3)
		f := NewSeamFinder()
		v := f.Vertical(canvas, at, tile, 3, 5)
		h := f.Horizontal(canvas, at, tile, 6, 2)
		placeAndCompare(t, q, canvas, tile, at, func(x, y int) bool { return x > v[y] && y > h[x] })
	})

	t.Run("origin copies", func(t *testing.T) {
		canvas := randomBuffer(rng, 12, 12)
		placeAndCompare(t, q, canvas, tile, image.Point{}, func(int, int) bool { return true })
	})
}

func TestPlaceWithoutMinCutOverwrites(t *testing.T) {
	rng := rand.New(rand.NewPCG(71, 72))
	params := Params{TileWidth: 4, TileHeight: 4, SeamWidth: 2, SeamHeight: 2}
	q, err := New(params, WithSeed(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tile := randomBuffer(rng, 4, 4).View(0, 0, 4, 4)
	canvas := randomBuffer(rng, 10, 10)
	placeAndCompare(t, q, canvas, tile, image.Pt(2, 2), func(int, int) bool { return true })
}

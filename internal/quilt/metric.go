package quilt

import (
	"image"

	"github.com/kiesman99/quilt/pkg/texture"
)

// RegionErrorSum returns the sum of squared luminance differences between
// the w x h region of a at originA and the same-shaped region of b at originB.
func RegionErrorSum(a *texture.Buffer, originA image.Point, b *texture.Buffer, originB image.Point, w, h int) float64 {
	var sum float64
	for y := 0; y < h; y++ {
		ya, yb := originA.Y+y, originB.Y+y
		for x := 0; x < w; x++ {
			d := a.Pixel(originA.X+x, ya).Sub(b.Pixel(originB.X+x, yb)).Lum()
			sum += d * d
		}
	}
	return sum
}

// OverlapMSE measures how well the tileW x tileH source patch at src fits the
// canvas pixels already painted around tgt. Only the overlap with earlier
// tiles is compared:
//
//   - tgt at the canvas origin: 0, nothing is painted yet
//   - first row: the left seamW x tileH strip
//   - first column: the top tileW x seamH strip
//   - interior: the L-shaped union of both strips
//
// The result is the error sum over the overlap divided by its pixel count.
func OverlapMSE(source, canvas *texture.Buffer, src, tgt image.Point, tileW, tileH, seamW, seamH int) float64 {
	switch {
	case tgt.X <= 0 && tgt.Y <= 0:
		return 0
	case tgt.Y <= 0:
		sum := RegionErrorSum(source, src, canvas, tgt, seamW, tileH)
		return sum / float64(seamW*tileH)
	case tgt.X <= 0:
		sum := RegionErrorSum(source, src, canvas, tgt, tileW, seamH)
		return sum / float64(tileW*seamH)
	}

	// Corner, left strip below the corner, top strip right of the corner.
	corner := RegionErrorSum(source, src, canvas, tgt, seamW, seamH)
	left := RegionErrorSum(source, src.Add(image.Pt(0, seamH)), canvas, tgt.Add(image.Pt(0, seamH)),
		seamW, tileH-seamH)
	top := RegionErrorSum(source, src.Add(image.Pt(seamW, 0)), canvas, tgt.Add(image.Pt(seamW, 0)),
		tileW-seamW, seamH)

	pixels := seamW*seamH + seamW*(tileH-seamH) + (tileW-seamW)*seamH
	return (corner + left + top) / float64(pixels)
}

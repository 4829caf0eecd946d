// Package raster implements a thick-line variant of the Xiaolin Wu
// anti-aliased line algorithm: each pixel a line touches is emitted with a
// fractional intensity in [0,1] rather than drawn solid.
package raster

import "math"

// PixelFunc receives one touched pixel and its coverage intensity.
type PixelFunc func(x, y int, intensity float64)

// Rasterizer draws thick anti-aliased lines. The zero value is ready to
// use; Rasterizer holds no state between calls and can be shared by
// multiple goroutines as long as each call supplies its own sink.
type Rasterizer struct{}

// Draw rasterizes the line from (x0,y0) to (x1,y1) with the given width (in
// pixels, before gradient scaling), calling sink once per touched pixel.
//
// https://github.com/jambolo/thick-xiaolin-wu/blob/master/cs/thick-xiaolin-wu.coffee
func (Rasterizer) Draw(x0, y0, x1, y1, width float64, sink PixelFunc) {
	isSteep := math.Abs(y1-y0) > math.Abs(x1-x0)
	if isSteep {
		x0, y0 = y0, x0
		x1, y1 = y1, x1
	}
	if x0 > x1 {
		x0, x1 = x1, x0
		y0, y1 = y1, y0
	}

	dx := x1 - x0
	dy := y1 - y0
	gradient := 1.0
	if dx > 0.0 {
		gradient = dy / dx
	}

	width *= math.Sqrt(1.0 + gradient*gradient)
	intWidth := int64(width)

	xPixels1, _ := drawEndPoint(x1, y1, width, gradient, isSteep, sink)
	xPixels0, yPoint0 := drawEndPoint(x0, y0, width, gradient, isSteep, sink)

	intery := yPoint0 + gradient

	for x := xPixels0 + 1; x < xPixels1; x++ {
		fPart := intery - math.Floor(intery)
		rfPart := 1.0 - fPart
		y := int64(intery)

		emit(sink, x, y, rfPart, isSteep)
		for i := int64(1); i < intWidth; i++ {
			emit(sink, x, y+i, 1.0, isSteep)
		}
		emit(sink, x, y+intWidth, fPart, isSteep)

		intery += gradient
	}
}

// drawEndPoint draws one line endpoint: the two fractional-coverage gap
// pixels plus the full-intensity pixels spanning the line's width between
// them. It returns the rounded x pixel and the fractional y coordinate the
// interior loop's first intery value is seeded from.
func drawEndPoint(x, y, width, gradient float64, isSteep bool, sink PixelFunc) (int64, float64) {
	xPoint := math.Round(x)
	yPoint := y - (width-1.0)*0.5 + gradient*(xPoint-x)
	xGap := 1.0 - (x + 0.5 - xPoint)
	xPixels := int64(xPoint)
	yPixels := int64(yPoint)
	fPart := yPoint - math.Floor(yPoint)
	rfPart := 1.0 - fPart
	intWidth := int64(width)

	emit(sink, xPixels, yPixels, rfPart*xGap, isSteep)
	for i := int64(1); i < intWidth; i++ {
		emit(sink, xPixels, yPixels+i, 1.0, isSteep)
	}
	emit(sink, xPixels, yPixels+intWidth, fPart*xGap, isSteep)

	return xPixels, yPoint
}

func emit(sink PixelFunc, a, b int64, intensity float64, isSteep bool) {
	if isSteep {
		sink(int(b), int(a), intensity)
	} else {
		sink(int(a), int(b), intensity)
	}
}

package compose

import (
	"fmt"
	"image"
	"math"

	"github.com/imagineos/tapthepost/internal/models"
)

const (
	// DefaultMaxPixels bounds both decoded images and composite canvases
	DefaultMaxPixels int64 = 100_000_000

	// CanvasPixelCeiling is the largest canvas Composite will ever allocate
	CanvasPixelCeiling int64 = 1 << 30
)

// Layout computes the canvas size and per-image rectangles for mode.
// dims holds the decoded width/height of each image in working set order.
func Layout(mode models.LayoutMode, dims []image.Point) (models.CompositeSpec, error) {
	return LayoutWithin(mode, dims, DefaultMaxPixels)
}

// LayoutWithin is Layout with an explicit canvas pixel budget. A canvas over
// the budget is a *CompositeError, reported before anything is allocated.
func LayoutWithin(mode models.LayoutMode, dims []image.Point, maxPixels int64) (models.CompositeSpec, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if len(dims) == 0 {
		return models.CompositeSpec{}, &PreconditionError{Reason: "no images to composite"}
	}
	for i, d := range dims {
		if d.X <= 0 || d.Y <= 0 {
			return models.CompositeSpec{}, &PreconditionError{Reason: fmt.Sprintf("image %d has invalid dimensions %dx%d", i+1, d.X, d.Y)}
		}
	}

	switch mode {
	case models.LayoutVertical:
		return layoutVertical(dims, maxPixels)
	case models.LayoutHorizontal:
		return layoutHorizontal(dims, maxPixels)
	case models.LayoutGrid:
		return layoutGrid(dims, maxPixels)
	default:
		return models.CompositeSpec{}, &PreconditionError{Reason: fmt.Sprintf("unknown layout mode %q", mode)}
	}
}

// Images share the widest width and keep their aspect ratio.
func layoutVertical(dims []image.Point, maxPixels int64) (models.CompositeSpec, error) {
	maxWidth := 0
	for _, d := range dims {
		maxWidth = max(maxWidth, d.X)
	}

	width := float64(maxWidth)
	cells := make([]models.Rect, len(dims))
	y := 0.0
	for i, d := range dims {
		h := float64(d.Y) * width / float64(d.X)
		cells[i] = models.Rect{X: 0, Y: y, W: width, H: h}
		y += h
	}

	w, h, err := canvasSize(width, y, maxPixels)
	if err != nil {
		return models.CompositeSpec{}, err
	}

	return models.CompositeSpec{
		Mode:   models.LayoutVertical,
		Width:  w,
		Height: h,
		Cells:  cells,
	}, nil
}

// Images share the tallest height and keep their aspect ratio.
func layoutHorizontal(dims []image.Point, maxPixels int64) (models.CompositeSpec, error) {
	maxHeight := 0
	for _, d := range dims {
		maxHeight = max(maxHeight, d.Y)
	}

	height := float64(maxHeight)
	cells := make([]models.Rect, len(dims))
	x := 0.0
	for i, d := range dims {
		w := float64(d.X) * height / float64(d.Y)
		cells[i] = models.Rect{X: x, Y: 0, W: w, H: height}
		x += w
	}

	w, h, err := canvasSize(x, height, maxPixels)
	if err != nil {
		return models.CompositeSpec{}, err
	}

	return models.CompositeSpec{
		Mode:   models.LayoutHorizontal,
		Width:  w,
		Height: h,
		Cells:  cells,
	}, nil
}

// Every cell takes the largest width and the largest height seen, and each
// image is stretched to fill its cell without preserving aspect ratio.
func layoutGrid(dims []image.Point, maxPixels int64) (models.CompositeSpec, error) {
	cols, rows := GridShape(len(dims))

	cellW, cellH := 0, 0
	for _, d := range dims {
		cellW = max(cellW, d.X)
		cellH = max(cellH, d.Y)
	}

	cells := make([]models.Rect, len(dims))
	for i := range dims {
		row, col := i/cols, i%cols
		cells[i] = models.Rect{
			X: float64(col * cellW),
			Y: float64(row * cellH),
			W: float64(cellW),
			H: float64(cellH),
		}
	}

	w, h, err := canvasSize(float64(cols)*float64(cellW), float64(rows)*float64(cellH), maxPixels)
	if err != nil {
		return models.CompositeSpec{}, err
	}

	return models.CompositeSpec{
		Mode:   models.LayoutGrid,
		Width:  w,
		Height: h,
		Cells:  cells,
	}, nil
}

// canvasSize rounds the fractional canvas extent to pixels. The budget is
// checked in float space so oversized extents never reach an int conversion.
func canvasSize(w, h float64, maxPixels int64) (int, int, error) {
	if w*h > float64(maxPixels) {
		return 0, 0, &CompositeError{Err: fmt.Errorf("canvas %.0fx%.0f exceeds the %d pixel limit", w, h, maxPixels)}
	}
	return int(math.Round(w)), int(math.Round(h)), nil
}

// checkPixels reports whether a w x h bitmap fits in maxPixels without
// overflowing the multiplication.
func checkPixels(w, h int, maxPixels int64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	if int64(w) > maxPixels/int64(h) {
		return fmt.Errorf("%dx%d exceeds the %d pixel limit", w, h, maxPixels)
	}
	return nil
}

// GridShape returns a near-square column and row count for n images
func GridShape(n int) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = (n + cols - 1) / cols
	return cols, rows
}

package compose

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/imagineos/tapthepost/internal/models"
)

// DefaultSliceCount is the number of bands a post is cut into
const DefaultSliceCount = 4

// SliceBounds returns the source rows covered by each of n horizontal bands.
// Band boundaries are floor(i*H/n) so the bands tile the source exactly; when
// H is not a multiple of n some bands are one row taller than others.
func SliceBounds(b image.Rectangle, n int) ([]image.Rectangle, error) {
	if n < 1 {
		return nil, &PreconditionError{Reason: fmt.Sprintf("slice count must be at least 1, got %d", n)}
	}

	h := b.Dy()
	if h < n {
		return nil, &PreconditionError{Reason: fmt.Sprintf("image is %d pixels tall, too short for %d slices", h, n)}
	}

	bands := make([]image.Rectangle, n)
	for i := range n {
		y0 := b.Min.Y + i*h/n
		y1 := b.Min.Y + (i+1)*h/n
		bands[i] = image.Rect(b.Min.X, y0, b.Max.X, y1)
	}

	return bands, nil
}

// Slice cuts img into n full-width bands numbered 1..n from top to bottom
func Slice(img image.Image, n int) ([]models.Slice, error) {
	if img == nil {
		return nil, &PreconditionError{Reason: "no image to slice"}
	}

	bands, err := SliceBounds(img.Bounds(), n)
	if err != nil {
		return nil, err
	}

	slices := make([]models.Slice, len(bands))
	for i, band := range bands {
		slices[i] = models.Slice{
			Number: i + 1,
			Bounds: band,
			Image:  imaging.Crop(img, band),
		}
	}

	return slices, nil
}

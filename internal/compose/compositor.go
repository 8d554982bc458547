package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/imagineos/tapthepost/internal/models"
)

// Composite paints each image into its cell on a white canvas. The whole
// operation fails if any image is missing; no partial canvas is returned.
func Composite(spec models.CompositeSpec, images []image.Image) (*image.RGBA, error) {
	if len(images) != len(spec.Cells) {
		return nil, &CompositeError{Err: fmt.Errorf("layout has %d cells but %d images were supplied", len(spec.Cells), len(images))}
	}
	if err := checkPixels(spec.Width, spec.Height, CanvasPixelCeiling); err != nil {
		return nil, &CompositeError{Err: fmt.Errorf("canvas %w", err)}
	}
	for i, img := range images {
		if img == nil {
			return nil, &CompositeError{Err: fmt.Errorf("image %d was not decoded", i+1)}
		}
	}

	canvas := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	for i, img := range images {
		dst := spec.Cells[i].Pixels().Intersect(canvas.Bounds())
		if dst.Empty() {
			continue
		}

		src := img.Bounds()
		if dst.Dx() == src.Dx() && dst.Dy() == src.Dy() {
			draw.Draw(canvas, dst, img, src.Min, draw.Over)
			continue
		}
		draw.CatmullRom.Scale(canvas, dst, img, src, draw.Over, nil)
	}

	return canvas, nil
}

// EncodePNG serializes a composite losslessly
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &CompositeError{Err: errors.New("nothing to encode")}
	}

	w := &bytes.Buffer{}
	if err := png.Encode(w, img); err != nil {
		return nil, &CompositeError{Err: fmt.Errorf("encode png: %w", err)}
	}

	return w.Bytes(), nil
}

// EncodeJPEG serializes a slice; transparent pixels are flattened onto white first.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, &CompositeError{Err: errors.New("nothing to encode")}
	}

	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)

	w := &bytes.Buffer{}
	if err := jpeg.Encode(w, flat, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &CompositeError{Err: fmt.Errorf("encode jpeg: %w", err)}
	}

	return w.Bytes(), nil
}

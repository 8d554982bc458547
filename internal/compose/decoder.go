package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decoded is a bitmap ready for drawing along with its intrinsic size
type Decoded struct {
	Image  image.Image
	Width  int
	Height int
}

// Decode reads r fully and decodes it, applying any EXIF orientation so the
// reported dimensions match what a browser would display. Images larger than
// DefaultMaxPixels are rejected from their header before any pixel is
// allocated.
func Decode(ctx context.Context, name string, r io.Reader) (*Decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	return DecodeBytesWithin(ctx, name, data, DefaultMaxPixels)
}

// DecodeBytes is Decode over an in-memory buffer
func DecodeBytes(ctx context.Context, name string, data []byte) (*Decoded, error) {
	return DecodeBytesWithin(ctx, name, data, DefaultMaxPixels)
}

// DecodeBytesWithin decodes data unless its header declares more than
// maxPixels pixels. A maxPixels of zero or less means DefaultMaxPixels.
func DecodeBytesWithin(ctx context.Context, name string, data []byte, maxPixels int64) (*Decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Name: name, Err: errors.New("image has no pixels")}
	}

	return &Decoded{Image: img, Width: b.Dx(), Height: b.Dy()}, nil
}

// ParseDataURI splits a base64 data URI of the form data:<mime>;base64,<payload>
func ParseDataURI(uri string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data URI has no payload")
	}

	contentType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, errors.New("data URI is not base64 encoded")
	}
	if contentType == "" {
		contentType = "text/plain"
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	return contentType, data, nil
}

// DataURI is the inverse of ParseDataURI
func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI decodes an image delivered by the remote image proxy
func DecodeDataURI(ctx context.Context, name, uri string) (*Decoded, string, []byte, error) {
	return DecodeDataURIWithin(ctx, name, uri, DefaultMaxPixels)
}

// DecodeDataURIWithin is DecodeDataURI with an explicit pixel budget
func DecodeDataURIWithin(ctx context.Context, name, uri string, maxPixels int64) (*Decoded, string, []byte, error) {
	contentType, data, err := ParseDataURI(uri)
	if err != nil {
		return nil, "", nil, &DecodeError{Name: name, Err: err}
	}

	decoded, err := DecodeBytesWithin(ctx, name, data, maxPixels)
	if err != nil {
		return nil, "", nil, err
	}

	return decoded, contentType, data, nil
}

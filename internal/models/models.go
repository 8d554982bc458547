package models

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// LayoutMode selects how a working set is composited on export
type LayoutMode string

const (
	LayoutVertical   LayoutMode = "vertical"
	LayoutHorizontal LayoutMode = "horizontal"
	LayoutGrid       LayoutMode = "grid"
)

// ParseLayoutMode accepts the three layout names, case-insensitively
func ParseLayoutMode(s string) (LayoutMode, error) {
	switch mode := LayoutMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case LayoutVertical, LayoutHorizontal, LayoutGrid:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid layout mode %q: must be 'vertical', 'horizontal', or 'grid'", s)
	}
}

func (m LayoutMode) String() string {
	return string(m)
}

// Origin records where a source image's bytes came from
type Origin string

const (
	OriginUpload Origin = "upload"
	OriginProxy  Origin = "proxy"
)

// SourceImage is one entry of a composition session's working set
type SourceImage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Origin      Origin    `json:"origin"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int       `json:"size"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Status      Status    `json:"status"`
	AddedAt     time.Time `json:"added_at"`
}

// Dimensions returns the decoded size, ok is false until the image is Ready
func (s SourceImage) Dimensions() (width, height int, ok bool) {
	ready, ok := s.Status.(Ready)
	if !ok {
		return 0, 0, false
	}
	return ready.Width, ready.Height, true
}

// Rect is a destination rectangle on the output canvas, in fractional pixels
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"width" yaml:"width"`
	H float64 `json:"height" yaml:"height"`
}

// Pixels rounds each edge independently so that rectangles sharing an edge
// in fractional space also share it after rounding.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(round(r.X), round(r.Y), round(r.X+r.W), round(r.Y+r.H))
}

func round(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}

// CompositeSpec is the computed canvas and per-image placement for one export
type CompositeSpec struct {
	Mode   LayoutMode `json:"mode" yaml:"mode"`
	Width  int        `json:"width" yaml:"width"`
	Height int        `json:"height" yaml:"height"`
	Cells  []Rect     `json:"cells" yaml:"cells"`
}

// Slice is one horizontal band produced by the slicer, numbered from 1
type Slice struct {
	Number int             `json:"number"`
	Bounds image.Rectangle `json:"-"`
	Image  image.Image     `json:"-"`
}

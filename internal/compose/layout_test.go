package compose

import (
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/imagineos/tapthepost/internal/models"
)

func TestLayoutVertical(t *testing.T) {
	spec, err := Layout(models.LayoutVertical, []image.Point{{100, 200}, {200, 100}})
	if err != nil {
		t.Fatalf("Layout returned error: %v", err)
	}

	// 100x200 scales by 2 to 200x400, 200x100 keeps its size
	if spec.Width != 200 || spec.Height != 500 {
		t.Errorf("Expected canvas 200x500, got %dx%d", spec.Width, spec.Height)
	}

	want := []models.Rect{
		{X: 0, Y: 0, W: 200, H: 400},
		{X: 0, Y: 400, W: 200, H: 100},
	}
	if diff := cmp.Diff(want, spec.Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestLayoutHorizontal(t *testing.T) {
	spec, err := Layout(models.LayoutHorizontal, []image.Point{{100, 200}, {200, 100}})
	if err != nil {
		t.Fatalf("Layout returned error: %v", err)
	}

	// 100x200 keeps its size, 200x100 scales by 2 to 400x200
	if spec.Width != 500 || spec.Height != 200 {
		t.Errorf("Expected canvas 500x200, got %dx%d", spec.Width, spec.Height)
	}

	want := []models.Rect{
		{X: 0, Y: 0, W: 100, H: 200},
		{X: 100, Y: 0, W: 400, H: 200},
	}
	if diff := cmp.Diff(want, spec.Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestLayoutGrid(t *testing.T) {
	dims := []image.Point{{100, 50}, {80, 120}, {60, 60}, {40, 40}, {90, 10}}

	spec, err := Layout(models.LayoutGrid, dims)
	if err != nil {
		t.Fatalf("Layout returned error: %v", err)
	}

	// 3 columns, 2 rows of 100x120 cells
	if spec.Width != 300 || spec.Height != 240 {
		t.Errorf("Expected canvas 300x240, got %dx%d", spec.Width, spec.Height)
	}

	if got, want := spec.Cells[3], (models.Rect{X: 0, Y: 120, W: 100, H: 120}); got != want {
		t.Errorf("Expected image 3 at row 1 col 0 %+v, got %+v", want, got)
	}
	if got, want := spec.Cells[4], (models.Rect{X: 100, Y: 120, W: 100, H: 120}); got != want {
		t.Errorf("Expected image 4 at row 1 col 1 %+v, got %+v", want, got)
	}
	for i, c := range spec.Cells {
		if c.W != 100 || c.H != 120 {
			t.Errorf("cell %d has size %vx%v, expected every cell 100x120", i, c.W, c.H)
		}
	}
}

func TestGridShape(t *testing.T) {
	tests := []struct {
		n    int
		cols int
		rows int
	}{
		{1, 1, 1},
		{2, 2, 1},
		{3, 2, 2},
		{4, 2, 2},
		{5, 3, 2},
		{9, 3, 3},
		{10, 4, 3},
	}

	for _, tt := range tests {
		cols, rows := GridShape(tt.n)
		if cols != tt.cols || rows != tt.rows {
			t.Errorf("GridShape(%d) = %d,%d; expected %d,%d", tt.n, cols, rows, tt.cols, tt.rows)
		}
	}
}

func TestLayoutSingleImage(t *testing.T) {
	for _, mode := range []models.LayoutMode{models.LayoutVertical, models.LayoutHorizontal, models.LayoutGrid} {
		t.Run(string(mode), func(t *testing.T) {
			spec, err := Layout(mode, []image.Point{{320, 240}})
			if err != nil {
				t.Fatalf("Layout returned error: %v", err)
			}
			if spec.Width != 320 || spec.Height != 240 {
				t.Errorf("Expected canvas 320x240, got %dx%d", spec.Width, spec.Height)
			}
			if spec.Cells[0] != (models.Rect{W: 320, H: 240}) {
				t.Errorf("Expected the image to fill the canvas, got %+v", spec.Cells[0])
			}
		})
	}
}

func TestLayoutRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		mode models.LayoutMode
		dims []image.Point
	}{
		{name: "empty working set", mode: models.LayoutVertical, dims: nil},
		{name: "zero width", mode: models.LayoutGrid, dims: []image.Point{{0, 10}}},
		{name: "unknown mode", mode: "diagonal", dims: []image.Point{{10, 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Layout(tt.mode, tt.dims)
			var pre *PreconditionError
			if !errors.As(err, &pre) {
				t.Fatalf("Expected PreconditionError, got %v", err)
			}
		})
	}
}

func TestLayoutCellsDoNotOverlap(t *testing.T) {
	dims := []image.Point{{333, 101}, {17, 59}, {640, 480}, {1, 3}}

	for _, mode := range []models.LayoutMode{models.LayoutVertical, models.LayoutHorizontal, models.LayoutGrid} {
		t.Run(string(mode), func(t *testing.T) {
			spec, err := Layout(mode, dims)
			if err != nil {
				t.Fatalf("Layout returned error: %v", err)
			}

			canvas := image.Rect(0, 0, spec.Width, spec.Height)
			for i := range spec.Cells {
				a := spec.Cells[i].Pixels()
				if !a.In(canvas) {
					t.Errorf("cell %d %v falls outside canvas %v", i, a, canvas)
				}
				for j := i + 1; j < len(spec.Cells); j++ {
					if b := spec.Cells[j].Pixels(); a.Overlaps(b) {
						t.Errorf("cells %d %v and %d %v overlap", i, a, j, b)
					}
				}
			}
		})
	}
}

func TestLayoutRejectsOversizedCanvas(t *testing.T) {
	// a 1x60000 strip scaled to a 60000-wide column is 3.6 gigapixels tall
	dims := []image.Point{{1, 60000}, {60000, 1}}

	for _, mode := range []models.LayoutMode{models.LayoutVertical, models.LayoutHorizontal} {
		t.Run(string(mode), func(t *testing.T) {
			_, err := Layout(mode, dims)
			var compErr *CompositeError
			if !errors.As(err, &compErr) {
				t.Fatalf("Expected CompositeError, got %v", err)
			}
		})
	}
}

func TestLayoutWithinBudget(t *testing.T) {
	dims := []image.Point{{10, 10}, {10, 10}, {10, 10}, {10, 10}}

	tests := []struct {
		name      string
		mode      models.LayoutMode
		maxPixels int64
		wantErr   bool
	}{
		{name: "vertical at the limit", mode: models.LayoutVertical, maxPixels: 400},
		{name: "vertical over the limit", mode: models.LayoutVertical, maxPixels: 399, wantErr: true},
		{name: "grid over the limit", mode: models.LayoutGrid, maxPixels: 300, wantErr: true},
		{name: "zero budget uses default", mode: models.LayoutHorizontal, maxPixels: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LayoutWithin(tt.mode, dims, tt.maxPixels)
			if tt.wantErr {
				var compErr *CompositeError
				if !errors.As(err, &compErr) {
					t.Fatalf("Expected CompositeError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LayoutWithin returned error: %v", err)
			}
		})
	}
}

package archive

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/models"
)

func TestFilenames(t *testing.T) {
	ts := time.UnixMilli(1725113940123)

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "vertical composite", got: CompositeFilename(models.LayoutVertical, ts), expected: "stitched-vertical-1725113940123.png"},
		{name: "grid composite", got: CompositeFilename(models.LayoutGrid, ts), expected: "stitched-grid-1725113940123.png"},
		{name: "first slice", got: SliceFilename(1), expected: "slice-1.jpg"},
		{name: "fourth slice", got: SliceFilename(4), expected: "slice-4.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.got)
			}
		})
	}
}

func TestZip(t *testing.T) {
	files := []File{
		{Name: SliceFilename(1), Data: []byte("one")},
		{Name: SliceFilename(2), Data: []byte("two")},
		{Name: SliceFilename(3), Data: []byte("three")},
	}

	data, err := Zip(files)
	if err != nil {
		t.Fatalf("Zip returned error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	if len(zr.File) != len(files) {
		t.Fatalf("Expected %d entries, got %d", len(files), len(zr.File))
	}

	for i, zf := range zr.File {
		if zf.Name != files[i].Name {
			t.Errorf("entry %d: expected %s, got %s", i, files[i].Name, zf.Name)
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("open %s: %v", zf.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", zf.Name, err)
		}
		if !bytes.Equal(content, files[i].Data) {
			t.Errorf("entry %s: expected %q, got %q", zf.Name, files[i].Data, content)
		}
	}
}

func TestZipErrors(t *testing.T) {
	tests := []struct {
		name  string
		files []File
	}{
		{name: "no files", files: nil},
		{name: "unnamed entry", files: []File{{Data: []byte("x")}}},
		{name: "duplicate names", files: []File{{Name: "slice-1.jpg"}, {Name: "slice-1.jpg"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Zip(tt.files)
			var archiveErr *compose.ArchiveError
			if !errors.As(err, &archiveErr) {
				t.Fatalf("Expected ArchiveError, got %v", err)
			}
			if data != nil {
				t.Error("Expected no partial archive")
			}
		})
	}
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stitch.yaml")
	spec := models.CompositeSpec{
		Mode:   models.LayoutVertical,
		Width:  200,
		Height: 450,
		Cells:  []models.Rect{{W: 200, H: 400}, {Y: 400, W: 200, H: 50}},
	}
	sources := []ManifestSource{{Name: "a.png", Width: 100, Height: 200}, {Name: "b.png", Width: 200, Height: 100}}

	m := NewManifest("out.png", spec, sources, time.Date(2024, time.August, 31, 14, 19, 0, 0, time.UTC))
	if err := SaveManifest(path, m); err != nil {
		t.Fatalf("SaveManifest returned error: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}

	if loaded.Output != "out.png" || loaded.CreatedAt != "2024-08-31_14-19-00" {
		t.Errorf("unexpected header: %+v", loaded)
	}
	if loaded.Layout.Height != 450 || len(loaded.Layout.Cells) != 2 || loaded.Layout.Cells[1].Y != 400 {
		t.Errorf("layout not preserved: %+v", loaded.Layout)
	}
	if len(loaded.Sources) != 2 || loaded.Sources[1].Name != "b.png" {
		t.Errorf("sources not preserved: %+v", loaded.Sources)
	}
}

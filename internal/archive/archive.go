package archive

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/models"
)

const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeZip  = "application/zip"

	// SlicesArchiveName is the download name of a sliced post
	SlicesArchiveName = "horizontal-slices.zip"
)

// File is a downloadable artifact
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// CompositeFilename names a stitched export after its layout and creation time
func CompositeFilename(mode models.LayoutMode, t time.Time) string {
	return fmt.Sprintf("stitched-%s-%d.png", mode, t.UnixMilli())
}

// SliceFilename is 1-indexed: slice-1.jpg is the top band
func SliceFilename(number int) string {
	return fmt.Sprintf("slice-%d.jpg", number)
}

// Zip packages files in order. Nothing is returned unless every entry was written.
func Zip(files []File) ([]byte, error) {
	if len(files) == 0 {
		return nil, &compose.ArchiveError{Err: errors.New("no files to archive")}
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if f.Name == "" {
			return nil, &compose.ArchiveError{Err: errors.New("archive entry has no name")}
		}
		if seen[f.Name] {
			return nil, &compose.ArchiveError{Err: fmt.Errorf("duplicate archive entry %s", f.Name)}
		}
		seen[f.Name] = true

		// Images are already compressed.
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Store,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, &compose.ArchiveError{Err: fmt.Errorf("create %s: %w", f.Name, err)}
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, &compose.ArchiveError{Err: fmt.Errorf("write %s: %w", f.Name, err)}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &compose.ArchiveError{Err: fmt.Errorf("finalize zip: %w", err)}
	}

	return buf.Bytes(), nil
}

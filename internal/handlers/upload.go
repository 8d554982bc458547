package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/models"
	"github.com/imagineos/tapthepost/internal/pipeline"
)

// maxFilesPerRequest bounds a single multi-file add
const maxFilesPerRequest = 20

var errUploadTooLarge = errors.New("too large")

func (h *Handler) HandleAddImages(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	headers, ok := h.multipartFiles(w, r, maxFilesPerRequest)
	if !ok {
		return
	}

	var (
		uploads  []pipeline.Upload
		rejected []pipeline.AddResult
	)
	for _, fh := range headers {
		data, err := h.readUpload(fh)
		if err != nil {
			rejected = append(rejected, pipeline.AddResult{Name: fh.Filename, Status: models.Failed{Reason: err.Error()}, Err: err})
			continue
		}
		uploads = append(uploads, pipeline.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data})
	}

	results := h.pipeline.AddFiles(r.Context(), sess, uploads)
	results = append(results, rejected...)

	added := 0
	for _, res := range results {
		if res.Err == nil {
			added++
		}
	}
	slog.Info("Images added", "session_id", sess.ID, "added", added, "failed", len(results)-added)

	code := http.StatusOK
	if added == 0 {
		code = http.StatusUnprocessableEntity
	}
	h.writeJSONStatus(w, code, map[string]any{
		"message": fmt.Sprintf("Added %d of %d images", added, len(results)),
		"images":  results,
		"session": sess.Snapshot(),
	})
}

func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		URL string `json:"url"`
	}
	if !h.decodeBody(w, r, &request) {
		return
	}

	result, err := h.pipeline.Import(r.Context(), sess, request.URL)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, map[string]any{
		"message": "Image imported from X",
		"image":   result,
		"session": sess.Snapshot(),
	})
}

func (h *Handler) HandleSlice(w http.ResponseWriter, r *http.Request) {
	headers, ok := h.multipartFiles(w, r, 1)
	if !ok {
		return
	}
	fh := headers[0]

	data, err := h.readUpload(fh)
	if err != nil {
		h.writeError(w, err.Error(), uploadStatus(err))
		return
	}

	result, err := h.pipeline.SliceImage(r.Context(), fh.Filename, data)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	downloadID, err := h.exportStore.Put(result.Archive)
	if err != nil {
		h.writeFailure(w, &compose.ArchiveError{Err: err})
		return
	}

	slices := make([]map[string]any, len(result.Slices))
	for i, s := range result.Slices {
		slices[i] = map[string]any{
			"number":  i + 1,
			"name":    s.Name,
			"preview": compose.DataURI(s.ContentType, s.Data),
		}
	}

	h.writeJSON(w, map[string]any{
		"width":    result.Width,
		"height":   result.Height,
		"slices":   slices,
		"download": downloadResponse(downloadID, result.Archive.Name),
	})
}

// multipartFiles returns the uploaded files from the "files" field, falling
// back to "file" like the upload form does.
func (h *Handler) multipartFiles(w http.ResponseWriter, r *http.Request, limit int) ([]*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*int64(limit)+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to read upload: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		h.writeError(w, "No files uploaded", http.StatusBadRequest)
		return nil, false
	}
	if len(headers) > limit {
		h.writeError(w, fmt.Sprintf("Too many files (max %d)", limit), http.StatusBadRequest)
		return nil, false
	}
	return headers, true
}

// uploadStatus maps a readUpload failure to its response code
func uploadStatus(err error) int {
	if errors.Is(err, errUploadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func (h *Handler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.maxUploadBytes {
		return nil, h.tooLarge(fh.Filename)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, h.tooLarge(fh.Filename)
	}
	return data, nil
}

func (h *Handler) tooLarge(name string) error {
	return fmt.Errorf("%s is %w (max %d bytes)", name, errUploadTooLarge, h.maxUploadBytes)
}

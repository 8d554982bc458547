package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/imagineos/tapthepost/internal/storage"
)

// HandleDownload serves a stored export as an attachment
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	download, err := h.exportStore.Get(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "Download not found or expired", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", download.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Name))
	http.ServeContent(w, r, download.Name, download.CreatedAt, bytes.NewReader(download.Data))
}

// HandlePreview serves the original bytes of a working-set image
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	entry, ok := sess.Image(r.PathValue("imageID"))
	if !ok {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	// the declared type comes from the client, so serve what the bytes are
	w.Header().Set("Content-Type", previewType(entry.Data))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, entry.Name, entry.AddedAt, bytes.NewReader(entry.Data))
}

func previewType(data []byte) string {
	contentType := http.DetectContentType(data)
	if strings.HasPrefix(contentType, "image/") {
		return contentType
	}
	return "application/octet-stream"
}

package handlers

import (
	"net/http"

	"github.com/imagineos/tapthepost/internal/compose"
)

func downloadResponse(id, filename string) map[string]string {
	return map[string]string{
		"id":       id,
		"filename": filename,
		"url":      "/api/downloads/" + id,
	}
}

// HandleExport composites the session's working set and stores the PNG for
// a single download. A failed export leaves the working set untouched.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	file, spec, err := h.pipeline.Export(r.Context(), sess)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	downloadID, err := h.exportStore.Put(*file)
	if err != nil {
		h.writeFailure(w, &compose.CompositeError{Err: err})
		return
	}

	h.writeJSON(w, map[string]any{
		"message":  "Stitch saved!",
		"layout":   spec,
		"download": downloadResponse(downloadID, file.Name),
	})
}

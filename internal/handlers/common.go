package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/pipeline"
	"github.com/imagineos/tapthepost/internal/proxy"
	"github.com/imagineos/tapthepost/internal/session"
	"github.com/imagineos/tapthepost/internal/storage"
)

type Handler struct {
	sessionStore   *storage.SessionStore
	exportStore    *storage.ExportStore
	pipeline       *pipeline.Pipeline
	fetcher        *proxy.Fetcher
	maxUploadBytes int64
}

func New(sessions *storage.SessionStore, exports *storage.ExportStore, p *pipeline.Pipeline, fetcher *proxy.Fetcher, maxUploadBytes int64) *Handler {
	return &Handler{
		sessionStore:   sessions,
		exportStore:    exports,
		pipeline:       p,
		fetcher:        fetcher,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/images", h.HandleAddImages)
	mux.HandleFunc("POST /api/sessions/{id}/import", h.HandleImport)
	mux.HandleFunc("DELETE /api/sessions/{id}/images/{imageID}", h.HandleRemoveImage)
	mux.HandleFunc("GET /api/sessions/{id}/images/{imageID}/preview", h.HandlePreview)
	mux.HandleFunc("POST /api/sessions/{id}/reorder", h.HandleReorder)
	mux.HandleFunc("PUT /api/sessions/{id}/layout", h.HandleLayout)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.HandleReset)
	mux.HandleFunc("POST /api/sessions/{id}/export", h.HandleExport)
	mux.HandleFunc("POST /api/slice", h.HandleSlice)
	mux.HandleFunc("GET /api/downloads/{id}", h.HandleDownload)
	mux.HandleFunc("GET /api/xpost", h.HandleXPost)
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	h.writeJSONStatus(w, code, map[string]string{"error": message})
}

// writeFailure maps pipeline errors onto HTTP statuses
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var (
		proxyErr     *compose.ProxyError
		preErr       *compose.PreconditionError
		decodeErr    *compose.DecodeError
		compositeErr *compose.CompositeError
		archiveErr   *compose.ArchiveError
	)

	switch {
	case errors.As(err, &proxyErr):
		h.writeError(w, proxyErr.Message, proxyErr.HTTPStatus())
	case errors.As(err, &preErr):
		h.writeError(w, preErr.Reason, http.StatusBadRequest)
	case errors.As(err, &decodeErr):
		h.writeError(w, decodeErr.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &compositeErr), errors.As(err, &archiveErr):
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	default:
		h.writeError(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

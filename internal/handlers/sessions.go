package handlers

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/models"
	"github.com/imagineos/tapthepost/internal/session"
)

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := session.New()
	h.sessionStore.Set(sess)

	slog.Info("Session created", "session_id", sess.ID)
	h.writeJSONStatus(w, http.StatusCreated, sess.Snapshot())
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	sessionList := make([]session.Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		sessionList = append(sessionList, sess.Snapshot())
	}
	sort.Slice(sessionList, func(i, j int) bool {
		return sessionList[i].CreatedAt.Before(sessionList[j].CreatedAt)
	})
	h.writeJSON(w, sessionList)
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, sess.Snapshot())
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessionStore.Delete(r.PathValue("id")) {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	slog.Info("Session ended", "session_id", r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRemoveImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	// removing twice is fine
	if sess.Remove(r.PathValue("imageID")) {
		slog.Info("Image removed", "session_id", sess.ID, "image_id", r.PathValue("imageID"))
	}
	h.writeJSON(w, sess.Snapshot())
}

func (h *Handler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		ID     string `json:"id"`
		Target string `json:"target"`
		Mode   string `json:"mode"` // "before" (default) or "swap"
	}
	if !h.decodeBody(w, r, &request) {
		return
	}

	if request.ID == "" || request.Target == "" {
		h.writeError(w, "id and target are required", http.StatusBadRequest)
		return
	}

	var err error
	switch request.Mode {
	case "", "before":
		err = sess.MoveBefore(request.ID, request.Target)
	case "swap":
		err = sess.Move(request.ID, request.Target)
	default:
		h.writeError(w, "Invalid mode. Must be 'before' or 'swap'", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, sess.Snapshot())
}

func (h *Handler) HandleLayout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Mode string `json:"mode"`
	}
	if !h.decodeBody(w, r, &request) {
		return
	}

	mode, err := models.ParseLayoutMode(request.Mode)
	if err != nil {
		h.writeFailure(w, &compose.PreconditionError{Reason: err.Error()})
		return
	}

	sess.SetLayout(mode)
	h.writeJSON(w, sess.Snapshot())
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	sess.Reset()
	h.writeJSON(w, sess.Snapshot())
}

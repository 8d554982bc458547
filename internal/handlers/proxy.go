package handlers

import (
	"errors"
	"net/http"

	"github.com/imagineos/tapthepost/internal/compose"
)

// HandleXPost proxies an X/Twitter image or post URL and returns the image
// as a data URI: {"data": "data:image/jpeg;base64,..."}.
func (h *Handler) HandleXPost(w http.ResponseWriter, r *http.Request) {
	result, err := h.fetcher.Fetch(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		var proxyErr *compose.ProxyError
		if errors.As(err, &proxyErr) {
			h.writeError(w, proxyErr.Message, proxyErr.HTTPStatus())
			return
		}
		h.writeError(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{"data": result.DataURI()})
}

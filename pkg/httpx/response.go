package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/storefront/pkg/apperr"
)

type envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOK writes the success envelope {status:true, message, data}.
func WriteOK(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, envelope{Status: true, Message: message, Data: data})
}

// WriteError maps err onto its taxonomy status and writes
// {success:false, message}. Internal causes are logged, never returned.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "kind", kind.String(), "err", err)
	} else {
		log.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "kind", kind.String(), "err", err)
	}
	WriteJSON(w, status, errorBody{Success: false, Message: apperr.Message(err)})
}

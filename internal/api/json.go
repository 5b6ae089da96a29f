package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/nightingale/internal/apperr"
)

const maxBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
	Shape     string `json:"shape,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Invalidf("invalid JSON body: %v", err)
	}
	return nil
}

// writeError maps service errors onto HTTP responses. Store failures carry a
// message that is safe to show; anything unclassified is logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		legacy *apperr.LegacyFormatError
		serr   *apperr.StoreError
	)
	switch {
	case errors.As(err, &legacy):
		writeJSON(w, http.StatusConflict, errResponse{Error: legacy.Error(), Shape: legacy.Shape})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.As(err, &serr):
		status := http.StatusInternalServerError
		switch {
		case errors.Is(serr, apperr.ErrConcurrentModification):
			status = http.StatusConflict
		case errors.Is(serr, apperr.ErrPermissionDenied):
			status = http.StatusForbidden
		}
		writeJSON(w, status, errResponse{Error: serr.Message, Retryable: serr.Retryable()})
	default:
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

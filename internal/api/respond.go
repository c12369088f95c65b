package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/Kumule/internal/importer"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// downloadHint tells the client how to keep its work when a save fails.
const downloadHint = "the database could not be written; download it with GET /api/v1/database and keep a copy"

// validationError is a request the server understood but refuses.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(msg string) error { return &validationError{msg: msg} }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to status codes.
func (e *env) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validationError
	var missing *importer.MissingColumnsError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.msg)
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   missing.Error(),
			"missing": missing.Missing,
		})
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrExists):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrSaveFailed):
		saveFailuresTotal.Inc()
		e.logger.Error("save failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
			"hint":  downloadHint,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		e.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

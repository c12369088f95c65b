package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/MikeSquared-Agency/Kumule/internal/hermes"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// DatabaseHandler moves the whole document in and out.
type DatabaseHandler struct {
	env *env
}

func NewDatabaseHandler(e *env) *DatabaseHandler {
	return &DatabaseHandler{env: e}
}

func (h *DatabaseHandler) Download(w http.ResponseWriter, r *http.Request) {
	doc, err := h.env.store.Load(r.Context())
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	data, err := store.Encode(doc)
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="risiko_db.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type mergeResult struct {
	Records int           `json:"records"`
	Total   int           `json:"total"`
	Issues  []store.Issue `json:"issues,omitempty"`
}

// Merge folds an uploaded database into the stored one. Uploaded records win
// on key conflicts.
func (h *DatabaseHandler) Merge(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.env.maxUpload))
	if err != nil {
		writeMessage(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	incoming, issues, err := store.Decode(data)
	if err != nil {
		if errors.Is(err, store.ErrNotObject) {
			h.env.writeError(w, r, invalid(err.Error()))
			return
		}
		h.env.writeError(w, r, err)
		return
	}

	var total int
	err = h.env.store.Update(r.Context(), func(doc *store.Document) error {
		doc.Merge(incoming)
		total = len(doc.Records)
		return nil
	})
	if err != nil {
		h.env.writeError(w, r, err)
		return
	}

	user := h.env.user(r)
	h.env.logger.Info("database merged", "records", len(incoming.Records), "issues", len(issues), "by", user)
	h.env.publish(hermes.SubjectDatabaseMerged, hermes.DatabaseMergedEvent{
		Records: len(incoming.Records),
		By:      user,
		At:      store.Timestamp(h.env.now()),
	})
	writeJSON(w, http.StatusOK, mergeResult{Records: len(incoming.Records), Total: total, Issues: issues})
}

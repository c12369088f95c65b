package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/MikeSquared-Agency/Kumule/internal/hermes"
	"github.com/MikeSquared-Agency/Kumule/internal/importer"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// errUnchanged aborts an Update that has nothing to write.
var errUnchanged = errors.New("unchanged")

type ImportHandler struct {
	env *env
}

func NewImportHandler(e *env) *ImportHandler {
	return &ImportHandler{env: e}
}

// Upload imports the spreadsheet sent as multipart field "file".
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.env.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		importsTotal.WithLabelValues(importRejected).Inc()
		writeMessage(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		importsTotal.WithLabelValues(importRejected).Inc()
		writeMessage(w, http.StatusBadRequest, "could not read upload")
		return
	}

	var res *importer.Result
	var applyErr error
	err = h.env.store.Update(r.Context(), func(doc *store.Document) error {
		res, applyErr = h.env.importer.Apply(doc, header.Filename, data)
		if applyErr != nil {
			return applyErr
		}
		if res.Duplicate {
			return errUnchanged
		}
		return nil
	})

	var missing *importer.MissingColumnsError
	switch {
	case errors.Is(err, errUnchanged):
		err = nil
	case applyErr != nil && errors.As(applyErr, &missing):
		importsTotal.WithLabelValues(importRejected).Inc()
		h.env.writeError(w, r, applyErr)
		return
	case applyErr != nil:
		importsTotal.WithLabelValues(importRejected).Inc()
		h.env.writeError(w, r, invalid(applyErr.Error()))
		return
	}
	if err != nil {
		importsTotal.WithLabelValues(importFailed).Inc()
		h.env.writeError(w, r, err)
		return
	}

	outcome := importApplied
	if res.Duplicate {
		outcome = importDuplicate
	}
	importsTotal.WithLabelValues(outcome).Inc()

	h.env.publish(hermes.SubjectImportCompleted, hermes.ImportCompletedEvent{
		File:      res.File,
		MD5:       res.MD5,
		Rows:      res.Rows,
		Created:   res.Created,
		Updated:   res.Updated,
		Skipped:   res.Skipped,
		Duplicate: res.Duplicate,
		At:        store.Timestamp(h.env.now()),
	})
	writeJSON(w, http.StatusOK, res)
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/id"
)

func (h *Handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	opts := dlq.ListOpts{
		Offset: offset,
		Limit:  limit,
		Reason: queryParam(r, "reason"),
	}
	if v := queryParam(r, "registration_id"); v != "" {
		regID, err := id.ParseRegistrationID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid registration ID")
			return
		}
		opts.RegistrationID = &regID
	}

	entries, err := h.dlqSvc.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) getDLQ(w http.ResponseWriter, r *http.Request) {
	dlqID, ok := parseDLQID(w, r)
	if !ok {
		return
	}

	entry, err := h.dlqSvc.Get(r.Context(), dlqID)
	if err != nil {
		writeDLQError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) replayDLQ(w http.ResponseWriter, r *http.Request) {
	dlqID, ok := parseDLQID(w, r)
	if !ok {
		return
	}

	if err := h.dlqSvc.Replay(r.Context(), dlqID, h.source); err != nil {
		writeDLQError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteDLQ(w http.ResponseWriter, r *http.Request) {
	dlqID, ok := parseDLQID(w, r)
	if !ok {
		return
	}

	if err := h.dlqSvc.Delete(r.Context(), dlqID); err != nil {
		writeDLQError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type purgeRequest struct {
	Before string `json:"before"` // RFC3339
}

func (h *Handler) purgeDLQ(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	before, err := time.Parse(time.RFC3339, req.Before)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'before' time format (use RFC3339)")
		return
	}

	count, err := h.dlqSvc.Purge(r.Context(), before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"purged": count})
}

func parseDLQID(w http.ResponseWriter, r *http.Request) (id.ID, bool) {
	dlqID, err := id.ParseDLQID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid DLQ ID")
		return id.Nil, false
	}
	return dlqID, true
}

func writeDLQError(w http.ResponseWriter, err error) {
	var ve *catalog.ValidationError
	switch {
	case errors.Is(err, dlq.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "DLQ entry not found")
		return
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: ve.Error(), Issues: ve.Issues})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

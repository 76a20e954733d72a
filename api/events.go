package api

import (
	"errors"
	"net/http"

	"github.com/xraph/vercel/event"
)

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	opts := event.ListOpts{
		Offset: offset,
		Limit:  limit,
	}
	if v := queryParam(r, "type"); v != "" {
		t, err := event.ParseType(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Type = t
	}

	events, err := h.store.ListEvents(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

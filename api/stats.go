package api

import (
	"net/http"
)

type statsResponse struct {
	Registrations int   `json:"registrations"`
	Triggers      int   `json:"triggers"`
	DLQSize       int64 `json:"dlq_size"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	regs, err := h.store.ListRegistrations(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dlqCount, err := h.store.CountDLQ(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Registrations: len(regs),
		Triggers:      len(h.source.Triggers()),
		DLQSize:       dlqCount,
	})
}

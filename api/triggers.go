package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/xraph/vercel/event"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/trigger"
)

// registrationView is a registration without its signing secret.
type registrationView struct {
	ID         string         `json:"id"`
	Key        string         `json:"key"`
	Params     trigger.Params `json:"params"`
	EventTypes []event.Type   `json:"event_types"`
	WebhookID  string         `json:"webhook_id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func toRegistrationView(r *trigger.Registration) registrationView {
	return registrationView{
		ID:         r.ID.String(),
		Key:        r.Key,
		Params:     r.Params,
		EventTypes: r.EventTypes,
		WebhookID:  r.WebhookID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (h *Handler) listTriggers(w http.ResponseWriter, r *http.Request) {
	regs, err := h.store.ListRegistrations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]registrationView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, toRegistrationView(reg))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getTrigger(w http.ResponseWriter, r *http.Request) {
	regID, err := id.ParseRegistrationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid registration ID")
		return
	}

	reg, err := h.store.GetRegistration(r.Context(), regID)
	if err != nil {
		if errors.Is(err, trigger.ErrRegistrationNotFound) {
			writeError(w, http.StatusNotFound, "registration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toRegistrationView(reg))
}

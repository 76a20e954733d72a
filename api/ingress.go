package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/signature"
	"github.com/xraph/vercel/trigger"
)

type validationResponse struct {
	Error  string          `json:"error"`
	Issues []catalog.Issue `json:"issues"`
	DLQID  string          `json:"dlq_id,omitempty"`
}

// receiveWebhook is the endpoint Vercel delivers a registration's events to.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	regID, err := id.ParseRegistrationID(r.PathValue("registrationID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.source.Handle(r.Context(), regID, r.Header.Get(signature.Header), body)
	if err != nil {
		var ve *catalog.ValidationError
		switch {
		case errors.Is(err, trigger.ErrRegistrationNotFound):
			writeError(w, http.StatusNotFound, "registration not found")
		case errors.Is(err, trigger.ErrInvalidSignature):
			writeError(w, http.StatusUnauthorized, "invalid signature")
		case errors.As(err, &ve):
			resp := validationResponse{Error: ve.Error(), Issues: ve.Issues}
			if out != nil {
				resp.DLQID = out.DLQID
			}
			writeJSON(w, http.StatusUnprocessableEntity, resp)
		default:
			h.logger.Error("webhook handling failed", "registration_id", regID.String(), "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, out)
}

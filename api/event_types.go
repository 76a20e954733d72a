package api

import (
	"errors"
	"net/http"

	"github.com/xraph/vercel/catalog"
	"github.com/xraph/vercel/event"
)

func (h *Handler) listEventTypes(w http.ResponseWriter, r *http.Request) {
	group := queryParam(r, "group")

	specs := catalog.Specifications()
	defs := make([]catalog.WebhookDefinition, 0, len(specs))
	for _, spec := range specs {
		def := spec.Definition()
		if group != "" && def.Group != group {
			continue
		}
		defs = append(defs, def)
	}

	writeJSON(w, http.StatusOK, defs)
}

func (h *Handler) getEventType(w http.ResponseWriter, r *http.Request) {
	spec, err := catalog.Lookup(event.Type(r.PathValue("name")))
	if err != nil {
		if errors.Is(err, catalog.ErrSpecNotFound) {
			writeError(w, http.StatusNotFound, "event type not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, spec.Definition())
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xraph/vercel/celebrate"
)

// WithCelebrateOptions configures the effect streamed by GET /celebrate.
func (h *Handler) WithCelebrateOptions(opts ...celebrate.Option) *Handler {
	h.celebrateOpts = opts
	return h
}

// streamCelebration plays one confetti effect and streams every burst as a
// server-sent event. A dashboard feeds the data straight into canvas-confetti.
func (h *Handler) streamCelebration(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	bursts := make(chan celebrate.Burst, 16)
	effect := celebrate.New(func(b celebrate.Burst) {
		select {
		case bursts <- b:
		case <-ctx.Done():
		}
	}, h.celebrateOpts...)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	handle := effect.Start(ctx)
	defer handle.Stop()

	send := func(b celebrate.Burst) bool {
		data, err := json.Marshal(b)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: burst\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case b := <-bursts:
			if !send(b) {
				return
			}
		case <-handle.Done():
			for {
				select {
				case b := <-bursts:
					if !send(b) {
						return
					}
				default:
					fmt.Fprint(w, "event: done\ndata: {}\n\n") //nolint:errcheck // stream ends either way
					flusher.Flush()
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

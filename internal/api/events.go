package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kalambet/freevibes/internal/dashboard"
)

// handleEvents streams document updates as server-sent events. The UI keeps
// one connection open and re-renders on every "data" event instead of
// polling.
func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "server_error", "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Buffered so a slow client drops updates instead of blocking the
		// save path. A later full document always supersedes a missed one.
		updates := make(chan dashboard.DashboardData, 8)
		cancel := deps.Service.Subscribe(func(doc dashboard.DashboardData) {
			select {
			case updates <- doc:
			default:
			}
		})
		defer cancel()

		for {
			select {
			case <-r.Context().Done():
				return
			case doc := <-updates:
				payload, err := json.Marshal(doc)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: data\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}

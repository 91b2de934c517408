package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
)

type eventHandler struct {
	events    interfaces.EventSubscriber
	keepAlive time.Duration
	closing   <-chan struct{}
}

// stream writes download events as server-sent events until the client goes away, the server
// shuts down or the broker evicts the subscriber
func (h *eventHandler) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, goerr.New("streaming is not supported"), http.StatusInternalServerError)
		return
	}

	ch, evicted, cancel := h.events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-h.closing:
			return

		case <-evicted:
			logger.Warn("Event subscriber evicted, closing stream")
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error("Failed to encode event", "error", err, "id", ev.DownloadID)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

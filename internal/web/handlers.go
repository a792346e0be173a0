package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mlavoie/feedgo/internal/hw/stepper"
	"github.com/mlavoie/feedgo/internal/logic/feeder"
)

// Handlers holds dependencies for HTTP handlers. The loop is reached
// through narrow funcs so tests can stub it.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Status      func() feeder.Status
	Dispense    func() error
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, status func() feeder.Status, dispense func() error) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Status:      status,
		Dispense:    dispense,
	}
}

// HandleStatus returns the current loop snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Status())
}

// HandleDispense handles POST /dispense for a manual portion.
// Synchronous: a portion takes a couple of seconds and the caller wants
// the real outcome, not a fire-and-forget acknowledgement.
func (h *Handlers) HandleDispense(w http.ResponseWriter, r *http.Request) {
	if h.Dispense == nil {
		http.Error(w, "dispense not configured", http.StatusServiceUnavailable)
		return
	}

	err := h.Dispense()
	switch {
	case errors.Is(err, feeder.ErrCooldown):
		http.Error(w, "dispense cooldown in effect", http.StatusConflict)
		return
	case errors.Is(err, stepper.ErrBusy):
		http.Error(w, "dispense already in progress", http.StatusConflict)
		return
	case err != nil:
		h.Broadcaster.Broadcast("error", "Manual dispense failed: "+err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.Broadcaster.BroadcastMsg("Manual dispense complete")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "dispensed"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

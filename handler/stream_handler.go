package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"civicroute/models"
	"civicroute/service"
)

// streamPingInterval keeps idle SSE connections alive through proxies
const streamPingInterval = 25 * time.Second

// StreamHub is the subscription surface the SSE endpoint uses
type StreamHub interface {
	Subscribe(filter models.ComplaintFilter, callback service.StreamCallback) *service.Subscription
}

// StreamHandler serves the live enriched-complaint feed over Server-Sent
// Events. One subscription per connection; closing the connection tears the
// subscription down.
type StreamHandler struct {
	hub    StreamHub
	logger zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub StreamHub, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// StreamComplaints handles GET /api/v1/complaints/stream
func (h *StreamHandler) StreamComplaints(w http.ResponseWriter, r *http.Request) {
	filter, err := parseComplaintFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	snapshots := make(chan []models.EnrichedComplaint, 1)
	sub := h.hub.Subscribe(filter, func(snapshot []models.EnrichedComplaint) {
		// Latest snapshot wins when the client reads slowly.
		for {
			select {
			case snapshots <- snapshot:
				return
			default:
				select {
				case <-snapshots:
				default:
				}
			}
		}
	})
	if sub == nil {
		return
	}
	defer sub.Unsubscribe()

	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("[stream] client connected")

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("remote", r.RemoteAddr).Msg("[stream] client disconnected")
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case snapshot := <-snapshots:
			payload, err := json.Marshal(snapshot)
			if err != nil {
				h.logger.Warn().Err(err).Msg("[stream] snapshot encode failed")
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

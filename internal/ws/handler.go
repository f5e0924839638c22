package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/event"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/fleet"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler provides the WebSocket endpoint for live fleet updates.
type Handler struct {
	hub    *Hub
	svc    *fleet.Service
	bus    *event.Bus
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to fleet
// refresh events.
func NewHandler(svc *fleet.Service, bus *event.Bus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		svc:    svc,
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/fleet", h.handleFleetStream)
}

// ClientCount returns the number of connected dashboard clients.
func (h *Handler) ClientCount() int {
	return h.hub.ClientCount()
}

// handleFleetStream upgrades the connection and streams refresh events.
func (h *Handler) handleFleetStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		id:     uuid.New().String(),
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	// Client disconnected -- stop write pump and unregister.
	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards fleet refresh events to all connected
// clients. The refreshed data is already cached, so reads here are
// in-memory.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(fleet.TopicSnapshotRefreshed, func(_ context.Context, ev event.Event) {
		if h.hub.ClientCount() == 0 {
			return
		}
		// Non-blocking read: the refresh that triggered this event has
		// already installed the new set.
		snap := h.svc.CurrentSnapshot()
		if snap == nil {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageSnapshotUpdated,
			Timestamp: ev.Timestamp,
			Data: SnapshotUpdatedData{
				Counts:      snap.Counts,
				Activity:    snap.Activity,
				GeneratedAt: snap.GeneratedAt,
			},
		})
	})

	h.bus.Subscribe(fleet.TopicAlertsRefreshed, func(ctx context.Context, ev event.Event) {
		if h.hub.ClientCount() == 0 {
			return
		}
		sum, err := h.svc.Alerts(ctx)
		if err != nil {
			h.logger.Warn("alert push skipped", zap.Error(err))
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageAlertsUpdated,
			Timestamp: ev.Timestamp,
			Data:      AlertsUpdatedData{Summary: sum},
		})
	})

	h.logger.Info("subscribed to fleet refresh events for WebSocket broadcasting")
}

package ws

import (
	"context"
	"net/http"

	"github.com/HerbHall/vigil/internal/monitor"
	"github.com/HerbHall/vigil/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler streams monitor transitions to WebSocket clients.
type Handler struct {
	hub    *Hub
	bus    plugin.EventBus
	logger *zap.Logger
	unsubs []func()
}

// NewHandler creates a WebSocket handler and subscribes to the transition
// topics on bus.
func NewHandler(bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEventStream)
}

// ClientCount returns the number of connected stream clients.
func (h *Handler) ClientCount() int {
	return h.hub.ClientCount()
}

// Close drops the bus subscriptions.
func (h *Handler) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

// handleEventStream upgrades the connection to WebSocket and streams
// transition events until the client goes away.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, 256),
		logger: h.logger,
	}
	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}
	for topic, msgType := range topicTypes {
		h.unsubs = append(h.unsubs, h.bus.Subscribe(topic, h.forward(msgType)))
	}
	h.logger.Info("subscribed to transition events for websocket streaming")
}

func (h *Handler) forward(msgType MessageType) plugin.EventHandler {
	return func(_ context.Context, event plugin.Event) {
		ev, ok := event.Payload.(monitor.TransitionEvent)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      msgType,
			TargetID:  ev.TargetID,
			Timestamp: event.Timestamp,
			Data:      ev,
		})
	}
}

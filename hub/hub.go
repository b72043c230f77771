// Package hub is the realtime core: a connection registry with derived
// rooms, a broadcaster that resolves recipients per event kind, and an event
// router fed by per-connection sessions.
package hub

import (
	"dispatch-gateway/metrics"
)

// Hub wires the registry, broadcaster and router for one server instance.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	router      *Router
	bufferSize  int
	metrics     *metrics.Metrics
}

// New creates a hub whose sessions buffer up to bufferSize frames each way.
func New(bufferSize int, m *metrics.Metrics) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	registry := NewRegistry(m)
	broadcaster := NewBroadcaster(registry, m)
	return &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		router:      NewRouter(registry, broadcaster, m),
		bufferSize:  bufferSize,
		metrics:     m,
	}
}

func (h *Hub) Registry() *Registry       { return h.registry }
func (h *Hub) Broadcaster() *Broadcaster { return h.broadcaster }
func (h *Hub) Router() *Router           { return h.router }

// Attach registers a new connection and starts its session loops.
func (h *Hub) Attach(t Transport) (*Session, error) {
	s := newSession(t, h.router, h.bufferSize, h.metrics)
	if err := h.registry.Register(s); err != nil {
		return nil, err
	}
	s.start()
	return s, nil
}

// Stats reports the current registry size.
func (h *Hub) Stats() Stats {
	return h.registry.Stats()
}

// Shutdown closes every live session.
func (h *Hub) Shutdown() {
	for _, sink := range h.registry.allSinks("") {
		if s, ok := sink.(*Session); ok {
			s.Close()
		}
	}
}

package hub

import (
	"sync"

	"dispatch-gateway/metrics"

	"github.com/sirupsen/logrus"
)

type (
	// Transport is the wire side of one persistent connection.
	Transport interface {
		ID() string
		Emit(event string, payload any) error
	}

	// Frame is one event travelling through a session buffer.
	Frame struct {
		Kind    string
		Payload any
	}

	// Session owns one live connection. Inbound frames are dispatched in
	// arrival order by a single goroutine, and outbound events are written
	// by another, so slow transports never stall the publisher.
	Session struct {
		transport Transport
		router    *Router
		metrics   *metrics.Metrics

		inbound  chan Frame
		outbound chan Frame
		done     chan struct{}

		closeOnce sync.Once
		wg        sync.WaitGroup
	}
)

func newSession(t Transport, router *Router, bufferSize int, m *metrics.Metrics) *Session {
	return &Session{
		transport: t,
		router:    router,
		metrics:   m,
		inbound:   make(chan Frame, bufferSize),
		outbound:  make(chan Frame, bufferSize),
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.transport.ID()
}

func (s *Session) start() {
	s.wg.Add(2)
	go s.dispatch()
	go s.write()
}

// Send queues an outbound event. It reports false when the session is closed
// or its buffer is full; the event is then lost.
func (s *Session) Send(event string, payload any) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.outbound <- Frame{Kind: event, Payload: payload}:
		return true
	default:
		return false
	}
}

// Receive queues a frame read from the transport for dispatch.
func (s *Session) Receive(kind string, payload any) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.inbound <- Frame{Kind: kind, Payload: payload}:
		return true
	default:
		s.metrics.Dropped("inbound")
		logrus.WithFields(logrus.Fields{"conn_id": s.ID(), "kind": kind}).Warn("Inbound frame dropped: buffer full")
		return false
	}
}

// Close unregisters the connection and stops both loops. Frames still
// buffered are discarded. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.router.Disconnect(s.ID())
		close(s.done)
	})
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until both loops have returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.inbound:
			s.router.OnInbound(s.ID(), frame.Kind, frame.Payload)
		}
	}
}

func (s *Session) write() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbound:
			if err := s.transport.Emit(frame.Kind, frame.Payload); err != nil {
				logrus.WithFields(logrus.Fields{
					"conn_id": s.ID(),
					"event":   frame.Kind,
					"error":   err,
				}).Warn("Failed to emit event")
			}
		}
	}
}

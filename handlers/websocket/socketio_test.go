package websocket

import (
	"sync"
	"testing"
	"time"

	"dispatch-gateway/hub"
)

type emitted struct {
	event   string
	payload any
}

// fakeConn stands in for a Socket.IO socket; fire plays a client event.
type fakeConn struct {
	id           string
	mu           sync.Mutex
	handlers     map[string]func(args ...any)
	events       chan emitted
	disconnected bool
}

func newConn(id string) *fakeConn {
	return &fakeConn{id: id, handlers: map[string]func(args ...any){}, events: make(chan emitted, 16)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, payload any) error {
	c.events <- emitted{event, payload}
	return nil
}

func (c *fakeConn) On(event string, fn func(args ...any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = fn
}

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeConn) fire(event string, args ...any) {
	c.mu.Lock()
	fn := c.handlers[event]
	c.mu.Unlock()
	if fn != nil {
		fn(args...)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestBind_ForwardsInboundKinds(t *testing.T) {
	c := newConn("a")
	if bind(hub.New(4, nil), c) == nil {
		t.Fatal("bind() returned no session")
	}
	for _, kind := range append(hub.InboundKinds, "disconnect") {
		if _, ok := c.handlers[kind]; !ok {
			t.Errorf("no listener for %q", kind)
		}
	}
}

func TestBind_AdminMessageFlow(t *testing.T) {
	h := hub.New(8, nil)
	staff, customer := newConn("staff"), newConn("customer")
	bind(h, staff)
	bind(h, customer)

	staff.fire(hub.KindJoinAdminRoom)
	customer.fire(hub.KindJoinUserRoom, float64(42))
	waitFor(t, func() bool {
		return len(h.Registry().MembersOf(hub.AdminRoom)) == 1 && len(h.Registry().MembersOf(hub.UserRoom("42"))) == 1
	})

	customer.fire("new-message", map[string]any{"recipientType": "admin", "text": "hello"})
	select {
	case e := <-staff.events:
		if e.event != "message-received" {
			t.Errorf("event mismatch: got %q", e.event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("staff did not receive the message")
	}

	staff.fire("truck-dispatched", map[string]any{"userId": "42"})
	select {
	case e := <-customer.events:
		if e.event != "truck-dispatch-update" {
			t.Errorf("event mismatch: got %q", e.event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("customer did not receive the dispatch update")
	}
}

func TestBind_DisconnectPurges(t *testing.T) {
	h := hub.New(4, nil)
	c := newConn("a")
	bind(h, c)
	c.fire(hub.KindJoinAdminRoom)
	waitFor(t, func() bool { return h.Stats().AdminMembers == 1 })

	c.fire("disconnect", "transport close")
	if s := h.Stats(); s.Connections != 0 || s.Rooms != 0 {
		t.Errorf("registry not purged: %+v", s)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.disconnected {
		t.Error("socket listeners were not released on disconnect")
	}
}

func TestBind_DuplicateIDRejected(t *testing.T) {
	h := hub.New(4, nil)
	bind(h, newConn("dup"))

	second := newConn("dup")
	if bind(h, second) != nil {
		t.Fatal("bind() accepted a duplicate connection id")
	}
	if !second.disconnected {
		t.Error("rejected connection was not disconnected")
	}
}

var _ conn = (*fakeConn)(nil)

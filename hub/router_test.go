package hub

import (
	"reflect"
	"testing"
)

func setupRouter(t *testing.T, ids ...string) (*Registry, *Router, map[string]*recordingSink) {
	t.Helper()
	r, b, sinks := setupBroadcaster(t, ids...)
	return r, NewRouter(r, b, nil), sinks
}

func TestOnInbound_JoinUserRoom(t *testing.T) {
	r, router, _ := setupRouter(t, "a", "b")

	router.OnInbound("a", KindJoinUserRoom, "42")
	router.OnInbound("b", KindJoinUserRoom, float64(42))

	if got := r.MembersOf(UserRoom("42")); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("MembersOf(user:42) mismatch: got %v", got)
	}
	if actor, ok := r.ActorOf("b"); !ok || actor != "42" {
		t.Errorf("ActorOf(b) mismatch: got %q", actor)
	}
}

func TestOnInbound_JoinUserRoomWithoutID(t *testing.T) {
	r, router, _ := setupRouter(t, "a")

	router.OnInbound("a", KindJoinUserRoom, nil)
	router.OnInbound("a", KindJoinUserRoom, map[string]any{"id": "1"})

	if rooms := r.RoomsOf("a"); len(rooms) != 0 {
		t.Errorf("Invalid join should be ignored, got rooms %v", rooms)
	}
}

func TestOnInbound_JoinAndLeaveAdminRoom(t *testing.T) {
	r, router, _ := setupRouter(t, "a")

	router.OnInbound("a", KindJoinAdminRoom, nil)
	if got := r.MembersOf(AdminRoom); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("MembersOf(admin) mismatch: got %v", got)
	}

	router.OnInbound("a", KindLeaveAdminRoom, nil)
	if got := r.MembersOf(AdminRoom); len(got) != 0 {
		t.Errorf("Connection still in admin room: %v", got)
	}
}

func TestOnInbound_LeaveUserRoomDefaultsToOwnRoom(t *testing.T) {
	r, router, _ := setupRouter(t, "a")

	router.OnInbound("a", KindJoinUserRoom, "7")
	router.OnInbound("a", KindLeaveUserRoom, nil)

	if got := r.MembersOf(UserRoom("7")); len(got) != 0 {
		t.Errorf("Connection still in its user room: %v", got)
	}
}

func TestOnInbound_ForwardsDomainEvents(t *testing.T) {
	_, router, sinks := setupRouter(t, "customer", "staff", "driver")

	router.OnInbound("staff", KindJoinAdminRoom, nil)
	router.OnInbound("customer", KindJoinUserRoom, "c1")

	router.OnInbound("customer", "new-message", map[string]any{"recipientType": "admin", "text": "hi"})
	router.OnInbound("staff", "new-message", map[string]any{"recipientType": "user", "recipientId": "c1"})
	router.OnInbound("driver", "truck-location-update", map[string]any{"lat": 52.1, "lng": 4.3})

	if got := sinks["staff"].received(); len(got) != 2 || got[0].event != "message-received" || got[1].event != "truck-location-updated" {
		t.Errorf("staff deliveries mismatch: %v", got)
	}
	if got := sinks["customer"].received(); len(got) != 2 || got[0].event != "message-received" {
		t.Errorf("customer deliveries mismatch: %v", got)
	}
	if got := sinks["driver"].received(); len(got) != 0 {
		t.Errorf("driver should not receive its own location: %v", got)
	}
}

func TestOnInbound_UnknownAndMalformedAreIgnored(t *testing.T) {
	r, router, sinks := setupRouter(t, "a", "b")
	router.OnInbound("b", KindJoinAdminRoom, nil)

	router.OnInbound("a", "launch-rockets", map[string]any{"recipientType": "admin"})
	router.OnInbound("a", "new-message", nil)
	router.OnInbound("a", "truck-dispatched", 12)

	for id, s := range sinks {
		if got := s.received(); len(got) != 0 {
			t.Errorf("%s received dropped frames: %v", id, got)
		}
	}
	if stats := r.Stats(); stats.Connections != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestDisconnect(t *testing.T) {
	r, router, _ := setupRouter(t, "a")
	router.OnInbound("a", KindJoinUserRoom, "1")
	router.OnInbound("a", KindJoinAdminRoom, nil)

	router.Disconnect("a")

	if r.Registered("a") {
		t.Error("Connection still registered after Disconnect()")
	}
	if stats := r.Stats(); stats.Rooms != 0 {
		t.Errorf("Rooms left after disconnect: %+v", stats)
	}
}

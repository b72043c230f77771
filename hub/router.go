package hub

import (
	"dispatch-gateway/core"
	"dispatch-gateway/metrics"

	"github.com/sirupsen/logrus"
)

// Membership requests accepted on the persistent connection.
const (
	KindJoinUserRoom   = "join-user-room"
	KindJoinAdminRoom  = "join-admin-room"
	KindLeaveUserRoom  = "leave-user-room"
	KindLeaveAdminRoom = "leave-admin-room"
)

// InboundKinds lists every event name the transport should forward.
var InboundKinds = []string{
	KindJoinUserRoom,
	KindJoinAdminRoom,
	KindLeaveUserRoom,
	KindLeaveAdminRoom,
	string(core.EventTruckLocationUpdate),
	string(core.EventNewMessage),
	string(core.EventNewPickupRequest),
	string(core.EventTruckDispatched),
}

// Router classifies inbound frames into membership changes or published
// domain events. Unknown or malformed frames are dropped silently.
type Router struct {
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
}

func NewRouter(registry *Registry, broadcaster *Broadcaster, m *metrics.Metrics) *Router {
	return &Router{registry: registry, broadcaster: broadcaster, metrics: m}
}

// OnInbound handles one frame received on connID.
func (r *Router) OnInbound(connID, kind string, payload any) {
	log := logrus.WithFields(logrus.Fields{"conn_id": connID, "kind": kind})

	switch kind {
	case KindJoinUserRoom:
		actorID := core.Stringify(payload)
		if actorID == "" {
			log.Debug("Ignoring join without actor id")
			return
		}
		if r.registry.Join(connID, UserRoom(actorID)) {
			r.registry.Identify(connID, actorID)
			log.WithField("room", UserRoom(actorID)).Info("Connection joined user room")
		}

	case KindJoinAdminRoom:
		// Admin membership is not role checked here; see DESIGN.md.
		if r.registry.Join(connID, AdminRoom) {
			log.WithField("room", AdminRoom).Info("Connection joined admin room")
		}

	case KindLeaveUserRoom:
		actorID := core.Stringify(payload)
		if actorID == "" {
			actorID, _ = r.registry.ActorOf(connID)
		}
		if actorID != "" {
			r.registry.Leave(connID, UserRoom(actorID))
		}

	case KindLeaveAdminRoom:
		r.registry.Leave(connID, AdminRoom)

	default:
		event, err := core.DecodeEvent(core.EventKind(kind), payload)
		if err != nil {
			log.WithError(err).Debug("Dropping inbound frame")
			return
		}
		r.broadcaster.Publish(event, connID)
	}

	r.metrics.Inbound(kind)
}

// Disconnect purges every trace of connID from the registry.
func (r *Router) Disconnect(connID string) {
	r.registry.Unregister(connID)
	logrus.WithField("conn_id", connID).Info("Connection closed")
}

package hub

import (
	"dispatch-gateway/core"
	"dispatch-gateway/metrics"

	"github.com/sirupsen/logrus"
)

// Broadcaster resolves the recipients of a domain event and fans it out.
// Delivery is fire-and-forget: nothing is queued for offline actors and no
// acknowledgment is awaited.
type Broadcaster struct {
	registry *Registry
	metrics  *metrics.Metrics
}

// NewBroadcaster resolves recipients against registry.
func NewBroadcaster(registry *Registry, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: m}
}

// Publish delivers event on behalf of origin and returns how many
// connections accepted it. An empty target room is a successful no-op.
func (b *Broadcaster) Publish(event core.DomainEvent, origin string) int {
	log := logrus.WithFields(logrus.Fields{
		"kind":    event.Kind,
		"conn_id": origin,
	})

	targets, ok := b.resolve(event, origin)
	if !ok {
		log.WithField("recipient", event.Recipient).Debug("Dropping event without resolvable recipients")
		return 0
	}

	name := event.Kind.Outbound()
	delivered := 0
	for _, sink := range targets {
		if sink.Send(name, event.Payload) {
			delivered++
			continue
		}
		b.metrics.Dropped("outbound")
		log.WithField("target", sink.ID()).Warn("Event dropped: connection buffer full")
	}

	b.metrics.Delivered(name, delivered)
	log.WithField("delivered", delivered).Debug("Event published")
	return delivered
}

func (b *Broadcaster) resolve(event core.DomainEvent, origin string) ([]Sink, bool) {
	switch event.Kind {
	case core.EventNewMessage:
		switch {
		case event.Recipient.Type == core.RecipientAdmin:
			return b.registry.sinksIn(AdminRoom, origin), true
		case event.Recipient.Type == core.RecipientUser && event.Recipient.ID != "":
			return b.registry.sinksIn(UserRoom(event.Recipient.ID), ""), true
		}
	case core.EventNewPickupRequest:
		return b.registry.sinksIn(AdminRoom, ""), true
	case core.EventTruckDispatched:
		if event.Recipient.UserID != "" {
			return b.registry.sinksIn(UserRoom(event.Recipient.UserID), ""), true
		}
	case core.EventTruckLocationUpdate:
		return b.registry.allSinks(origin), true
	}
	return nil, false
}

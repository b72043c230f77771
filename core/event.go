package core

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type (
	// EventKind names an inbound domain event on the persistent connection.
	EventKind string

	// RecipientType selects the addressee class of a chat message.
	RecipientType string

	// Recipient is the kind-dependent addressing carried inside an event payload.
	// It is taken verbatim from the sender and never derived server-side.
	Recipient struct {
		Type   RecipientType `json:"recipientType,omitempty"`
		ID     string        `json:"recipientId,omitempty"`
		UserID string        `json:"userId,omitempty"`
	}

	// DomainEvent is a decoded inbound event ready to be published.
	DomainEvent struct {
		Kind      EventKind
		Payload   any
		Recipient Recipient
	}
)

const (
	EventTruckLocationUpdate EventKind = "truck-location-update"
	EventNewMessage          EventKind = "new-message"
	EventNewPickupRequest    EventKind = "new-pickup-request"
	EventTruckDispatched     EventKind = "truck-dispatched"

	RecipientAdmin RecipientType = "admin"
	RecipientUser  RecipientType = "user"
)

var outboundNames = map[EventKind]string{
	EventTruckLocationUpdate: "truck-location-updated",
	EventNewMessage:          "message-received",
	EventNewPickupRequest:    "pickup-request-received",
	EventTruckDispatched:     "truck-dispatch-update",
}

// Valid reports whether k is one of the relayed domain event kinds.
func (k EventKind) Valid() bool {
	_, ok := outboundNames[k]
	return ok
}

// Outbound returns the event name emitted to recipients.
func (k EventKind) Outbound() string {
	return outboundNames[k]
}

// DecodeEvent builds a DomainEvent from a raw transport payload. The payload
// itself is kept untouched so it can be relayed as received.
func DecodeEvent(kind EventKind, payload any) (DomainEvent, error) {
	if !kind.Valid() {
		return DomainEvent{}, fmt.Errorf("unknown event kind %q", kind)
	}

	event := DomainEvent{Kind: kind, Payload: payload}
	fields, err := payloadFields(payload)
	if err != nil {
		if kind == EventNewMessage || kind == EventTruckDispatched {
			return DomainEvent{}, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return event, nil
	}

	event.Recipient = Recipient{
		Type:   RecipientType(StringField(fields, "recipientType")),
		ID:     StringField(fields, "recipientId"),
		UserID: StringField(fields, "userId"),
	}
	return event, nil
}

func payloadFields(payload any) (map[string]any, error) {
	switch p := payload.(type) {
	case map[string]any:
		return p, nil
	case json.RawMessage:
		return unmarshalFields(p)
	case []byte:
		return unmarshalFields(p)
	case string:
		return unmarshalFields([]byte(p))
	case nil:
		return nil, fmt.Errorf("empty payload")
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
}

func unmarshalFields(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// StringField reads a string-or-number field. Clients send ids both ways.
func StringField(fields map[string]any, key string) string {
	return Stringify(fields[key])
}

// Stringify renders an identifier received as JSON string or number.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

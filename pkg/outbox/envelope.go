package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies the tenant and end user behind the event.
type ActorRef struct {
	ServiceID string `json:"serviceId"`
	UserID    string `json:"userId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// envelopeVersion is bumped whenever the envelope shape changes.
const envelopeVersion = 1

// ActorRef identifies who performed the action.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
}

// Envelope is the stable payload structure stored in activity_events.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      ActorRef        `json:"actor"`
	Number     string          `json:"number,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who triggered the event: the bidder behind a bid, the
// seller or admin behind a lifecycle change. Sweep-driven events carry none.
type ActorRef struct {
	UserID  uuid.UUID  `json:"userId"`
	StoreID *uuid.UUID `json:"storeId,omitempty"`
	Role    string     `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload stored in outbox_events and shipped
// to Pub/Sub verbatim. Data holds the event-type-specific body; consumers
// dispatch on the message's event_type attribute before decoding it.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

package notify

import (
	"encoding/json"
	"time"
)

// RoutingKeySeeded is the routing key of the completion event
const RoutingKeySeeded = "fixture.event.seeded"

// Event announces that a fixture has been written and committed
type Event struct {
	Database    string           `json:"database"`
	Seed        uint64           `json:"seed"`
	Counts      map[string]int64 `json:"counts"`
	CompletedAt time.Time        `json:"completed_at"`
}

// NewSeededEvent builds the completion event for one run
func NewSeededEvent(database string, seed uint64, counts map[string]int64, completedAt time.Time) Event {
	return Event{
		Database:    database,
		Seed:        seed,
		Counts:      counts,
		CompletedAt: completedAt.UTC(),
	}
}

// Marshal encodes the event body
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

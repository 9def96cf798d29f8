package models

import (
	"encoding/json"
	"time"
)

// ActivityEntry is one row of the activity journal.
type ActivityEntry struct {
	ID        int64           `json:"id"`
	EventType string          `json:"eventType"`
	EntityID  string          `json:"entityId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

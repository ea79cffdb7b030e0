package models

import (
	"encoding/json"
	"time"
)

type Notification struct {
	ID        string          `json:"id"`
	Kind      string          `json:"type"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"createdAt"`
	IsRead    bool            `json:"isRead"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

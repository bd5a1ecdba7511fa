package models

import (
	"time"

	"github.com/google/uuid"
)

// LogEntry is an append-only audit record. The engine writes entries but its
// decision logic never reads them back.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ProductID string    `json:"productId,omitempty"`
	Event     string    `json:"event"`
	Details   string    `json:"details,omitempty"`
}

// NewLogEntry creates a log entry timestamped now.
func NewLogEntry(productID, event, details string) LogEntry {
	return LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ProductID: productID,
		Event:     event,
		Details:   details,
	}
}

// Package events defines the message payloads exchanged with the activity store.
package events

import (
	"encoding/json"
	"time"
)

// Event type header values carried on Kafka messages.
const (
	TypeActivityBatchSubmitted = "ActivityBatchSubmitted"
	TypeActivityBatchRejected  = "ActivityBatchRejected"
)

// ActivityBatchSubmitted carries a batch of activity rows for one user and
// activity type. Records are column-name to value objects; values may be JSON
// strings, numbers or null.
type ActivityBatchSubmitted struct {
	UserID       string                       `json:"user_id"`
	ActivityType string                       `json:"activity_type"`
	Records      []map[string]json.RawMessage `json:"records"`
	SubmittedAt  time.Time                    `json:"submitted_at"`
	Source       string                       `json:"source,omitempty"`
}

// ActivityBatchRejected is emitted to the dead-letter topic when a submitted
// batch fails validation or cannot be decoded.
type ActivityBatchRejected struct {
	UserID       string          `json:"user_id,omitempty"`
	ActivityType string          `json:"activity_type,omitempty"`
	Errors       []string        `json:"errors"`
	Warnings     []string        `json:"warnings,omitempty"`
	RejectedAt   time.Time       `json:"rejected_at"`
	Original     json.RawMessage `json:"original,omitempty"`
}

// Package randomness defines randomness request records. The delivery
// contract is asynchronous (request now, fulfill later) even though the
// bundled source fulfills synchronously.
package randomness

import "time"

// Status is the lifecycle state of a randomness request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
)

// Request is one randomness delivery for a consumer (a raffle id).
type Request struct {
	ID          string    `json:"id"`
	ConsumerID  string    `json:"consumer_id"`
	Status      Status    `json:"status"`
	Value       uint64    `json:"value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	FulfilledAt time.Time `json:"fulfilled_at,omitempty"`
}

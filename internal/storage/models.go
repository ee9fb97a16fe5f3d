package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Decision is a persisted like/reject.
type Decision struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	Decision  string    `json:"decision"` // "like" or "reject"
	SessionID string    `json:"sessionId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DecisionCounts aggregates decisions for one profile.
type DecisionCounts struct {
	Likes   int `json:"likes"`
	Rejects int `json:"rejects"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

package queue

import (
	"encoding/json"
	"time"
)

// Task is the envelope carried through Redis. Attempt counts executions,
// starting at 1 for the first run.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// LockKey is the idempotency key for a task. Two enqueues of the same type
// and ID collapse into one pending execution.
func (t *Task) LockKey() string {
	return t.Type + ":" + t.ID
}

// Policy bounds the retry behavior of a task type.
type Policy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// Delay returns the pause before the next run after the given attempt
// number failed. Attempts past the end of the schedule reuse the last entry.
func (p Policy) Delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

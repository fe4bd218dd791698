package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: not found")

// Repository is the persistence contract for call sessions, keyed by the
// provider call id. Implementations carry no business logic; transition
// validation lives with the orchestrator.
type Repository interface {
	Create(ctx context.Context, s CallSession) error
	Save(ctx context.Context, s CallSession) error
	Get(ctx context.Context, id string) (CallSession, error)
	List(ctx context.Context) ([]CallSession, error)
	ListByState(ctx context.Context, state State) ([]CallSession, error)

	// DeleteOlderThan removes sessions created before cutoff and returns
	// how many were removed. Retention is an operational concern; nothing
	// in the call pipeline depends on it.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

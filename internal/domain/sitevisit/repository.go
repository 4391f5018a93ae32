package sitevisit

import (
	"context"
	"time"
)

// SessionRepository defines data access for site sessions and their event log.
type SessionRepository interface {
	Create(ctx context.Context, session Session) (Session, error)

	// GetByID returns ErrSessionNotFound when no row exists
	GetByID(ctx context.Context, id string) (Session, error)

	// GetByIDForUpdate locks the row until the surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (Session, error)

	// GetActiveByUser returns nil when the user has no active session
	GetActiveByUser(ctx context.Context, userID string) (*Session, error)

	Update(ctx context.Context, session Session) error

	CreateEvent(ctx context.Context, event SessionEvent) error

	// AbandonStartedBefore marks active sessions whose office logout happened before t
	AbandonStartedBefore(ctx context.Context, t time.Time) (int64, error)
}

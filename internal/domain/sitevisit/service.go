package sitevisit

import (
	"context"
	"time"
)

// SiteSessionService is the authoritative side of the site-visit workflow.
type SiteSessionService interface {
	// RecordEvent validates and applies one workflow event, creating the session on office_logout
	RecordEvent(ctx context.Context, req EventRequest) (EventResponse, error)

	// GetSession returns the session owned by userID
	GetSession(ctx context.Context, sessionID string, userID string) (SessionResponse, error)

	// AbandonStaleSessions closes active sessions started before now-olderThan
	AbandonStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error)
}

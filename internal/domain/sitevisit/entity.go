package sitevisit

import (
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

type Session struct {
	ID                 string
	UserID             string
	UserName           string
	UserEmail          string
	OfficeLogoutReason *string
	OfficeLogoutTime   *time.Time
	ClientLoginTime    *time.Time
	ClientLogoutTime   *time.Time
	OfficeLoginTime    *time.Time
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Stage derives the workflow stage from the recorded stamps.
func (s Session) Stage() Stage {
	return StageFromTimestamps(s.OfficeLogoutTime, s.ClientLoginTime, s.ClientLogoutTime, s.OfficeLoginTime)
}

// Stamp records t for event. Stamps are written once.
func (s *Session) Stamp(event EventType, t time.Time) {
	switch event {
	case EventOfficeLogout:
		if s.OfficeLogoutTime == nil {
			s.OfficeLogoutTime = &t
		}
	case EventClientLogin:
		if s.ClientLoginTime == nil {
			s.ClientLoginTime = &t
		}
	case EventClientLogout:
		if s.ClientLogoutTime == nil {
			s.ClientLogoutTime = &t
		}
	case EventOfficeLogin:
		if s.OfficeLoginTime == nil {
			s.OfficeLoginTime = &t
		}
	}
}

// SessionEvent is the audit row kept for every accepted event.
type SessionEvent struct {
	ID                string
	SessionID         string
	Event             EventType
	ClientTimestamp   time.Time
	Coords            geo.Coordinate
	DistanceMeters    int
	DeviceTZOffsetMin int
	Reason            *string
	RecordedAt        time.Time
}

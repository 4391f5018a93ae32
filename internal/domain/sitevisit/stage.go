package sitevisit

import (
	"fmt"
	"time"
)

// Stage is the step of the site-visit workflow the user has to perform next.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageOfficeLogout Stage = "office-logout"
	StageClientLogin  Stage = "client-login"
	StageClientLogout Stage = "client-logout"
	StageOfficeLogin  Stage = "office-login"
	StageCompleted    Stage = "completed"
)

// EventType is the server-side event a stage submits.
type EventType string

const (
	EventOfficeLogout EventType = "office_logout"
	EventClientLogin  EventType = "client_login"
	EventClientLogout EventType = "client_logout"
	EventOfficeLogin  EventType = "office_login"
)

var stages = []Stage{
	StageIdle,
	StageOfficeLogout,
	StageClientLogin,
	StageClientLogout,
	StageOfficeLogin,
	StageCompleted,
}

type transition struct {
	event EventType
	next  Stage
}

// transitions is the whole workflow. Stages not listed here (idle, completed)
// submit nothing and can only be left through Begin.
var transitions = map[Stage]transition{
	StageOfficeLogout: {event: EventOfficeLogout, next: StageClientLogin},
	StageClientLogin:  {event: EventClientLogin, next: StageClientLogout},
	StageClientLogout: {event: EventClientLogout, next: StageOfficeLogin},
	StageOfficeLogin:  {event: EventOfficeLogin, next: StageCompleted},
}

// ParseStage converts a stored stage name back into a Stage.
func ParseStage(s string) (Stage, error) {
	for _, st := range stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown site stage %q", s)
}

// ParseEventType converts a wire event name into an EventType.
func ParseEventType(s string) (EventType, error) {
	for _, t := range transitions {
		if string(t.event) == s {
			return t.event, nil
		}
	}
	return "", fmt.Errorf("unknown site event %q", s)
}

// EventFor returns the event submitted while in stage.
func EventFor(stage Stage) (EventType, error) {
	t, ok := transitions[stage]
	if !ok {
		return "", fmt.Errorf("%w: stage %q has no event", ErrStageMismatch, stage)
	}
	return t.event, nil
}

// Next applies event to stage and returns the resulting stage.
func Next(stage Stage, event EventType) (Stage, error) {
	t, ok := transitions[stage]
	if !ok || t.event != event {
		return stage, fmt.Errorf("%w: %s is not allowed in stage %s", ErrStageMismatch, event, stage)
	}
	return t.next, nil
}

// Begin opens a new visit cycle. Only idle and completed can begin one.
func Begin(stage Stage) (Stage, error) {
	if stage != StageIdle && stage != StageCompleted {
		return stage, fmt.Errorf("%w: cannot start a new visit from stage %s", ErrStageMismatch, stage)
	}
	return StageOfficeLogout, nil
}

// RequiresSession reports whether the event must carry an existing session id.
func (e EventType) RequiresSession() bool {
	return e != EventOfficeLogout
}

// StageFromTimestamps derives the next required stage from the stamps the
// server recorded. The first unset stamp wins.
func StageFromTimestamps(officeLogout, clientLogin, clientLogout, officeLogin *time.Time) Stage {
	switch {
	case officeLogout == nil:
		return StageOfficeLogout
	case clientLogin == nil:
		return StageClientLogin
	case clientLogout == nil:
		return StageClientLogout
	case officeLogin == nil:
		return StageOfficeLogin
	default:
		return StageCompleted
	}
}

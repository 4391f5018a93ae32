package sitevisit

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by a transition wraps exactly one of them.
var (
	ErrPermission   = errors.New("location permission denied")
	ErrPrecondition = errors.New("precondition failed")
	ErrTransport    = errors.New("transport error")
	ErrValidation   = errors.New("request rejected")
)

// Client-side transition errors
var (
	ErrBusy                   = fmt.Errorf("%w: another site action is still in progress", ErrPrecondition)
	ErrStageMismatch          = fmt.Errorf("%w: stage mismatch", ErrPrecondition)
	ErrSessionRequired        = fmt.Errorf("%w: session not found, log out from office first", ErrPrecondition)
	ErrReasonRequired         = fmt.Errorf("%w: a reason is required to log out from office", ErrPrecondition)
	ErrClientLocationRequired = fmt.Errorf("%w: select the client location first", ErrPrecondition)
	ErrOutsideOfficeRadius    = fmt.Errorf("%w: you are outside the office area", ErrPrecondition)
	ErrNoActiveSession        = fmt.Errorf("%w: no active session to refresh", ErrPrecondition)
	ErrMissingSessionID       = fmt.Errorf("%w: no session id returned from server", ErrValidation)
)

// Server-side session errors
var (
	ErrSessionNotFound     = errors.New("site session not found")
	ErrSessionClosed       = errors.New("site session is already closed")
	ErrEventOutOfOrder     = errors.New("site event is out of order")
	ErrActiveSessionExists = errors.New("an active site session already exists")
)

// ActiveSessionError is ErrActiveSessionExists with the id of the session that
// blocks a new office logout, so the device can resume it.
type ActiveSessionError struct {
	SessionID string
}

func (e *ActiveSessionError) Error() string {
	return ErrActiveSessionExists.Error()
}

func (e *ActiveSessionError) Unwrap() error {
	return ErrActiveSessionExists
}

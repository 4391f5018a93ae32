package sitevisit

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
)

// ========================================
// SITE SESSION DTOs
// ========================================

type EventRequest struct {
	UserID            string         `json:"user_id"`
	UserName          string         `json:"user_name"`
	UserEmail         string         `json:"user_email"`
	Event             EventType      `json:"event"`
	Timestamp         string         `json:"timestamp"`
	Coords            geo.Coordinate `json:"coords"`
	DistanceMeters    int            `json:"distance_m"`
	DeviceTZOffsetMin int            `json:"device_tz_offset_min"`
	SessionID         string         `json:"session_id,omitempty"`
	Reason            string         `json:"reason,omitempty"`
}

func (r *EventRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.UserID) {
		errs = append(errs, validator.ValidationError{
			Field:   "user_id",
			Message: "user_id is required",
		})
	}

	if r.UserEmail != "" && !validator.IsValidEmail(r.UserEmail) {
		errs = append(errs, validator.ValidationError{
			Field:   "user_email",
			Message: "user_email must be a valid email address",
		})
	}

	if _, err := ParseEventType(string(r.Event)); err != nil {
		errs = append(errs, validator.ValidationError{
			Field:   "event",
			Message: "event must be one of: office_logout, client_login, client_logout, office_login",
		})
	}

	if _, valid := validator.IsValidDateTime(r.Timestamp); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "timestamp",
			Message: "timestamp must be an ISO-8601 date time",
		})
	}

	if r.Coords.Latitude < -90 || r.Coords.Latitude > 90 {
		errs = append(errs, validator.ValidationError{
			Field:   "coords.latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if r.Coords.Longitude < -180 || r.Coords.Longitude > 180 {
		errs = append(errs, validator.ValidationError{
			Field:   "coords.longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.DistanceMeters < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "distance_m",
			Message: "distance_m must not be negative",
		})
	}

	if r.Event == EventOfficeLogout {
		if validator.IsEmpty(r.Reason) {
			errs = append(errs, validator.ValidationError{
				Field:   "reason",
				Message: "reason is required for office_logout",
			})
		}
		if r.SessionID != "" {
			errs = append(errs, validator.ValidationError{
				Field:   "session_id",
				Message: "session_id must be empty for office_logout",
			})
		}
	} else if r.Event.RequiresSession() {
		switch {
		case validator.IsEmpty(r.SessionID):
			errs = append(errs, validator.ValidationError{
				Field:   "session_id",
				Message: "session_id is required for " + string(r.Event),
			})
		case !validator.IsValidUUID(r.SessionID):
			errs = append(errs, validator.ValidationError{
				Field:   "session_id",
				Message: "session_id must be a valid UUID",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ParsedTimestamp returns the client timestamp. Call after Validate.
func (r *EventRequest) ParsedTimestamp() time.Time {
	t, _ := validator.IsValidDateTime(r.Timestamp)
	return t
}

type SessionResponse struct {
	SessionID          string  `json:"session_id"`
	UserID             string  `json:"user_id,omitempty"`
	Status             Status  `json:"status,omitempty"`
	OfficeLogoutReason *string `json:"office_logout_reason,omitempty"`
	OfficeLogoutTime   *string `json:"office_logout_time"`
	ClientLoginTime    *string `json:"client_login_time"`
	ClientLogoutTime   *string `json:"client_logout_time"`
	OfficeLoginTime    *string `json:"office_login_time"`
}

type EventResponse struct {
	Success   bool            `json:"success"`
	SessionID string          `json:"session_id"`
	Session   SessionResponse `json:"session"`
}

type SessionEnvelope struct {
	Success bool            `json:"success"`
	Session SessionResponse `json:"session"`
}

func timePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func NewSessionResponse(s Session) SessionResponse {
	return SessionResponse{
		SessionID:          s.ID,
		UserID:             s.UserID,
		Status:             s.Status,
		OfficeLogoutReason: s.OfficeLogoutReason,
		OfficeLogoutTime:   timePtrToString(s.OfficeLogoutTime),
		ClientLoginTime:    timePtrToString(s.ClientLoginTime),
		ClientLogoutTime:   timePtrToString(s.ClientLogoutTime),
		OfficeLoginTime:    timePtrToString(s.OfficeLoginTime),
	}
}

func parseStamp(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, ok := validator.IsValidDateTime(*value)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q is not an ISO-8601 date time", ErrValidation, field, *value)
	}
	return &t, nil
}

// ToSession parses a server session record. Unknown statuses and malformed
// stamps are rejected instead of being carried along.
func (r SessionResponse) ToSession() (Session, error) {
	if validator.IsEmpty(r.SessionID) {
		return Session{}, fmt.Errorf("%w: session record has no session_id", ErrValidation)
	}

	s := Session{
		ID:                 r.SessionID,
		UserID:             r.UserID,
		OfficeLogoutReason: r.OfficeLogoutReason,
		Status:             r.Status,
	}
	switch r.Status {
	case StatusActive, StatusCompleted, StatusAbandoned:
	case "":
		s.Status = StatusActive
	default:
		return Session{}, fmt.Errorf("%w: unknown session status %q", ErrValidation, r.Status)
	}

	var err error
	if s.OfficeLogoutTime, err = parseStamp("office_logout_time", r.OfficeLogoutTime); err != nil {
		return Session{}, err
	}
	if s.ClientLoginTime, err = parseStamp("client_login_time", r.ClientLoginTime); err != nil {
		return Session{}, err
	}
	if s.ClientLogoutTime, err = parseStamp("client_logout_time", r.ClientLogoutTime); err != nil {
		return Session{}, err
	}
	if s.OfficeLoginTime, err = parseStamp("office_login_time", r.OfficeLoginTime); err != nil {
		return Session{}, err
	}
	if s.Status == StatusActive && s.Stage() == StageCompleted {
		s.Status = StatusCompleted
	}

	return s, nil
}

package punch

import (
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
)

type Request struct {
	UserID            string          `json:"user_id"`
	UserName          string          `json:"user_name"`
	UserEmail         string          `json:"user_email"`
	PunchType         Direction       `json:"punch_type,omitempty"`
	BreakKind         string          `json:"break_kind,omitempty"`
	Event             Direction       `json:"event,omitempty"`
	Timestamp         string          `json:"timestamp"`
	Coords            geo.Coordinate  `json:"coords"`
	OfficeCoords      *geo.Coordinate `json:"office_coords,omitempty"`
	DistanceMeters    int             `json:"distance_m"`
	DeviceTZOffsetMin int             `json:"device_tz_offset_min"`
	Reason            string          `json:"reason,omitempty"`
}

// Validate checks the payload posted for kind/dir. Punches carry punch_type,
// breaks carry break_kind and event.
func (r *Request) Validate(kind Kind, dir Direction) error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.UserID) {
		errs = append(errs, validator.ValidationError{
			Field:   "user_id",
			Message: "user_id is required",
		})
	}

	if _, valid := validator.IsValidDateTime(r.Timestamp); !valid {
		errs = append(errs, validator.ValidationError{
			Field:   "timestamp",
			Message: "timestamp must be an ISO-8601 date time",
		})
	}

	if !r.Coords.Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "coords",
			Message: "coords must be a valid latitude/longitude pair",
		})
	}

	if r.OfficeCoords != nil && !r.OfficeCoords.Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "office_coords",
			Message: "office_coords must be a valid latitude/longitude pair",
		})
	}

	if kind == KindPunch {
		if r.PunchType != dir {
			errs = append(errs, validator.ValidationError{
				Field:   "punch_type",
				Message: "punch_type must be " + string(dir),
			})
		}
	} else {
		if k, err := ParseKind(r.BreakKind); err != nil || k != kind {
			errs = append(errs, validator.ValidationError{
				Field:   "break_kind",
				Message: "break_kind must be " + string(kind),
			})
		}
		if r.Event != dir {
			errs = append(errs, validator.ValidationError{
				Field:   "event",
				Message: "event must be " + string(dir),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type Response struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Kind           Kind    `json:"kind"`
	Direction      string  `json:"direction"`
	Timestamp      string  `json:"timestamp"`
	DistanceMeters int     `json:"distance_m"`
	Reason         *string `json:"reason,omitempty"`
	Status         Status  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

func NewResponse(r Record) Response {
	return Response{
		ID:             r.ID,
		UserID:         r.UserID,
		Kind:           r.Kind,
		Direction:      string(r.Direction),
		Timestamp:      r.ClientTimestamp.UTC().Format(time.RFC3339),
		DistanceMeters: r.DistanceMeters,
		Reason:         r.Reason,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

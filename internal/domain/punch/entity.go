package punch

import (
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
)

// Kind is what the employee is punching: the working day itself or one of the breaks.
type Kind string

const (
	KindPunch   Kind = "punch"
	KindLunch   Kind = "lunch"
	KindTea     Kind = "tea"
	KindFreshUp Kind = "freshup"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

var breakKinds = []Kind{KindLunch, KindTea, KindFreshUp}

// IsBreak reports whether k is one of the break kinds.
func (k Kind) IsBreak() bool {
	for _, b := range breakKinds {
		if b == k {
			return true
		}
	}
	return false
}

// ParseKind accepts punch and the break kinds. "fresh" is accepted for freshup.
func ParseKind(s string) (Kind, error) {
	switch s {
	case string(KindPunch):
		return KindPunch, nil
	case string(KindLunch):
		return KindLunch, nil
	case string(KindTea):
		return KindTea, nil
	case string(KindFreshUp), "fresh":
		return KindFreshUp, nil
	}
	return "", ErrUnknownKind
}

// Endpoint is the backend path a punch of kind/direction is posted to.
func Endpoint(kind Kind, dir Direction) string {
	if kind == KindPunch {
		return "/api/punch" + string(dir) + "/"
	}
	return "/api/" + string(kind) + "/" + string(dir) + "/"
}

type Record struct {
	ID                string
	UserID            string
	UserName          string
	UserEmail         string
	Kind              Kind
	Direction         Direction
	ClientTimestamp   time.Time
	Coords            geo.Coordinate
	OfficeCoords      *geo.Coordinate
	DistanceMeters    int
	DeviceTZOffsetMin int
	Reason            *string
	Status            Status
	CreatedAt         time.Time
}

package punch

import "errors"

var (
	ErrUnknownKind      = errors.New("unknown punch kind")
	ErrPunchInTooLate   = errors.New("late punch in is not allowed")
	ErrPunchOutTooEarly = errors.New("punch out is not allowed yet")
)

package punch

import "context"

type PunchService interface {
	// Record stores one punch or break event
	Record(ctx context.Context, kind Kind, dir Direction, req Request) (Response, error)
}

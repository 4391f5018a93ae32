package punch

import "context"

type PunchRepository interface {
	Create(ctx context.Context, record Record) (Record, error)
}

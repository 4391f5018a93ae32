package punch

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
	"github.com/google/uuid"
)

type PunchServiceImpl struct {
	punch.PunchRepository
}

func NewPunchService(repo punch.PunchRepository) punch.PunchService {
	return &PunchServiceImpl{PunchRepository: repo}
}

// Record implements punch.PunchService.
func (s *PunchServiceImpl) Record(ctx context.Context, kind punch.Kind, dir punch.Direction, req punch.Request) (punch.Response, error) {
	if err := req.Validate(kind, dir); err != nil {
		return punch.Response{}, err
	}

	ts, _ := validator.IsValidDateTime(req.Timestamp)

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}

	record, err := s.PunchRepository.Create(ctx, punch.Record{
		ID:                uuid.Must(uuid.NewV7()).String(),
		UserID:            req.UserID,
		UserName:          req.UserName,
		UserEmail:         req.UserEmail,
		Kind:              kind,
		Direction:         dir,
		ClientTimestamp:   ts.UTC(),
		Coords:            req.Coords,
		OfficeCoords:      req.OfficeCoords,
		DistanceMeters:    req.DistanceMeters,
		DeviceTZOffsetMin: req.DeviceTZOffsetMin,
		Reason:            reason,
		Status:            punch.StatusPending,
	})
	if err != nil {
		return punch.Response{}, err
	}

	slog.Info("Punch recorded",
		"id", record.ID,
		"user_id", record.UserID,
		"kind", kind,
		"direction", dir,
		"distance_m", record.DistanceMeters,
		"at", record.ClientTimestamp.Format(time.RFC3339),
	)

	return punch.NewResponse(record), nil
}

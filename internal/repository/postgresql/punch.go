package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/database"
)

type punchRepository struct {
	db *database.DB
}

func NewPunchRepository(db *database.DB) punch.PunchRepository {
	return &punchRepository{db: db}
}

// Create implements punch.PunchRepository.
func (r *punchRepository) Create(ctx context.Context, record punch.Record) (punch.Record, error) {
	q := GetQuerier(ctx, r.db)

	var officeLat, officeLon *float64
	if record.OfficeCoords != nil {
		officeLat = &record.OfficeCoords.Latitude
		officeLon = &record.OfficeCoords.Longitude
	}

	query := `
		INSERT INTO punch_records (
			id, user_id, user_name, user_email, kind, direction, client_timestamp,
			latitude, longitude, office_latitude, office_longitude,
			distance_m, device_tz_offset_min, reason, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		) RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		record.ID,
		record.UserID,
		record.UserName,
		record.UserEmail,
		string(record.Kind),
		string(record.Direction),
		record.ClientTimestamp,
		record.Coords.Latitude,
		record.Coords.Longitude,
		officeLat,
		officeLon,
		record.DistanceMeters,
		record.DeviceTZOffsetMin,
		record.Reason,
		string(record.Status),
	).Scan(&record.CreatedAt)

	if err != nil {
		return punch.Record{}, fmt.Errorf("failed to create punch record: %w", err)
	}

	return record, nil
}

package punch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRepository struct {
	created []punch.Record
	err     error
}

func (r *recordingRepository) Create(ctx context.Context, record punch.Record) (punch.Record, error) {
	if r.err != nil {
		return punch.Record{}, r.err
	}
	record.CreatedAt = time.Date(2025, 3, 10, 9, 0, 1, 0, time.UTC)
	r.created = append(r.created, record)
	return record, nil
}

func TestRecord_PunchIn(t *testing.T) {
	repo := &recordingRepository{}
	svc := NewPunchService(repo)

	office := geo.Coordinate{Latitude: 8.7901247, Longitude: 78.1150205}
	resp, err := svc.Record(context.Background(), punch.KindPunch, punch.DirectionIn, punch.Request{
		UserID:         "EMP001",
		PunchType:      punch.DirectionIn,
		Timestamp:      "2025-03-10T14:30:00+05:30",
		Coords:         geo.Coordinate{Latitude: 8.7902, Longitude: 78.1151},
		OfficeCoords:   &office,
		DistanceMeters: 12,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	rec := repo.created[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, punch.StatusPending, rec.Status)
	assert.Nil(t, rec.Reason)
	assert.True(t, rec.ClientTimestamp.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))

	assert.Equal(t, rec.ID, resp.ID)
	assert.Equal(t, punch.KindPunch, resp.Kind)
	assert.Equal(t, "in", resp.Direction)
	assert.Equal(t, "2025-03-10T09:00:00Z", resp.Timestamp)
}

func TestRecord_BreakCarriesReason(t *testing.T) {
	repo := &recordingRepository{}
	svc := NewPunchService(repo)

	resp, err := svc.Record(context.Background(), punch.KindTea, punch.DirectionOut, punch.Request{
		UserID:    "EMP001",
		BreakKind: "tea",
		Event:     punch.DirectionOut,
		Timestamp: "2025-03-10T10:00:00Z",
		Coords:    geo.Coordinate{Latitude: 8.79, Longitude: 78.11},
		Reason:    "back early",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, "back early", *resp.Reason)
}

func TestRecord_InvalidRequestNeverHitsRepository(t *testing.T) {
	repo := &recordingRepository{}
	svc := NewPunchService(repo)

	_, err := svc.Record(context.Background(), punch.KindLunch, punch.DirectionIn, punch.Request{
		UserID:    "EMP001",
		BreakKind: "tea",
		Event:     punch.DirectionIn,
		Timestamp: "yesterday",
	})

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.ToMap(), "break_kind")
	assert.Contains(t, verrs.ToMap(), "timestamp")
	assert.Empty(t, repo.created)
}

func TestRecord_RepositoryError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewPunchService(&recordingRepository{err: boom})

	_, err := svc.Record(context.Background(), punch.KindPunch, punch.DirectionOut, punch.Request{
		UserID:    "EMP001",
		PunchType: punch.DirectionOut,
		Timestamp: "2025-03-10T19:30:00Z",
		Coords:    geo.Coordinate{Latitude: 8.79, Longitude: 78.11},
	})
	assert.ErrorIs(t, err, boom)
}

package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type siteSessionRepository struct {
	db *database.DB
}

func NewSiteSessionRepository(db *database.DB) sitevisit.SessionRepository {
	return &siteSessionRepository{db: db}
}

const siteSessionColumns = `
	id, user_id, user_name, user_email, office_logout_reason,
	office_logout_time, client_login_time, client_logout_time, office_login_time,
	status, created_at, updated_at
`

func scanSiteSession(row pgx.Row) (sitevisit.Session, error) {
	var s sitevisit.Session
	var status string
	err := row.Scan(
		&s.ID, &s.UserID, &s.UserName, &s.UserEmail, &s.OfficeLogoutReason,
		&s.OfficeLogoutTime, &s.ClientLoginTime, &s.ClientLogoutTime, &s.OfficeLoginTime,
		&status, &s.CreatedAt, &s.UpdatedAt,
	)
	s.Status = sitevisit.Status(status)
	return s, err
}

// Create implements sitevisit.SessionRepository.
func (r *siteSessionRepository) Create(ctx context.Context, session sitevisit.Session) (sitevisit.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO site_sessions (
			id, user_id, user_name, user_email, office_logout_reason,
			office_logout_time, client_login_time, client_logout_time, office_login_time,
			status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		session.ID,
		session.UserID,
		session.UserName,
		session.UserEmail,
		session.OfficeLogoutReason,
		session.OfficeLogoutTime,
		session.ClientLoginTime,
		session.ClientLogoutTime,
		session.OfficeLoginTime,
		string(session.Status),
	).Scan(&session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sitevisit.Session{}, sitevisit.ErrActiveSessionExists
		}
		return sitevisit.Session{}, fmt.Errorf("failed to create site session: %w", err)
	}

	return session, nil
}

// GetByID implements sitevisit.SessionRepository.
func (r *siteSessionRepository) GetByID(ctx context.Context, id string) (sitevisit.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + siteSessionColumns + ` FROM site_sessions WHERE id = $1`

	s, err := scanSiteSession(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitevisit.Session{}, sitevisit.ErrSessionNotFound
		}
		return sitevisit.Session{}, fmt.Errorf("failed to get site session: %w", err)
	}
	return s, nil
}

// GetByIDForUpdate implements sitevisit.SessionRepository.
func (r *siteSessionRepository) GetByIDForUpdate(ctx context.Context, id string) (sitevisit.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + siteSessionColumns + ` FROM site_sessions WHERE id = $1 FOR UPDATE`

	s, err := scanSiteSession(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitevisit.Session{}, sitevisit.ErrSessionNotFound
		}
		return sitevisit.Session{}, fmt.Errorf("failed to lock site session: %w", err)
	}
	return s, nil
}

// GetActiveByUser implements sitevisit.SessionRepository.
func (r *siteSessionRepository) GetActiveByUser(ctx context.Context, userID string) (*sitevisit.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + siteSessionColumns + `
		FROM site_sessions
		WHERE user_id = $1
		  AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`

	s, err := scanSiteSession(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active site session: %w", err)
	}
	return &s, nil
}

// Update implements sitevisit.SessionRepository.
func (r *siteSessionRepository) Update(ctx context.Context, session sitevisit.Session) error {
	q := GetQuerier(ctx, r.db)

	// stamps are only ever filled in, never cleared
	query := `
		UPDATE site_sessions SET
			office_logout_time = COALESCE(office_logout_time, $2),
			client_login_time  = COALESCE(client_login_time, $3),
			client_logout_time = COALESCE(client_logout_time, $4),
			office_login_time  = COALESCE(office_login_time, $5),
			status             = $6,
			updated_at         = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query,
		session.ID,
		session.OfficeLogoutTime,
		session.ClientLoginTime,
		session.ClientLogoutTime,
		session.OfficeLoginTime,
		string(session.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to update site session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sitevisit.ErrSessionNotFound
	}
	return nil
}

// CreateEvent implements sitevisit.SessionRepository.
func (r *siteSessionRepository) CreateEvent(ctx context.Context, event sitevisit.SessionEvent) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO site_session_events (
			id, session_id, event, client_timestamp, latitude, longitude,
			distance_m, device_tz_offset_min, reason, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := q.Exec(ctx, query,
		event.ID,
		event.SessionID,
		string(event.Event),
		event.ClientTimestamp,
		event.Coords.Latitude,
		event.Coords.Longitude,
		event.DistanceMeters,
		event.DeviceTZOffsetMin,
		event.Reason,
		event.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create site session event: %w", err)
	}
	return nil
}

// AbandonStartedBefore implements sitevisit.SessionRepository.
func (r *siteSessionRepository) AbandonStartedBefore(ctx context.Context, t time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE site_sessions
		SET status = 'abandoned', updated_at = NOW()
		WHERE status = 'active'
		  AND office_logout_time < $1
	`

	tag, err := q.Exec(ctx, query, t)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon stale site sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

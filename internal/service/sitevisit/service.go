package sitevisit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/database"
	"github.com/google/uuid"
)

type SiteSessionServiceImpl struct {
	tx database.TxRunner
	sitevisit.SessionRepository
	now func() time.Time
}

func NewSiteSessionService(tx database.TxRunner, repo sitevisit.SessionRepository) sitevisit.SiteSessionService {
	return &SiteSessionServiceImpl{
		tx:                tx,
		SessionRepository: repo,
		now:               time.Now,
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordEvent implements sitevisit.SiteSessionService.
func (s *SiteSessionServiceImpl) RecordEvent(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error) {
	if err := req.Validate(); err != nil {
		return sitevisit.EventResponse{}, err
	}

	nowUTC := s.now().UTC()

	var result sitevisit.Session
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		retried := false
		if req.Event == sitevisit.EventOfficeLogout {
			result, retried, err = s.startSession(txCtx, req, nowUTC)
		} else {
			result, err = s.advanceSession(txCtx, req, nowUTC)
		}
		if err != nil || retried {
			return err
		}

		return s.SessionRepository.CreateEvent(txCtx, sitevisit.SessionEvent{
			ID:                newID(),
			SessionID:         result.ID,
			Event:             req.Event,
			ClientTimestamp:   req.ParsedTimestamp(),
			Coords:            req.Coords,
			DistanceMeters:    req.DistanceMeters,
			DeviceTZOffsetMin: req.DeviceTZOffsetMin,
			Reason:            optionalString(req.Reason),
			RecordedAt:        nowUTC,
		})
	})
	if err != nil {
		return sitevisit.EventResponse{}, err
	}

	slog.Info("Site event recorded",
		"session_id", result.ID,
		"user_id", result.UserID,
		"event", req.Event,
		"distance_m", req.DistanceMeters,
		"stage", result.Stage(),
	)

	return sitevisit.EventResponse{
		Success:   true,
		SessionID: result.ID,
		Session:   sitevisit.NewSessionResponse(result),
	}, nil
}

// startSession opens a visit. A user whose active session has only the office
// logout stamp is retrying a request whose response was lost, so that session
// is handed back instead of failing. Any other active session is reported with
// its id.
func (s *SiteSessionServiceImpl) startSession(ctx context.Context, req sitevisit.EventRequest, now time.Time) (sitevisit.Session, bool, error) {
	active, err := s.SessionRepository.GetActiveByUser(ctx, req.UserID)
	if err != nil {
		return sitevisit.Session{}, false, fmt.Errorf("failed to check active site session: %w", err)
	}
	if active != nil {
		if active.Stage() == sitevisit.StageClientLogin {
			return *active, true, nil
		}
		return sitevisit.Session{}, false, &sitevisit.ActiveSessionError{SessionID: active.ID}
	}

	session := sitevisit.Session{
		ID:                 newID(),
		UserID:             req.UserID,
		UserName:           req.UserName,
		UserEmail:          req.UserEmail,
		OfficeLogoutReason: optionalString(req.Reason),
		Status:             sitevisit.StatusActive,
	}
	session.Stamp(sitevisit.EventOfficeLogout, now)

	created, err := s.SessionRepository.Create(ctx, session)
	if err != nil {
		if errors.Is(err, sitevisit.ErrActiveSessionExists) {
			return sitevisit.Session{}, false, err
		}
		return sitevisit.Session{}, false, fmt.Errorf("failed to create site session: %w", err)
	}
	return created, false, nil
}

func (s *SiteSessionServiceImpl) advanceSession(ctx context.Context, req sitevisit.EventRequest, now time.Time) (sitevisit.Session, error) {
	session, err := s.SessionRepository.GetByIDForUpdate(ctx, req.SessionID)
	if err != nil {
		return sitevisit.Session{}, err
	}

	if session.UserID != req.UserID {
		return sitevisit.Session{}, sitevisit.ErrSessionNotFound
	}

	if session.Status != sitevisit.StatusActive {
		return sitevisit.Session{}, sitevisit.ErrSessionClosed
	}

	next, err := sitevisit.Next(session.Stage(), req.Event)
	if err != nil {
		return sitevisit.Session{}, fmt.Errorf("%w: expected the event for stage %s", sitevisit.ErrEventOutOfOrder, session.Stage())
	}

	session.Stamp(req.Event, now)
	if next == sitevisit.StageCompleted {
		session.Status = sitevisit.StatusCompleted
	}

	if err := s.SessionRepository.Update(ctx, session); err != nil {
		return sitevisit.Session{}, err
	}
	return session, nil
}

// GetSession implements sitevisit.SiteSessionService.
func (s *SiteSessionServiceImpl) GetSession(ctx context.Context, sessionID string, userID string) (sitevisit.SessionResponse, error) {
	session, err := s.SessionRepository.GetByID(ctx, sessionID)
	if err != nil {
		return sitevisit.SessionResponse{}, err
	}
	if session.UserID != userID {
		return sitevisit.SessionResponse{}, sitevisit.ErrSessionNotFound
	}
	return sitevisit.NewSessionResponse(session), nil
}

// AbandonStaleSessions implements sitevisit.SiteSessionService.
func (s *SiteSessionServiceImpl) AbandonStaleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	n, err := s.SessionRepository.AbandonStartedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Stale site sessions abandoned", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Package sitevisit drives the four checkpoints of a site visit from the
// employee's device: office logout, client login, client logout and office
// login. The backend owns the session; the device caches its id and stage.
package sitevisit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/client/location"
	"github.com/cmlabs-hris/site-visit-go/internal/client/store"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
)

// ErrLocationUnavailable is returned when the provider fails for a reason other than a refused permission.
var ErrLocationUnavailable = fmt.Errorf("%w: current location unavailable", sitevisit.ErrPermission)

// SessionAPI is the part of the backend the machine talks to.
type SessionAPI interface {
	PostSessionEvent(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error)
	GetSession(ctx context.Context, sessionID string) (sitevisit.SessionEnvelope, error)
}

type User struct {
	ID    string
	Name  string
	Email string
}

type Config struct {
	User   User
	Office geo.Coordinate
	// Client is used when the user has not recorded a client location.
	Client   *geo.Coordinate
	Accuracy location.Accuracy
	// OfficeGateMeters rejects an office login farther than this from the office. 0 disables it.
	OfficeGateMeters float64
	Now              func() time.Time
	Logger           *slog.Logger
}

// Payload is the user input of a transition.
type Payload struct {
	Reason string
}

type Machine struct {
	cfg     Config
	api     SessionAPI
	store   store.Store
	locator location.Provider
	log     *slog.Logger

	mu        sync.Mutex
	busy      bool
	stage     sitevisit.Stage
	sessionID string
}

func NewMachine(cfg Config, api SessionAPI, st store.Store, locator location.Provider) *Machine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Accuracy == "" {
		cfg.Accuracy = location.AccuracyHigh
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:     cfg,
		api:     api,
		store:   st,
		locator: locator,
		log:     logger.With("component", "sitevisit", "user_id", cfg.User.ID),
		stage:   sitevisit.StageIdle,
	}
}

// acquire takes the busy guard. The caller must release it.
func (m *Machine) acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return sitevisit.ErrBusy
	}
	m.busy = true
	return nil
}

func (m *Machine) release() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Machine) snapshot() (sitevisit.Stage, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage, m.sessionID
}

func (m *Machine) set(stage sitevisit.Stage, sessionID string) {
	m.mu.Lock()
	m.stage = stage
	m.sessionID = sessionID
	m.mu.Unlock()
}

// CurrentStage returns the stage the user has to perform next.
func (m *Machine) CurrentStage() sitevisit.Stage {
	stage, _ := m.snapshot()
	return stage
}

// SessionID returns the cached session id, empty when there is none.
func (m *Machine) SessionID() string {
	_, id := m.snapshot()
	return id
}

// Load restores the cached session from the device store. A missing or
// unreadable stage leaves the machine idle.
func (m *Machine) Load(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	sessionID, _, err := m.store.Get(ctx, store.KeySessionID)
	if err != nil {
		return fmt.Errorf("load site session: %w", err)
	}
	raw, ok, err := m.store.Get(ctx, store.KeyStage)
	if err != nil {
		return fmt.Errorf("load site stage: %w", err)
	}

	stage := sitevisit.StageIdle
	if ok {
		if parsed, err := sitevisit.ParseStage(raw); err == nil {
			stage = parsed
		} else {
			m.log.Warn("Ignoring unknown cached site stage", "stage", raw)
		}
	}

	m.set(stage, sessionID)
	return nil
}

// Start opens a new visit cycle from idle or completed.
func (m *Machine) Start(ctx context.Context) (sitevisit.Stage, error) {
	if err := m.acquire(); err != nil {
		return "", err
	}
	defer m.release()

	current, _ := m.snapshot()
	next, err := sitevisit.Begin(current)
	if err != nil {
		return current, err
	}

	if err := m.store.Delete(ctx, store.KeySessionID); err != nil {
		return current, fmt.Errorf("start site visit: %w", err)
	}
	if err := m.store.Set(ctx, store.KeyStage, string(next)); err != nil {
		return current, fmt.Errorf("start site visit: %w", err)
	}
	m.set(next, "")
	return next, nil
}

// Advance performs the checkpoint of stage. stage must be the current stage;
// office-logout is also accepted from idle and completed and opens a new cycle.
// When the backend refuses an office logout because the user still has an
// active session, that session is resumed and its stage returned.
// On any error the stage and the cached session are left untouched.
func (m *Machine) Advance(ctx context.Context, stage sitevisit.Stage, payload Payload) (sitevisit.Stage, error) {
	if err := m.acquire(); err != nil {
		return "", err
	}
	defer m.release()

	current, sessionID := m.snapshot()
	expected := current
	if stage == sitevisit.StageOfficeLogout {
		if begun, err := sitevisit.Begin(current); err == nil {
			expected = begun
		}
	}
	if stage != expected {
		return current, fmt.Errorf("%w: current stage is %s, not %s", sitevisit.ErrStageMismatch, expected, stage)
	}

	event, err := sitevisit.EventFor(stage)
	if err != nil {
		return current, err
	}

	reason := strings.TrimSpace(payload.Reason)
	switch {
	case event.RequiresSession() && sessionID == "":
		return current, sitevisit.ErrSessionRequired
	case event == sitevisit.EventOfficeLogout && reason == "":
		return current, sitevisit.ErrReasonRequired
	}

	reference := m.cfg.Office
	if event == sitevisit.EventClientLogin || event == sitevisit.EventClientLogout {
		client, ok, err := m.clientReference(ctx)
		if err != nil {
			return current, err
		}
		if !ok {
			return current, sitevisit.ErrClientLocationRequired
		}
		reference = client
	}

	coords, err := m.locator.Current(ctx, m.cfg.Accuracy)
	if err != nil {
		if errors.Is(err, sitevisit.ErrPermission) {
			return current, err
		}
		return current, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}

	distance := geo.Distance(coords, reference)
	if event == sitevisit.EventOfficeLogin && m.cfg.OfficeGateMeters > 0 && distance > m.cfg.OfficeGateMeters {
		return current, fmt.Errorf("%w (%.0f m from the office)", sitevisit.ErrOutsideOfficeRadius, distance)
	}

	now := m.cfg.Now()
	_, offset := now.Zone()
	req := sitevisit.EventRequest{
		UserID:            m.cfg.User.ID,
		UserName:          m.cfg.User.Name,
		UserEmail:         m.cfg.User.Email,
		Event:             event,
		Timestamp:         now.UTC().Format(time.RFC3339),
		Coords:            coords,
		DistanceMeters:    int(math.Round(distance)),
		DeviceTZOffsetMin: offset / 60,
	}
	if event == sitevisit.EventOfficeLogout {
		req.Reason = reason
	} else {
		req.SessionID = sessionID
	}

	resp, err := m.api.PostSessionEvent(ctx, req)
	if err != nil {
		var active *sitevisit.ActiveSessionError
		if event == sitevisit.EventOfficeLogout && errors.As(err, &active) && active.SessionID != "" {
			return m.resume(ctx, current, active.SessionID)
		}
		m.log.Warn("Site event failed", "event", event, "error", err)
		return current, err
	}

	if event == sitevisit.EventOfficeLogout {
		if resp.SessionID == "" {
			return current, sitevisit.ErrMissingSessionID
		}
		sessionID = resp.SessionID
	}

	next, err := sitevisit.Next(stage, event)
	if err != nil {
		return current, err
	}
	m.checkServerStage(resp.Session, next)
	m.commit(ctx, next, sessionID)

	m.log.Info("Site stage advanced",
		"event", event,
		"session_id", sessionID,
		"stage", next,
		"distance_m", req.DistanceMeters,
	)
	return next, nil
}

// Refresh reloads the session from the backend and re-derives the stage from
// its stamps. An empty sessionID refreshes the cached session.
func (m *Machine) Refresh(ctx context.Context, sessionID string) (sitevisit.Session, error) {
	if err := m.acquire(); err != nil {
		return sitevisit.Session{}, err
	}
	defer m.release()

	if sessionID == "" {
		_, sessionID = m.snapshot()
	}
	if sessionID == "" {
		return sitevisit.Session{}, sitevisit.ErrNoActiveSession
	}

	return m.fetch(ctx, sessionID)
}

// fetch loads sessionID from the backend and commits the stage derived from it.
func (m *Machine) fetch(ctx context.Context, sessionID string) (sitevisit.Session, error) {
	envelope, err := m.api.GetSession(ctx, sessionID)
	if err != nil {
		return sitevisit.Session{}, err
	}
	session, err := envelope.Session.ToSession()
	if err != nil {
		return sitevisit.Session{}, err
	}

	switch {
	case session.Status == sitevisit.StatusAbandoned:
		m.log.Info("Site session was abandoned, starting over", "session_id", session.ID)
		m.commit(ctx, sitevisit.StageOfficeLogout, "")
	default:
		m.commit(ctx, session.Stage(), session.ID)
	}
	return session, nil
}

// resume picks up the active session the backend reported for this user after
// the device lost track of it.
func (m *Machine) resume(ctx context.Context, current sitevisit.Stage, sessionID string) (sitevisit.Stage, error) {
	if _, err := m.fetch(ctx, sessionID); err != nil {
		m.log.Warn("Failed to resume active site session", "session_id", sessionID, "error", err)
		return current, err
	}
	stage, _ := m.snapshot()
	m.log.Info("Resumed active site session", "session_id", sessionID, "stage", stage)
	return stage, nil
}

// Clear forgets the cached session and returns to idle.
func (m *Machine) Clear(ctx context.Context) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	if err := m.store.Delete(ctx, store.KeySessionID, store.KeyStage); err != nil {
		return fmt.Errorf("clear site session: %w", err)
	}
	m.set(sitevisit.StageIdle, "")
	return nil
}

// RecordClientLocation stores the client site picked by the user. It becomes
// the reference for the client checkpoints.
func (m *Machine) RecordClientLocation(ctx context.Context, c geo.Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("%w: client location %v is out of range", sitevisit.ErrPrecondition, c)
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, store.KeyClientLocation, string(data)); err != nil {
		return fmt.Errorf("save client location: %w", err)
	}
	return nil
}

// ClientLocation returns the client reference: the recorded location, else the configured one.
func (m *Machine) ClientLocation(ctx context.Context) (geo.Coordinate, bool, error) {
	return m.clientReference(ctx)
}

func (m *Machine) clientReference(ctx context.Context) (geo.Coordinate, bool, error) {
	raw, ok, err := m.store.Get(ctx, store.KeyClientLocation)
	if err != nil {
		return geo.Coordinate{}, false, fmt.Errorf("load client location: %w", err)
	}
	if ok {
		var c geo.Coordinate
		if err := json.Unmarshal([]byte(raw), &c); err == nil && c.Valid() {
			return c, true, nil
		}
		m.log.Warn("Ignoring unreadable client location", "value", raw)
	}
	if m.cfg.Client != nil {
		return *m.cfg.Client, true, nil
	}
	return geo.Coordinate{}, false, nil
}

// commit applies a stage the backend has accepted. The store is a cache, so
// write failures are logged and the new stage is kept.
func (m *Machine) commit(ctx context.Context, stage sitevisit.Stage, sessionID string) {
	if stage == sitevisit.StageCompleted {
		sessionID = ""
		if err := m.store.Delete(ctx, store.KeySessionID, store.KeyStage); err != nil {
			m.log.Warn("Failed to clear cached site session", "error", err)
		}
		m.set(stage, sessionID)
		return
	}

	if sessionID == "" {
		if err := m.store.Delete(ctx, store.KeySessionID); err != nil {
			m.log.Warn("Failed to clear cached site session id", "error", err)
		}
	} else if err := m.store.Set(ctx, store.KeySessionID, sessionID); err != nil {
		m.log.Warn("Failed to cache site session id", "error", err)
	}
	if err := m.store.Set(ctx, store.KeyStage, string(stage)); err != nil {
		m.log.Warn("Failed to cache site stage", "error", err)
	}
	m.set(stage, sessionID)
}

func (m *Machine) checkServerStage(resp sitevisit.SessionResponse, next sitevisit.Stage) {
	if resp.SessionID == "" {
		return
	}
	session, err := resp.ToSession()
	if err != nil {
		m.log.Warn("Unreadable session in event response", "error", err)
		return
	}
	if derived := session.Stage(); derived != next {
		m.log.Warn("Server session disagrees with local stage", "local", next, "server", derived)
	}
}

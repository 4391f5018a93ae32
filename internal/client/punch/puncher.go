// Package punch submits punch in/out and break events from the device.
package punch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/client/location"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
)

const DefaultGateMeters = 100

type PunchAPI interface {
	PostPunch(ctx context.Context, endpoint string, req punch.Request) (punch.Response, error)
}

type Config struct {
	UserID    string
	UserName  string
	UserEmail string
	Office    geo.Coordinate
	// GateMeters is the radius around the office a punch must be made from. Zero means DefaultGateMeters.
	GateMeters float64
	// InCutoff and OutEarliest are offsets from local midnight; zero disables the check.
	InCutoff    time.Duration
	OutEarliest time.Duration
	Accuracy    location.Accuracy
	Now         func() time.Time
	Logger      *slog.Logger
}

type Puncher struct {
	cfg     Config
	api     PunchAPI
	locator location.Provider
	log     *slog.Logger

	mu   sync.Mutex
	busy bool
}

func NewPuncher(cfg Config, api PunchAPI, locator location.Provider) *Puncher {
	if cfg.GateMeters <= 0 {
		cfg.GateMeters = DefaultGateMeters
	}
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
	return &Puncher{
		cfg:     cfg,
		api:     api,
		locator: locator,
		log:     logger.With("component", "punch", "user_id", cfg.UserID),
	}
}

func (p *Puncher) PunchIn(ctx context.Context, reason string) (punch.Response, error) {
	return p.submit(ctx, punch.KindPunch, punch.DirectionIn, reason)
}

func (p *Puncher) PunchOut(ctx context.Context, reason string) (punch.Response, error) {
	return p.submit(ctx, punch.KindPunch, punch.DirectionOut, reason)
}

func (p *Puncher) BreakIn(ctx context.Context, kind punch.Kind, reason string) (punch.Response, error) {
	if !kind.IsBreak() {
		return punch.Response{}, punch.ErrUnknownKind
	}
	return p.submit(ctx, kind, punch.DirectionIn, reason)
}

func (p *Puncher) BreakOut(ctx context.Context, kind punch.Kind, reason string) (punch.Response, error) {
	if !kind.IsBreak() {
		return punch.Response{}, punch.ErrUnknownKind
	}
	return p.submit(ctx, kind, punch.DirectionOut, reason)
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

// checkWindow applies the working-day limits to punches. Breaks are not limited.
func (p *Puncher) checkWindow(kind punch.Kind, dir punch.Direction, now time.Time) error {
	if kind != punch.KindPunch {
		return nil
	}
	clock := sinceMidnight(now)
	if dir == punch.DirectionIn && p.cfg.InCutoff > 0 && clock >= p.cfg.InCutoff {
		return fmt.Errorf("%w: %w", sitevisit.ErrPrecondition, punch.ErrPunchInTooLate)
	}
	if dir == punch.DirectionOut && p.cfg.OutEarliest > 0 && clock < p.cfg.OutEarliest {
		return fmt.Errorf("%w: %w", sitevisit.ErrPrecondition, punch.ErrPunchOutTooEarly)
	}
	return nil
}

func (p *Puncher) submit(ctx context.Context, kind punch.Kind, dir punch.Direction, reason string) (punch.Response, error) {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return punch.Response{}, sitevisit.ErrBusy
	}
	p.busy = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	now := p.cfg.Now()
	if err := p.checkWindow(kind, dir, now); err != nil {
		return punch.Response{}, err
	}

	coords, err := p.locator.Current(ctx, p.cfg.Accuracy)
	if err != nil {
		if errors.Is(err, sitevisit.ErrPermission) {
			return punch.Response{}, err
		}
		return punch.Response{}, fmt.Errorf("%w: current location unavailable: %w", sitevisit.ErrPermission, err)
	}

	distance := geo.Distance(coords, p.cfg.Office)
	if kind == punch.KindPunch && distance > p.cfg.GateMeters {
		return punch.Response{}, fmt.Errorf("%w (%.0f m from the office)", sitevisit.ErrOutsideOfficeRadius, distance)
	}

	_, offset := now.Zone()
	office := p.cfg.Office
	req := punch.Request{
		UserID:            p.cfg.UserID,
		UserName:          p.cfg.UserName,
		UserEmail:         p.cfg.UserEmail,
		Timestamp:         now.UTC().Format(time.RFC3339),
		Coords:            coords,
		OfficeCoords:      &office,
		DistanceMeters:    int(math.Round(distance)),
		DeviceTZOffsetMin: offset / 60,
		Reason:            strings.TrimSpace(reason),
	}
	if kind == punch.KindPunch {
		req.PunchType = dir
	} else {
		req.BreakKind = string(kind)
		req.Event = dir
	}

	resp, err := p.api.PostPunch(ctx, punch.Endpoint(kind, dir), req)
	if err != nil {
		p.log.Warn("Punch failed", "kind", kind, "direction", dir, "error", err)
		return punch.Response{}, err
	}

	p.log.Info("Punch submitted", "kind", kind, "direction", dir, "distance_m", req.DistanceMeters)
	return resp, nil
}

// Command sitevisit drives the site visit and punch flows from a terminal.
//
//	sitevisit [flags] stage|start|advance|refresh|clear|set-client
//	sitevisit [flags] punch in|out
//	sitevisit [flags] -kind lunch|tea|freshup break in|out
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/client/api"
	"github.com/cmlabs-hris/site-visit-go/internal/client/location"
	punchClient "github.com/cmlabs-hris/site-visit-go/internal/client/punch"
	siteVisitClient "github.com/cmlabs-hris/site-visit-go/internal/client/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/client/store"
	"github.com/cmlabs-hris/site-visit-go/internal/config"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/geo"
	"github.com/redis/go-redis/v9"
)

const (
	exitOK = iota
	exitUsage
	exitPrecondition
	exitPermission
	exitTransport
	exitValidation
	exitFailure
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	envFile      string
	storeKind    string
	lat, lon     float64
	hasPosition  bool
	reason       string
	session      string
	kind         string
	denyLocation bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sitevisit", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.envFile, "env", ".env", "env file with the device settings")
	fs.StringVar(&opts.storeKind, "store", "", "device store: file, redis or memory (default DEVICE_STORE)")
	fs.Float64Var(&opts.lat, "lat", 0, "current latitude")
	fs.Float64Var(&opts.lon, "lon", 0, "current longitude")
	fs.StringVar(&opts.reason, "reason", "", "reason for an office logout or a punch")
	fs.StringVar(&opts.session, "session", "", "session id to refresh (default: the cached one)")
	fs.StringVar(&opts.kind, "kind", "", "break kind: lunch, tea or freshup")
	fs.BoolVar(&opts.denyLocation, "deny-location", false, "behave as if location access was refused")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "lat" || f.Name == "lon" {
			opts.hasPosition = true
		}
	})
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	if opts.storeKind != "" {
		cfg.Device.Store = opts.storeKind
	}
	if err := cfg.ValidateDevice(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}

	if err := dispatch(ctx, cfg, opts, fs.Args(), stdout); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitCode(err)
	}
	return exitOK
}

func dispatch(ctx context.Context, cfg *config.Config, opts options, args []string, stdout io.Writer) error {
	d := cfg.Device

	backend, err := api.NewClient(api.Options{BaseURL: d.APIBaseURL, Timeout: d.APITimeout, Token: d.APIToken})
	if err != nil {
		return err
	}

	var locator location.Provider = location.DeniedProvider{}
	if !opts.denyLocation {
		locator = location.ProviderFunc(func(ctx context.Context, accuracy location.Accuracy) (geo.Coordinate, error) {
			if !opts.hasPosition {
				return geo.Coordinate{}, fmt.Errorf("%w: pass -lat and -lon", siteVisitClient.ErrLocationUnavailable)
			}
			return location.StaticProvider{Coordinate: geo.Coordinate{Latitude: opts.lat, Longitude: opts.lon}}.Current(ctx, accuracy)
		})
	}

	switch args[0] {
	case "punch", "break":
		return runPunch(ctx, d, backend, locator, opts, args, stdout)
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	machine := siteVisitClient.NewMachine(siteVisitClient.Config{
		User:             siteVisitClient.User{ID: d.UserID, Name: d.UserName, Email: d.UserEmail},
		Office:           d.Office,
		Client:           d.Client,
		OfficeGateMeters: d.OfficeGateMeters,
	}, backend, st, locator)
	if err := machine.Load(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "stage":
	case "start":
		if _, err := machine.Start(ctx); err != nil {
			return err
		}
	case "advance":
		stage := machine.CurrentStage()
		if stage == sitevisit.StageIdle || stage == sitevisit.StageCompleted {
			stage = sitevisit.StageOfficeLogout
		}
		if _, err := machine.Advance(ctx, stage, siteVisitClient.Payload{Reason: opts.reason}); err != nil {
			return err
		}
	case "refresh":
		if _, err := machine.Refresh(ctx, opts.session); err != nil {
			return err
		}
	case "clear":
		if err := machine.Clear(ctx); err != nil {
			return err
		}
	case "set-client":
		if !opts.hasPosition {
			return errors.New("set-client needs -lat and -lon")
		}
		if err := machine.RecordClientLocation(ctx, geo.Coordinate{Latitude: opts.lat, Longitude: opts.lon}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	fmt.Fprintf(stdout, "stage: %s\n", machine.CurrentStage())
	if id := machine.SessionID(); id != "" {
		fmt.Fprintf(stdout, "session: %s\n", id)
	}
	return nil
}

func runPunch(ctx context.Context, d config.DeviceConfig, backend *api.Client, locator location.Provider, opts options, args []string, stdout io.Writer) error {
	if len(args) < 2 || (args[1] != string(punch.DirectionIn) && args[1] != string(punch.DirectionOut)) {
		return fmt.Errorf("usage: %s in|out", args[0])
	}
	dir := punch.Direction(args[1])

	p := punchClient.NewPuncher(punchClient.Config{
		UserID:      d.UserID,
		UserName:    d.UserName,
		UserEmail:   d.UserEmail,
		Office:      d.Office,
		GateMeters:  d.PunchGateMeters,
		InCutoff:    d.PunchInCutoff,
		OutEarliest: d.PunchOutEarliest,
	}, backend, locator)

	var (
		resp punch.Response
		err  error
	)
	if args[0] == "punch" {
		if dir == punch.DirectionIn {
			resp, err = p.PunchIn(ctx, opts.reason)
		} else {
			resp, err = p.PunchOut(ctx, opts.reason)
		}
	} else {
		kind, kerr := punch.ParseKind(opts.kind)
		if kerr != nil {
			return fmt.Errorf("%w: -kind must be lunch, tea or freshup", kerr)
		}
		if dir == punch.DirectionIn {
			resp, err = p.BreakIn(ctx, kind, opts.reason)
		} else {
			resp, err = p.BreakOut(ctx, kind, opts.reason)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s %s recorded: %s (%s)\n", resp.Kind, resp.Direction, resp.ID, resp.Status)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Device.Store {
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:       cfg.RedisAddr(),
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: -1,
		})
		st := store.NewRedisStore(rdb, cfg.Device.UserID)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("device store unreachable at %s: %w", cfg.RedisAddr(), err)
		}
		return st, func() { _ = rdb.Close() }, nil
	default:
		st, err := store.NewFileStore(cfg.Device.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, sitevisit.ErrPermission):
		return exitPermission
	case errors.Is(err, sitevisit.ErrPrecondition):
		return exitPrecondition
	case errors.Is(err, sitevisit.ErrTransport):
		return exitTransport
	case errors.Is(err, sitevisit.ErrValidation):
		return exitValidation
	default:
		return exitFailure
	}
}

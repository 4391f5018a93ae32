package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/config"
	appHTTP "github.com/cmlabs-hris/site-visit-go/internal/handler/http"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/cron"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/database"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/site-visit-go/internal/repository/postgresql"
	punchService "github.com/cmlabs-hris/site-visit-go/internal/service/punch"
	siteVisitService "github.com/cmlabs-hris/site-visit-go/internal/service/sitevisit"
	"github.com/cmlabs-hris/site-visit-go/migrations"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		fmt.Println("Invalid config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, db); err != nil {
			fmt.Println("Error applying migrations:", err)
			os.Exit(1)
		}
	}

	siteSessionRepo := postgresql.NewSiteSessionRepository(db)
	punchRepo := postgresql.NewPunchRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	siteSessionService := siteVisitService.NewSiteSessionService(postgresql.NewTransactor(db), siteSessionRepo)
	punchSvc := punchService.NewPunchService(punchRepo)

	siteSessionHandler := appHTTP.NewSiteSessionHandler(siteSessionService)
	punchHandler := appHTTP.NewPunchHandler(punchSvc)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)

	scheduler := cron.NewScheduler(ctx)
	cron.NewSiteSessionJobs(siteSessionService, cfg.SiteSession.StaleAfter).RegisterJobs(scheduler)
	cron.RegisterRateLimiterReset(scheduler, limiter, time.Hour)
	scheduler.Start()
	defer scheduler.Stop()

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			AllowedOrigins: cfg.App.AllowedOrigins,
			Environment:    cfg.App.Env,
			Version:        version,
		},
		JWTService,
		limiter,
		siteSessionHandler,
		punchHandler,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	fmt.Printf("Server running at http://localhost%s\n", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Println("Server error:", err)
	}
}

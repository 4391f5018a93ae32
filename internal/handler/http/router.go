package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/response"
	"github.com/cmlabs-hris/site-visit-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

type RouterOptions struct {
	AllowedOrigins []string
	Environment    string
	Version        string
}

func NewRouter(opts RouterOptions, JWTService jwt.Service, limiter *middleware.RateLimiter, siteSessionHandler SiteSessionHandler, punchHandler PunchHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "site-visit"),
		slog.String("version", opts.Version),
		slog.String("env", opts.Environment),
	)

	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	// Paths are registered without the trailing slash; CleanPath strips it
	// from incoming requests.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AuthRequired(JWTService))
		if limiter != nil {
			r.Use(limiter.Middleware())
		}

		r.Route("/site/session", func(r chi.Router) {
			r.Post("/event", siteSessionHandler.RecordEvent)
			r.Get("/{sessionID}", siteSessionHandler.GetSession)
		})

		r.Post("/punchin", punchHandler.Record(punch.KindPunch, punch.DirectionIn))
		r.Post("/punchout", punchHandler.Record(punch.KindPunch, punch.DirectionOut))

		for _, kind := range []punch.Kind{punch.KindLunch, punch.KindTea, punch.KindFreshUp} {
			r.Route("/"+string(kind), func(r chi.Router) {
				r.Post("/in", punchHandler.Record(kind, punch.DirectionIn))
				r.Post("/out", punchHandler.Record(kind, punch.DirectionOut))
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found")
	})

	return r
}

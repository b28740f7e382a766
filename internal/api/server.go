package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/config"
	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/metrics"
)

// Handlers bundles the route groups the server mounts. Nil entries are
// skipped so partial deployments (e.g. no event bus) still serve.
type Handlers struct {
	Sources     *SourcesHandler
	Transcripts *TranscriptsHandler
	Clips       *ClipsHandler
	Events      *EventsHandler
	Live        LiveDataSource
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, db *database.DB, h Handlers, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	r.Use(metrics.InstrumentHandler)

	// Health and metrics endpoints, no auth
	health := NewHealthHandler(db, h.Live, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		if h.Sources != nil {
			h.Sources.Routes(r)
		}
		if h.Transcripts != nil {
			h.Transcripts.Routes(r)
		}
		if h.Clips != nil {
			h.Clips.Routes(r)
		}
		if h.Events != nil {
			h.Events.Routes(r)
		}
	})

	return &Server{
		http: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: r,
			// Large uploads rule out a whole-request read timeout; the
			// upload handler bounds bodies with MaxBytesReader instead.
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	clipengine "github.com/snarg/clip-engine"
	"github.com/snarg/clip-engine/internal/api"
	"github.com/snarg/clip-engine/internal/config"
	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/ingest"
	"github.com/snarg/clip-engine/internal/jobs"
	"github.com/snarg/clip-engine/internal/llm"
	"github.com/snarg/clip-engine/internal/media"
	"github.com/snarg/clip-engine/internal/metrics"
	"github.com/snarg/clip-engine/internal/storage"
	"github.com/snarg/clip-engine/internal/timeline"
	"github.com/snarg/clip-engine/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection string")
	flag.StringVar(&overrides.MediaDir, "media-dir", "", "local media storage directory")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("clip-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx, clipengine.SchemaSQL); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Object storage
	store, err := storage.New(cfg.S3, cfg.MediaDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	log.Info().Str("type", store.Type()).Msg("storage ready")

	// Event bus for SSE subscribers
	bus := ingest.NewEventBus(256)

	// Media tool
	tool := media.NewTool(cfg.Render.FFmpegPath, cfg.Render.FFprobePath)

	// Transcription provider
	var provider transcribe.Provider
	switch cfg.Transcribe.Provider {
	case "whisper":
		provider = transcribe.NewWhisperClient(cfg.Transcribe.WhisperURL, cfg.Transcribe.WhisperModel, cfg.Transcribe.Timeout)
	case "scribe":
		provider = transcribe.NewScribeClient(cfg.Transcribe.ScribeAPIKey, cfg.Transcribe.ScribeBaseURL, cfg.Transcribe.PollInterval, cfg.Transcribe.PollTimeout)
	case "captions":
		provider = transcribe.NewCaptionClient(cfg.Transcribe.CaptionBaseURL, cfg.Transcribe.Timeout)
	default:
		log.Fatal().Str("provider", cfg.Transcribe.Provider).Msg("unknown transcription provider")
	}

	// Transcription workers
	transcribePool := transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
		DB:         db,
		Provider:   provider,
		Resolver:   store,
		Language:   cfg.Transcribe.Language,
		JobTimeout: cfg.Transcribe.PollTimeout,
		Workers:    cfg.Transcribe.Workers,
		QueueSize:  cfg.Transcribe.QueueSize,
		PublishEvent: func(eventType, sourceID string, payload map[string]any) {
			bus.Publish(ingest.EventData{Type: eventType, SourceID: sourceID, Payload: payload})
		},
		Log: log.With().Str("component", "transcribe").Logger(),
	})
	transcribePool.Start()

	// Render workers
	renderPool := jobs.NewRenderPool(jobs.RenderPoolOptions{
		DB:         db,
		Store:      store,
		Tool:       tool,
		JobTimeout: cfg.Render.Timeout,
		Workers:    cfg.Render.Workers,
		QueueSize:  cfg.Render.QueueSize,
		PublishEvent: func(eventType, jobID string, payload map[string]any) {
			bus.Publish(ingest.EventData{Type: eventType, JobID: jobID, Payload: payload})
		},
		Log: log.With().Str("component", "render").Logger(),
	})
	renderPool.Start()

	// Optional inbox watcher
	var watcher *ingest.InboxWatcher
	if cfg.InboxDir != "" {
		watcher = ingest.NewInboxWatcher(db, store, tool, transcribePool, bus, cfg.InboxDir, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start inbox watcher")
		}
	}

	// Clip proposal client, optional: scheduling then requires explicit
	// candidates in the request.
	var proposer api.ClipProposer
	if cfg.LLM.APIKey != "" {
		retry := llm.DefaultRetryPolicy()
		if cfg.LLM.MaxAttempts > 0 {
			retry.MaxAttempts = cfg.LLM.MaxAttempts
		}
		proposer = llm.New(llm.Options{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
			Gate:    llm.NewFixedDelayGate(cfg.LLM.MinInterval),
			Retry:   retry,
			Log:     log.With().Str("component", "llm").Logger(),
		})
	} else {
		log.Warn().Msg("no LLM API key configured, clip proposals disabled")
	}

	// Scrape-time gauges
	prometheus.MustRegister(metrics.NewCollector(db.Pool, &pipelineStats{
		bus:        bus,
		transcribe: transcribePool,
		renders:    renderPool,
	}))

	// HTTP server
	publish := func(eventType, sourceID, jobID string, payload any) {
		bus.Publish(ingest.EventData{Type: eventType, SourceID: sourceID, JobID: jobID, Payload: payload})
	}
	sched := timeline.SchedulerConfig{
		MinDuration:  cfg.Scheduler.MinDuration,
		MaxDuration:  cfg.Scheduler.MaxDuration,
		StartPadding: cfg.Scheduler.StartPadding,
		EndPadding:   cfg.Scheduler.EndPadding,
		MinGap:       cfg.Scheduler.MinGap,
	}
	handlers := api.Handlers{
		Sources:     api.NewSourcesHandler(db, store, tool, transcribePool, publish, cfg.MaxUploadMB<<20, log),
		Transcripts: api.NewTranscriptsHandler(db, log),
		Clips:       api.NewClipsHandler(db, proposer, renderPool, sched, publish, log),
		Events:      api.NewEventsHandler(bus),
		Live:        &liveData{watcher: watcher, transcribe: transcribePool, renders: renderPool},
	}
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, db, handlers, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout for the HTTP side; the pools drain
	// their queues before returning.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	if watcher != nil {
		watcher.Stop()
	}
	transcribePool.Stop()
	renderPool.Stop()

	log.Info().Msg("clip-engine stopped")
}

// liveData exposes background component state to the health endpoint.
type liveData struct {
	watcher    *ingest.InboxWatcher
	transcribe *transcribe.WorkerPool
	renders    *jobs.RenderPool
}

func (l *liveData) WatcherStatus() *api.WatcherStatusData {
	if l.watcher == nil {
		return nil
	}
	s := l.watcher.Status()
	return &api.WatcherStatusData{
		Status:        s.Status,
		InboxDir:      s.InboxDir,
		FilesIngested: s.FilesIngested,
		FilesSkipped:  s.FilesSkipped,
	}
}

func (l *liveData) TranscribeStats() *transcribe.QueueStats {
	s := l.transcribe.Stats()
	return &s
}

func (l *liveData) RenderStats() *jobs.RenderStats {
	s := l.renders.Stats()
	return &s
}

// pipelineStats feeds the scrape-time metrics collector.
type pipelineStats struct {
	bus        *ingest.EventBus
	transcribe *transcribe.WorkerPool
	renders    *jobs.RenderPool
}

func (p *pipelineStats) SSESubscriberCount() int   { return p.bus.SSESubscriberCount() }
func (p *pipelineStats) TranscribeQueueDepth() int { return p.transcribe.Stats().Pending }
func (p *pipelineStats) RenderQueueDepth() int     { return p.renders.Stats().Pending }

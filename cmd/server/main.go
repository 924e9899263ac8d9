package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/briefmill/briefmill/internal/api"
	"github.com/briefmill/briefmill/internal/briefing"
	"github.com/briefmill/briefmill/internal/config"
	"github.com/briefmill/briefmill/internal/credit"
	"github.com/briefmill/briefmill/internal/database"
	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/inference"
	"github.com/briefmill/briefmill/internal/ingestion"
	"github.com/briefmill/briefmill/internal/ingress"
	"github.com/briefmill/briefmill/internal/logging"
	"github.com/briefmill/briefmill/internal/mailer"
	"github.com/briefmill/briefmill/internal/metrics"
	"github.com/briefmill/briefmill/internal/queue"
	"github.com/briefmill/briefmill/internal/scheduler"
	"github.com/briefmill/briefmill/internal/search"
	"github.com/briefmill/briefmill/internal/server"
	"github.com/briefmill/briefmill/internal/store"
)

// drainTimeout caps how long in-flight work may run after shutdown
// begins; whatever is still running afterwards is cancelled and healed
// by the recovery sweep on restart.
const drainTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting briefmill")

	// Persistence: Postgres when configured, in-memory for local dev.
	var st store.Store
	if cfg.Database.URL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Database.URL
		db, err := database.Connect(context.Background(), dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("database connected")
		st = database.New(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	recorder := inference.NewRecorder(st, logger)

	// Enricher: real provider when an API key is present, mock otherwise.
	var provider enrichment.Provider
	if cfg.OpenAI.APIKey != "" {
		provider = enrichment.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
		logger.Info("using OpenAI enricher", "model", cfg.OpenAI.Model)
	} else {
		provider = enrichment.NewMockProvider()
		logger.Warn("OPENAI_API_KEY not set, using mock enricher")
	}
	enricher := enrichment.NewTracked(provider, recorder)

	fetchClient := &http.Client{Timeout: cfg.Fetch.HTTPTimeout}
	webFetcher := enrichment.NewWebBodyFetcher(nil, logger)

	registry := ingestion.NewRegistry(
		ingestion.NewRSSFetcher(fetchClient, logger),
		ingestion.NewWebFetcher(fetchClient, enricher, cfg.Enrich.WebExtractMaxItems, logger),
		ingestion.NewEmailFetcher(),
	)
	if cfg.Reddit.Enabled() {
		registry.Register(ingestion.NewRedditFetcher(cfg.Reddit, fetchClient, logger))
		logger.Info("reddit fetcher enabled")
	}

	// The indexer is fire-and-forget: workers hand documents to the
	// async dispatcher and move on.
	var searchSync search.Sync
	var searchDispatch *search.Async
	if cfg.Search.Enabled() {
		searchDispatch = search.NewAsync(search.NewHTTPSync(cfg.Search.URL, logger), logger)
		searchSync = searchDispatch
		logger.Info("search sync enabled", "url", cfg.Search.URL)
	}

	gate := credit.NewGate(st)

	fetchQ := queue.New[string](cfg.Fetch.QueueCapacity)
	enrichQ := queue.New[store.EnrichCandidate](cfg.Enrich.QueueCapacity)
	briefQ := queue.New[string](cfg.Brief.QueueCapacity)

	fetchWorker := ingestion.NewWorker(st, registry, logger)
	enrichWorker := enrichment.NewWorker(st, enricher, webFetcher, searchSync, cfg.Enrich.WebFetchContentThreshold, logger)
	briefWorker := briefing.NewWorker(st, enricher, mailer.NewLogMailer(logger), cfg.Brief.MaxReportItems, nil, logger)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	fetchPool := queue.NewPool("fetch", cfg.Fetch.WorkerCount, fetchQ, func(ctx context.Context, id string) {
		start := time.Now()
		fetchWorker.Process(ctx, id)
		collector.ObserveWork("fetch", time.Since(start))
		collector.SetQueueDepth("fetch", fetchQ.Len())
	}, logger)
	enrichPool := queue.NewPool("enrich", cfg.Enrich.WorkerCount, enrichQ, func(ctx context.Context, candidate store.EnrichCandidate) {
		start := time.Now()
		enrichWorker.Process(ctx, candidate)
		collector.ObserveWork("enrich", time.Since(start))
		collector.SetQueueDepth("enrich", enrichQ.Len())
	}, logger)
	briefPool := queue.NewPool("brief", cfg.Brief.WorkerCount, briefQ, func(ctx context.Context, id string) {
		start := time.Now()
		briefWorker.Process(ctx, id)
		collector.ObserveWork("brief", time.Since(start))
		collector.SetQueueDepth("brief", briefQ.Len())
	}, logger)

	fetchPool.Start(workerCtx)
	enrichPool.Start(workerCtx)
	briefPool.Start(workerCtx)

	fetchScheduler := scheduler.NewFetchScheduler(st, gate, fetchQ, cfg.Fetch.BatchSize, cfg.Fetch.SchedulerInterval, logger)
	enrichScheduler := scheduler.NewEnrichScheduler(st, gate, enrichQ, cfg.Enrich.BatchSize, cfg.Enrich.SchedulerInterval, logger)
	briefScheduler := scheduler.NewBriefScheduler(st, gate, briefQ, cfg.Brief.SchedulerInterval, nil, logger)
	sweeper := scheduler.NewRecoverySweeper(st, cfg.Recovery.Interval, scheduler.Thresholds{
		Source:   cfg.Fetch.StuckThreshold,
		Item:     cfg.Enrich.StuckThreshold,
		Briefing: cfg.Brief.StuckThreshold,
	}, logger)

	go fetchScheduler.Start(workerCtx)
	go enrichScheduler.Start(workerCtx)
	go briefScheduler.Start(workerCtx)
	go sweeper.Start(workerCtx)

	ingressSvc := ingress.NewService(st, gate, enricher, cfg.Ingress.EmailMaxItems, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", collector.Handler())
	api.SetupRoutes(mux, api.NewHandler(st, fetchQ, enrichQ, briefQ, registry, ingressSvc, logger))

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("briefmill started", "port", cfg.Server.Port)

	waitForSignal(logger)

	// Shutdown order: stop claiming new work, close the queues so the
	// pools drain what is already queued, then give in-flight work the
	// drain window before cancelling it.
	logger.Info("shutting down")
	fetchScheduler.Stop()
	enrichScheduler.Stop()
	briefScheduler.Stop()
	sweeper.Stop()

	fetchQ.Close()
	enrichQ.Close()
	briefQ.Close()

	deadline := time.Now().Add(drainTimeout)
	drained := fetchPool.Drain(time.Until(deadline))
	drained = enrichPool.Drain(time.Until(deadline)) && drained
	drained = briefPool.Drain(time.Until(deadline)) && drained
	if !drained {
		logger.Warn("workers still busy after drain window, cancelling")
		cancelWorkers()
	}

	recorder.Flush()
	if searchDispatch != nil {
		searchDispatch.Flush()
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}

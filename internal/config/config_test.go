package config

import (
	"os"
	"testing"
	"time"

	"log/slog"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}

	if cfg.Fetch.SchedulerInterval != 60*time.Second {
		t.Errorf("expected fetch scheduler interval 60s, got %v", cfg.Fetch.SchedulerInterval)
	}
	if cfg.Fetch.QueueCapacity != 1000 {
		t.Errorf("expected fetch queue capacity 1000, got %d", cfg.Fetch.QueueCapacity)
	}
	if cfg.Fetch.WorkerCount != 4 {
		t.Errorf("expected 4 fetch workers, got %d", cfg.Fetch.WorkerCount)
	}
	if cfg.Fetch.BatchSize != 100 {
		t.Errorf("expected fetch batch size 100, got %d", cfg.Fetch.BatchSize)
	}
	if cfg.Fetch.StuckThreshold != 10*time.Minute {
		t.Errorf("expected fetch stuck threshold 10m, got %v", cfg.Fetch.StuckThreshold)
	}
	if cfg.Fetch.HTTPTimeout != 30*time.Second {
		t.Errorf("expected fetch HTTP timeout 30s, got %v", cfg.Fetch.HTTPTimeout)
	}

	if cfg.Enrich.QueueCapacity != 500 {
		t.Errorf("expected enrich queue capacity 500, got %d", cfg.Enrich.QueueCapacity)
	}
	if cfg.Enrich.WorkerCount != 2 {
		t.Errorf("expected 2 enrich workers, got %d", cfg.Enrich.WorkerCount)
	}
	if cfg.Enrich.BatchSize != 50 {
		t.Errorf("expected enrich batch size 50, got %d", cfg.Enrich.BatchSize)
	}
	if cfg.Enrich.WebFetchContentThreshold != 2000 {
		t.Errorf("expected web fetch content threshold 2000, got %d", cfg.Enrich.WebFetchContentThreshold)
	}
	if cfg.Enrich.WebExtractMaxItems != 50 {
		t.Errorf("expected web extract cap 50, got %d", cfg.Enrich.WebExtractMaxItems)
	}

	if cfg.Brief.QueueCapacity != 100 {
		t.Errorf("expected brief queue capacity 100, got %d", cfg.Brief.QueueCapacity)
	}
	if cfg.Brief.MaxReportItems != 10 {
		t.Errorf("expected max report items 10, got %d", cfg.Brief.MaxReportItems)
	}

	if cfg.Recovery.Interval != 5*time.Minute {
		t.Errorf("expected recovery interval 5m, got %v", cfg.Recovery.Interval)
	}

	if cfg.Ingress.EmailMaxItems != 5 {
		t.Errorf("expected ingress email cap 5, got %d", cfg.Ingress.EmailMaxItems)
	}

	if cfg.OpenAI.Model != defaultOpenAIModel {
		t.Errorf("expected default OpenAI model %q, got %q", defaultOpenAIModel, cfg.OpenAI.Model)
	}
	if cfg.Reddit.Enabled() {
		t.Error("reddit should be disabled without credentials")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                 "9090",
		"LOG_LEVEL":                   "debug",
		"LOG_FORMAT":                  "text",
		"FETCH_SCHEDULER_INTERVAL_MS": "5000",
		"FETCH_QUEUE_CAPACITY":        "10",
		"FETCH_WORKER_COUNT":          "1",
		"ENRICH_STUCK_THRESHOLD_MIN":  "3",
		"HTTP_FETCH_TIMEOUT_SECONDS":  "5",
		"BRIEF_MAX_REPORT_ITEMS":      "7",
		"REDDIT_CLIENT_ID":            "cid",
		"REDDIT_CLIENT_SECRET":        "secret",
		"SEARCH_SYNC_URL":             "http://indexer:9300",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected overridden port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected log level debug, got %v", cfg.Logging.Level)
	}
	if cfg.Fetch.SchedulerInterval != 5*time.Second {
		t.Errorf("expected fetch scheduler interval 5s, got %v", cfg.Fetch.SchedulerInterval)
	}
	if cfg.Fetch.QueueCapacity != 10 {
		t.Errorf("expected fetch queue capacity 10, got %d", cfg.Fetch.QueueCapacity)
	}
	if cfg.Fetch.WorkerCount != 1 {
		t.Errorf("expected 1 fetch worker, got %d", cfg.Fetch.WorkerCount)
	}
	if cfg.Enrich.StuckThreshold != 3*time.Minute {
		t.Errorf("expected enrich stuck threshold 3m, got %v", cfg.Enrich.StuckThreshold)
	}
	if cfg.Fetch.HTTPTimeout != 5*time.Second {
		t.Errorf("expected fetch HTTP timeout 5s, got %v", cfg.Fetch.HTTPTimeout)
	}
	if cfg.Brief.MaxReportItems != 7 {
		t.Errorf("expected max report items 7, got %d", cfg.Brief.MaxReportItems)
	}
	if !cfg.Reddit.Enabled() {
		t.Error("reddit should be enabled with credentials")
	}
	if !cfg.Search.Enabled() || cfg.Search.URL != "http://indexer:9300" {
		t.Errorf("expected search sync enabled at indexer URL, got %+v", cfg.Search)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"FETCH_SCHEDULER_INTERVAL_MS": "-1",
		"FETCH_QUEUE_CAPACITY":        "0",
		"ENRICH_WORKER_COUNT":         "abc",
		"HTTP_FETCH_TIMEOUT_SECONDS":  "3.5",
		"LOG_LEVEL":                   "verbose",
		"LOG_FORMAT":                  "xml",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}

		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func TestLoadDoesNotPersistEnvBetweenRuns(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("FETCH_QUEUE_CAPACITY", "5")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Unsetenv("FETCH_QUEUE_CAPACITY"); err != nil {
		t.Fatalf("failed to unset env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Fetch.QueueCapacity != defaultFetchQueueCapacity {
		t.Errorf("expected default fetch queue capacity after reset, got %d", cfg.Fetch.QueueCapacity)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS",
		"SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"FETCH_SCHEDULER_INTERVAL_MS",
		"FETCH_QUEUE_CAPACITY",
		"FETCH_WORKER_COUNT",
		"FETCH_BATCH_SIZE",
		"FETCH_STUCK_THRESHOLD_MIN",
		"HTTP_FETCH_TIMEOUT_SECONDS",
		"ENRICH_SCHEDULER_INTERVAL_MS",
		"ENRICH_QUEUE_CAPACITY",
		"ENRICH_WORKER_COUNT",
		"ENRICH_BATCH_SIZE",
		"ENRICH_STUCK_THRESHOLD_MIN",
		"ENRICH_WEB_FETCH_CONTENT_THRESHOLD",
		"ENRICH_WEB_EXTRACT_MAX_ITEMS",
		"BRIEF_SCHEDULER_INTERVAL_MS",
		"BRIEF_QUEUE_CAPACITY",
		"BRIEF_WORKER_COUNT",
		"BRIEF_STUCK_THRESHOLD_MIN",
		"BRIEF_MAX_REPORT_ITEMS",
		"RECOVERY_INTERVAL_MS",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"REDDIT_CLIENT_ID",
		"REDDIT_CLIENT_SECRET",
		"REDDIT_USER_AGENT",
		"REDDIT_MAX_AGE_HOURS",
		"SEARCH_SYNC_URL",
		"INGRESS_EMAIL_MAX_ITEMS",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
}

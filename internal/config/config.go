package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Fetch    FetchConfig
	Enrich   EnrichConfig
	Brief    BriefConfig
	Recovery RecoveryConfig
	OpenAI   OpenAIConfig
	Reddit   RedditConfig
	Search   SearchConfig
	Ingress  IngressConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds the connection string; pool sizing lives with the
// database package defaults.
type DatabaseConfig struct {
	URL string
}

// FetchConfig tunes the fetch pipeline: scheduler cadence, queue bound,
// worker pool size, and the outbound HTTP timeout shared by all fetchers.
type FetchConfig struct {
	SchedulerInterval time.Duration
	QueueCapacity     int
	WorkerCount       int
	BatchSize         int
	StuckThreshold    time.Duration
	HTTPTimeout       time.Duration
}

// EnrichConfig tunes the enrich pipeline.
type EnrichConfig struct {
	SchedulerInterval time.Duration
	QueueCapacity     int
	WorkerCount       int
	BatchSize         int
	StuckThreshold    time.Duration
	// Items whose content is shorter than this trigger a web-body fetch
	// before enrichment.
	WebFetchContentThreshold int
	WebExtractMaxItems       int
}

// BriefConfig tunes the brief pipeline.
type BriefConfig struct {
	SchedulerInterval time.Duration
	QueueCapacity     int
	WorkerCount       int
	StuckThreshold    time.Duration
	MaxReportItems    int
}

// RecoveryConfig tunes the stuck-entity sweep shared by all pipelines.
type RecoveryConfig struct {
	Interval time.Duration
}

// OpenAIConfig holds the language-model provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// RedditConfig holds OAuth client-credentials for the REDDIT source type.
// Leaving the credentials unset disables the fetcher.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	MaxAgeHours  int
}

// Enabled reports whether REDDIT sources can be fetched.
func (r RedditConfig) Enabled() bool {
	return r.ClientID != "" && r.ClientSecret != ""
}

// SearchConfig points at the external search indexer. Leaving the URL
// unset disables index sync.
type SearchConfig struct {
	URL string
}

// Enabled reports whether item changes are pushed to the indexer.
func (s SearchConfig) Enabled() bool {
	return s.URL != ""
}

// IngressConfig tunes the inbound email path.
type IngressConfig struct {
	EmailMaxItems int
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultSchedulerInterval = 60 * time.Second
	defaultStuckThreshold    = 10 * time.Minute
	defaultRecoveryInterval  = 5 * time.Minute

	defaultFetchQueueCapacity = 1000
	defaultFetchWorkerCount   = 4
	defaultFetchBatchSize     = 100
	defaultFetchHTTPTimeout   = 30 * time.Second

	defaultEnrichQueueCapacity  = 500
	defaultEnrichWorkerCount    = 2
	defaultEnrichBatchSize      = 50
	defaultWebFetchThreshold    = 2000
	defaultWebExtractMaxItems   = 50
	defaultIngressEmailMaxItems = 5

	defaultBriefQueueCapacity = 100
	defaultBriefWorkerCount   = 2
	defaultMaxReportItems     = 10

	defaultOpenAIModel       = "gpt-4o-mini"
	defaultRedditUserAgent   = "briefmill/1.0"
	defaultRedditMaxAgeHours = 24
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Fetch: FetchConfig{
			SchedulerInterval: defaultSchedulerInterval,
			QueueCapacity:     defaultFetchQueueCapacity,
			WorkerCount:       defaultFetchWorkerCount,
			BatchSize:         defaultFetchBatchSize,
			StuckThreshold:    defaultStuckThreshold,
			HTTPTimeout:       defaultFetchHTTPTimeout,
		},
		Enrich: EnrichConfig{
			SchedulerInterval:        defaultSchedulerInterval,
			QueueCapacity:            defaultEnrichQueueCapacity,
			WorkerCount:              defaultEnrichWorkerCount,
			BatchSize:                defaultEnrichBatchSize,
			StuckThreshold:           defaultStuckThreshold,
			WebFetchContentThreshold: defaultWebFetchThreshold,
			WebExtractMaxItems:       defaultWebExtractMaxItems,
		},
		Brief: BriefConfig{
			SchedulerInterval: defaultSchedulerInterval,
			QueueCapacity:     defaultBriefQueueCapacity,
			WorkerCount:       defaultBriefWorkerCount,
			StuckThreshold:    defaultStuckThreshold,
			MaxReportItems:    defaultMaxReportItems,
		},
		Recovery: RecoveryConfig{
			Interval: defaultRecoveryInterval,
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnv("OPENAI_MODEL", defaultOpenAIModel),
		},
		Reddit: RedditConfig{
			ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
			ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
			UserAgent:    getEnv("REDDIT_USER_AGENT", defaultRedditUserAgent),
			MaxAgeHours:  defaultRedditMaxAgeHours,
		},
		Search: SearchConfig{
			URL: os.Getenv("SEARCH_SYNC_URL"),
		},
		Ingress: IngressConfig{
			EmailMaxItems: defaultIngressEmailMaxItems,
		},
	}

	if err := loadServer(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLogging(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadPipelines(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadServer(cfg *Config) error {
	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	return nil
}

func loadLogging(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return nil
}

func loadPipelines(cfg *Config) error {
	durations := []struct {
		key    string
		target *time.Duration
		parse  func(string) (time.Duration, error)
	}{
		{"FETCH_SCHEDULER_INTERVAL_MS", &cfg.Fetch.SchedulerInterval, parseMillis},
		{"ENRICH_SCHEDULER_INTERVAL_MS", &cfg.Enrich.SchedulerInterval, parseMillis},
		{"BRIEF_SCHEDULER_INTERVAL_MS", &cfg.Brief.SchedulerInterval, parseMillis},
		{"RECOVERY_INTERVAL_MS", &cfg.Recovery.Interval, parseMillis},
		{"FETCH_STUCK_THRESHOLD_MIN", &cfg.Fetch.StuckThreshold, parseMinutes},
		{"ENRICH_STUCK_THRESHOLD_MIN", &cfg.Enrich.StuckThreshold, parseMinutes},
		{"BRIEF_STUCK_THRESHOLD_MIN", &cfg.Brief.StuckThreshold, parseMinutes},
		{"HTTP_FETCH_TIMEOUT_SECONDS", &cfg.Fetch.HTTPTimeout, parseSeconds},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := d.parse(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.target = parsed
		}
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"FETCH_QUEUE_CAPACITY", &cfg.Fetch.QueueCapacity},
		{"FETCH_WORKER_COUNT", &cfg.Fetch.WorkerCount},
		{"FETCH_BATCH_SIZE", &cfg.Fetch.BatchSize},
		{"ENRICH_QUEUE_CAPACITY", &cfg.Enrich.QueueCapacity},
		{"ENRICH_WORKER_COUNT", &cfg.Enrich.WorkerCount},
		{"ENRICH_BATCH_SIZE", &cfg.Enrich.BatchSize},
		{"ENRICH_WEB_FETCH_CONTENT_THRESHOLD", &cfg.Enrich.WebFetchContentThreshold},
		{"ENRICH_WEB_EXTRACT_MAX_ITEMS", &cfg.Enrich.WebExtractMaxItems},
		{"BRIEF_QUEUE_CAPACITY", &cfg.Brief.QueueCapacity},
		{"BRIEF_WORKER_COUNT", &cfg.Brief.WorkerCount},
		{"BRIEF_MAX_REPORT_ITEMS", &cfg.Brief.MaxReportItems},
		{"REDDIT_MAX_AGE_HOURS", &cfg.Reddit.MaxAgeHours},
		{"INGRESS_EMAIL_MAX_ITEMS", &cfg.Ingress.EmailMaxItems},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			parsed, err := parsePositiveInt(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", i.key, err)
			}
			*i.target = parsed
		}
	}

	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseMillis(raw string) (time.Duration, error) {
	millis, err := strconv.Atoi(raw)
	if err != nil || millis < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(millis) * time.Millisecond, nil
}

func parseMinutes(raw string) (time.Duration, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}

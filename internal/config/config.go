// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by LoadFromEnv.
const (
	DefaultListenAddr     = ":5000"
	DefaultRegion         = "us-east-1"
	DefaultArchivePrefix  = "processed-logs"
	DefaultDatabase       = "log_manager_data"
	DefaultTable          = "processed_logs"
	DefaultTimezone       = "America/New_York"
	DefaultPollInterval   = time.Second
	DefaultRetention      = 24 * time.Hour
	DefaultScanConcurrent = 10
	DefaultScanMaxKeys    = 1000
	DefaultHourlySchedule = "5 * * * *"
	DefaultDailySchedule  = "30 0 * * *"
)

// Config holds the configuration for the HTTP API, the query engine and the
// partition scanner.
type Config struct {
	ListenAddr string // HTTP listen address (default ":5000")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Archive storage
	S3Bucket       string
	S3Region       string
	S3Endpoint     string // optional, for S3-compatible services
	S3KeyID        string // optional static credentials
	S3Secret       string
	S3UsePathStyle bool
	ArchivePrefix  string

	// Query engine
	AthenaOutputBucket string
	AthenaOutputFolder string
	AthenaWorkGroup    string
	Database           string
	DefaultTable       string
	PartitionTable     string
	DefaultTimezone    string
	PollInterval       time.Duration
	Retention          time.Duration

	// Partition scanner
	ScanEnabled        bool
	ScanConcurrency    int
	ScanMaxKeys        int
	ScanHourlySchedule string
	ScanDailySchedule  string

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// OutputLocation returns the s3:// URI query results are written to, or ""
// when no output bucket is configured.
func (c *Config) OutputLocation() string {
	if c.AthenaOutputBucket == "" {
		return ""
	}
	folder := strings.Trim(c.AthenaOutputFolder, "/")
	if folder == "" {
		return "s3://" + c.AthenaOutputBucket + "/"
	}
	return "s3://" + c.AthenaOutputBucket + "/" + folder + "/"
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.ScanConcurrency <= 0 {
		return fmt.Errorf("SCAN_CONCURRENCY must be positive, got %d", c.ScanConcurrency)
	}
	if c.AthenaOutputFolder != "" && c.AthenaOutputBucket == "" {
		return fmt.Errorf("ATHENA_OUTPUT_FOLDER is set but ATHENA_OUTPUT_BUCKET is not")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("QUERY_POLL_INTERVAL must not be negative")
	}
	if c.ScanEnabled && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when SCAN_ENABLED is true")
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Env:                os.Getenv("ENV"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Region:           os.Getenv("S3_REGION"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3KeyID:            os.Getenv("S3_KEY_ID"),
		S3Secret:           os.Getenv("S3_SECRET"),
		S3UsePathStyle:     parseBoolEnvDefault("S3_USE_PATH_STYLE", false),
		ArchivePrefix:      strings.Trim(os.Getenv("ARCHIVE_PREFIX"), "/"),
		AthenaOutputBucket: os.Getenv("ATHENA_OUTPUT_BUCKET"),
		AthenaOutputFolder: os.Getenv("ATHENA_OUTPUT_FOLDER"),
		AthenaWorkGroup:    os.Getenv("ATHENA_WORKGROUP"),
		Database:           os.Getenv("GLUE_DATABASE"),
		DefaultTable:       os.Getenv("DEFAULT_TABLE"),
		PartitionTable:     os.Getenv("PARTITION_TABLE"),
		DefaultTimezone:    os.Getenv("DEFAULT_TIMEZONE"),
		ScanEnabled:        parseBoolEnvDefault("SCAN_ENABLED", true),
		ScanHourlySchedule: os.Getenv("SCAN_HOURLY_SCHEDULE"),
		ScanDailySchedule:  os.Getenv("SCAN_DAILY_SCHEDULE"),
	}

	var err error
	if cfg.PollInterval, err = parseDurationEnv("QUERY_POLL_INTERVAL"); err != nil {
		return nil, err
	}
	if cfg.Retention, err = parseDurationEnv("EXECUTION_RETENTION"); err != nil {
		return nil, err
	}
	if cfg.ScanConcurrency, err = parseIntEnv("SCAN_CONCURRENCY"); err != nil {
		return nil, err
	}
	if cfg.ScanMaxKeys, err = parseIntEnv("SCAN_MAX_KEYS"); err != nil {
		return nil, err
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_RPS %q", v))
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_BURST %q", v))
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.S3Region == "" {
		cfg.S3Region = DefaultRegion
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = DefaultArchivePrefix
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.DefaultTable == "" {
		cfg.DefaultTable = DefaultTable
	}
	if cfg.PartitionTable == "" {
		cfg.PartitionTable = DefaultTable
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = DefaultTimezone
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.ScanConcurrency == 0 {
		cfg.ScanConcurrency = DefaultScanConcurrent
	}
	if cfg.ScanMaxKeys == 0 {
		cfg.ScanMaxKeys = DefaultScanMaxKeys
	}
	if cfg.ScanHourlySchedule == "" {
		cfg.ScanHourlySchedule = DefaultHourlySchedule
	}
	if cfg.ScanDailySchedule == "" {
		cfg.ScanDailySchedule = DefaultDailySchedule
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.AthenaOutputBucket == "" {
		cfg.Warnings = append(cfg.Warnings, "ATHENA_OUTPUT_BUCKET not set; the workgroup's result location will be used")
	}
	if cfg.S3KeyID != "" && cfg.S3Secret == "" {
		cfg.Warnings = append(cfg.Warnings, "S3_KEY_ID is set without S3_SECRET")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseDurationEnv(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv applies KEY=VALUE lines from path to variables that are unset or
// empty in the process environment. Blank lines, # comments and an optional
// "export " prefix are accepted; other lines without '=' are ignored. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, stripQuotes(strings.TrimSpace(value))); err != nil {
			return fmt.Errorf("setenv %s: %w", key, err)
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
// Two-tier scheme: a shared file plus a per-environment override file are
// passed as successive -config flags; later files override earlier ones.
type Config struct {
	Environment      string             `toml:"environment" validate:"required,oneof=development staging production"`
	BusinessTimezone string             `toml:"business_timezone" validate:"required"`
	Server           ServerConfig       `toml:"server"`
	RecordStore      RecordStoreConfig  `toml:"record_store"`
	FieldService     FieldServiceConfig `toml:"field_service"`
	Ingest           IngestConfig       `toml:"ingest"`
	Feeds            FeedsConfig        `toml:"feeds"`
	Webhook          WebhookConfig      `toml:"webhook"`
	Reconcile        ReconcileConfig    `toml:"reconcile"`
	Scheduler        SchedulerConfig    `toml:"scheduler"`
	Storage          StorageConfig      `toml:"storage"`
	Logging          LoggingConfig      `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

// RecordStoreConfig holds credentials and limits for the hosted record store.
type RecordStoreConfig struct {
	APIKey         string `toml:"api_key" validate:"required"`
	BaseID         string `toml:"base_id" validate:"required"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // per-request timeout (default 30)
}

// FieldServiceConfig holds credentials and limits for the field-service API.
type FieldServiceConfig struct {
	Token             string `toml:"token" validate:"required"`
	EmployeeID        string `toml:"employee_id" validate:"required"` // default assignee for created jobs
	BaseURL           string `toml:"base_url"`
	RequestsPerMinute int    `toml:"requests_per_minute"` // token bucket target (default 300)
	TimeoutSeconds    int    `toml:"timeout_seconds"`     // per-request timeout (default 10)
}

// IngestConfig controls the CSV inbox and the event acceptance window.
type IngestConfig struct {
	DataRoot           string `toml:"data_root"`            // root for CSV_process_<env>, CSV_done_<env>, webhook_overflow
	WindowMonthsBefore int    `toml:"window_months_before"` // drop events older than this (default 6)
	WindowMonthsAfter  int    `toml:"window_months_after"`  // drop events newer than this (default 3)
}

type FeedsConfig struct {
	Concurrency    int `toml:"concurrency"`     // in-flight fetches (default 50)
	TimeoutSeconds int `toml:"timeout_seconds"` // per-feed fetch timeout (default 30)
}

type WebhookConfig struct {
	QueueCapacity      int    `toml:"queue_capacity"` // bounded queue size (default 1000)
	Workers            int    `toml:"workers"`        // drain workers (default 4)
	SignatureSecret    string `toml:"signature_secret"`
	InternalAuthSecret string `toml:"internal_auth_secret"`
	EmailSecret        string `toml:"email_secret"` // optional; empty disables email signature check
}

type ReconcileConfig struct {
	LongTermThresholdDays int `toml:"long_term_threshold_days"` // long-term-guest flag (default 14)
	MissingCountThreshold int `toml:"missing_count_threshold"`  // removal safety count (default 3)
	MissingGraceHours     int `toml:"missing_grace_hours"`      // removal safety grace (default 12)
}

type SchedulerConfig struct {
	Cron              string `toml:"cron"`                // suite schedule (default every 2 hours)
	RunTimeoutSeconds int    `toml:"run_timeout_seconds"` // whole-suite wall cap (default 600)
	Enabled           bool   `toml:"enabled"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig configures the local run-history journal.
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in turnsync.toml; technical
// parameters default here.
func NewDefaultConfig() *Config {
	return &Config{
		Environment:      "development",
		BusinessTimezone: "America/Phoenix",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		RecordStore: RecordStoreConfig{
			BaseURL:        "https://api.airtable.com/v0",
			TimeoutSeconds: 30,
		},
		FieldService: FieldServiceConfig{
			BaseURL:           "https://api.housecallpro.com",
			RequestsPerMinute: 300,
			TimeoutSeconds:    10,
		},
		Ingest: IngestConfig{
			DataRoot:           "./data",
			WindowMonthsBefore: 6,
			WindowMonthsAfter:  3,
		},
		Feeds: FeedsConfig{
			Concurrency:    50,
			TimeoutSeconds: 30,
		},
		Webhook: WebhookConfig{
			QueueCapacity: 1000,
			Workers:       4,
		},
		Reconcile: ReconcileConfig{
			LongTermThresholdDays: 14,
			MissingCountThreshold: 3,
			MissingGraceHours:     12,
		},
		Scheduler: SchedulerConfig{
			Cron:              "0 */2 * * *",
			RunTimeoutSeconds: 600,
			Enabled:           true,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/turnsync.db",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files; this is how the shared tier and the
// per-environment tier compose.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks credentials and structural settings before any external
// call is made. A failure here is a configuration error and aborts the process.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("invalid business_timezone %q: %w", c.BusinessTimezone, err)
	}
	return nil
}

// BusinessLocation returns the business timezone location. Validate must
// have succeeded first.
func (c *Config) BusinessLocation() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CSVInboxDir returns the environment-specific CSV drop zone.
func (c *Config) CSVInboxDir() string {
	return filepath.Join(c.Ingest.DataRoot, "CSV_process_"+c.Environment)
}

// CSVDoneDir returns the environment-specific CSV archive directory.
func (c *Config) CSVDoneDir() string {
	return filepath.Join(c.Ingest.DataRoot, "CSV_done_"+c.Environment)
}

// WebhookOverflowDir returns the directory for the disk-backed overflow journal.
func (c *Config) WebhookOverflowDir() string {
	return filepath.Join(c.Ingest.DataRoot, "webhook_overflow")
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TURNSYNC_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("TURNSYNC_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TURNSYNC_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if key := os.Getenv("TURNSYNC_RECORD_STORE_API_KEY"); key != "" {
		config.RecordStore.APIKey = key
	}
	if baseID := os.Getenv("TURNSYNC_RECORD_STORE_BASE_ID"); baseID != "" {
		config.RecordStore.BaseID = baseID
	}
	if token := os.Getenv("TURNSYNC_FIELD_SERVICE_TOKEN"); token != "" {
		config.FieldService.Token = token
	}
	if employee := os.Getenv("TURNSYNC_FIELD_SERVICE_EMPLOYEE_ID"); employee != "" {
		config.FieldService.EmployeeID = employee
	}

	if secret := os.Getenv("TURNSYNC_WEBHOOK_SIGNATURE_SECRET"); secret != "" {
		config.Webhook.SignatureSecret = secret
	}
	if secret := os.Getenv("TURNSYNC_WEBHOOK_INTERNAL_AUTH_SECRET"); secret != "" {
		config.Webhook.InternalAuthSecret = secret
	}

	if root := os.Getenv("TURNSYNC_DATA_ROOT"); root != "" {
		config.Ingest.DataRoot = root
	}
	if path := os.Getenv("TURNSYNC_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if level := os.Getenv("TURNSYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TURNSYNC_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the root configuration for the sync core. It is read-only
// after Load returns; hot reloads produce a fresh value.
type Config struct {
	Environment   Environment         `yaml:"environment" validate:"required,oneof=development staging production"`
	Server        ServerConfig        `yaml:"server"`
	Transport     TransportConfig     `yaml:"transport"`
	Auth          AuthConfig          `yaml:"auth"`
	Sync          SyncConfig          `yaml:"sync"`
	Queue         QueueConfig         `yaml:"queue"`
	Presence      PresenceConfig      `yaml:"presence"`
	Bulk          BulkConfig          `yaml:"bulk"`
	Snapshot      SnapshotConfig      `yaml:"snapshot"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig contains the ops HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address" validate:"required"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// TransportConfig contains the realtime connection settings.
type TransportConfig struct {
	URL              string   `yaml:"url" validate:"required,url"`
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
	WriteWait        Duration `yaml:"write_wait"`
	PongWait         Duration `yaml:"pong_wait"`
	ReconnectBase    Duration `yaml:"reconnect_base"`
	ReconnectMax     Duration `yaml:"reconnect_max"`
	BackoffFactor    float64  `yaml:"backoff_factor" validate:"gte=1"`
	JitterFactor     float64  `yaml:"jitter_factor" validate:"gte=0,lte=1"`
}

// AuthConfig contains token settings. Secrets are env-only and never
// read from YAML.
type AuthConfig struct {
	Token     string `yaml:"-"`
	JWTSecret string `yaml:"-"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// SyncConfig contains message pipeline settings.
type SyncConfig struct {
	DedupCapacity   int      `yaml:"dedup_capacity" validate:"gt=0"`
	DedupTTL        Duration `yaml:"dedup_ttl"`
	RecoveryTimeout Duration `yaml:"recovery_timeout"`
	PendingBuffer   int      `yaml:"pending_buffer" validate:"gt=0"`
}

// QueueConfig contains offline action queue settings.
type QueueConfig struct {
	AckTimeout Duration `yaml:"ack_timeout"`
	MaxRetries int      `yaml:"max_retries" validate:"gte=1"`
}

// PresenceConfig contains presence and typing indicator settings.
type PresenceConfig struct {
	TypingTTL     Duration `yaml:"typing_ttl"`
	PresenceTTL   Duration `yaml:"presence_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// BulkConfig contains bulk operation settings.
type BulkConfig struct {
	UndoWindow   Duration `yaml:"undo_window"`
	MaxBatchSize int      `yaml:"max_batch_size" validate:"gt=0"`
}

// SnapshotConfig contains the snapshot refresh endpoint settings.
type SnapshotConfig struct {
	URL              string   `yaml:"url" validate:"omitempty,url"`
	Timeout          Duration `yaml:"timeout"`
	BreakerThreshold uint32   `yaml:"breaker_threshold"`
	BreakerCooldown  Duration `yaml:"breaker_cooldown"`
}

// StorageConfig selects the local persistence driver.
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory bolt"`
	Path   string `yaml:"path"`
}

// ObservabilityConfig contains logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel         string  `yaml:"log_level"`
	MetricsNamespace string  `yaml:"metrics_namespace"`
	EnableTracing    bool    `yaml:"enable_tracing"`
	TracingEndpoint  string  `yaml:"tracing_endpoint"`
	SampleRate       float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// Duration is a wrapper around time.Duration that supports YAML string
// parsing ("5s", "3m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

var validate = validator.New()

// Path returns the configuration file location, honoring the
// BOARDSYNC_CONFIG_PATH override. The watcher monitors the same file.
func Path() string {
	return getEnv("BOARDSYNC_CONFIG_PATH", "config/boardsync.yaml")
}

// Load loads configuration with precedence: defaults, then YAML file,
// then environment variables. A missing YAML file is not an error.
func Load() (*Config, error) {
	return LoadFromFile(Path())
}

// LoadFromFile loads configuration starting from a specific YAML path.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	if err := loadYAMLFile(cfg, path); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Transport: TransportConfig{
			URL:              "ws://localhost:9090/realtime",
			HandshakeTimeout: Duration(10 * time.Second),
			WriteWait:        Duration(10 * time.Second),
			PongWait:         Duration(60 * time.Second),
			ReconnectBase:    Duration(1 * time.Second),
			ReconnectMax:     Duration(30 * time.Second),
			BackoffFactor:    2.0,
			JitterFactor:     0.1,
		},
		Auth: AuthConfig{
			Issuer:   "appboardguru",
			Audience: "boardsync",
		},
		Sync: SyncConfig{
			DedupCapacity:   500,
			DedupTTL:        Duration(5 * time.Minute),
			RecoveryTimeout: Duration(30 * time.Second),
			PendingBuffer:   1024,
		},
		Queue: QueueConfig{
			AckTimeout: Duration(10 * time.Second),
			MaxRetries: 3,
		},
		Presence: PresenceConfig{
			TypingTTL:     Duration(3 * time.Second),
			PresenceTTL:   Duration(30 * time.Second),
			SweepInterval: Duration(1 * time.Second),
		},
		Bulk: BulkConfig{
			UndoWindow:   Duration(30 * time.Second),
			MaxBatchSize: 100,
		},
		Snapshot: SnapshotConfig{
			Timeout:          Duration(10 * time.Second),
			BreakerThreshold: 5,
			BreakerCooldown:  Duration(30 * time.Second),
		},
		Storage: StorageConfig{
			Driver: "memory",
			Path:   "data/boardsync.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:         "info",
			MetricsNamespace: "boardsync",
			SampleRate:       1.0,
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies BOARDSYNC_* environment variables on top of
// the loaded configuration. Only non-empty values override.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOARDSYNC_ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("BOARDSYNC_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("BOARDSYNC_TRANSPORT_URL"); v != "" {
		cfg.Transport.URL = v
	}
	if v := os.Getenv("BOARDSYNC_RECONNECT_BASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transport.ReconnectBase = Duration(d)
		}
	}
	if v := os.Getenv("BOARDSYNC_RECONNECT_MAX"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Transport.ReconnectMax = Duration(d)
		}
	}

	// Secrets are env-only
	if v := os.Getenv("BOARDSYNC_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("BOARDSYNC_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("BOARDSYNC_JWT_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("BOARDSYNC_JWT_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}

	if v := os.Getenv("BOARDSYNC_DEDUP_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.DedupCapacity = n
		}
	}
	if v := os.Getenv("BOARDSYNC_DEDUP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.DedupTTL = Duration(d)
		}
	}
	if v := os.Getenv("BOARDSYNC_ACK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Queue.AckTimeout = Duration(d)
		}
	}
	if v := os.Getenv("BOARDSYNC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MaxRetries = n
		}
	}
	if v := os.Getenv("BOARDSYNC_TYPING_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Presence.TypingTTL = Duration(d)
		}
	}
	if v := os.Getenv("BOARDSYNC_UNDO_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Bulk.UndoWindow = Duration(d)
		}
	}
	if v := os.Getenv("BOARDSYNC_SNAPSHOT_URL"); v != "" {
		cfg.Snapshot.URL = v
	}
	if v := os.Getenv("BOARDSYNC_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("BOARDSYNC_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("BOARDSYNC_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("BOARDSYNC_ENABLE_TRACING"); v != "" {
		cfg.Observability.EnableTracing = v == "true" || v == "1"
	}
	if v := os.Getenv("BOARDSYNC_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.TracingEndpoint = v
	}
}

// Validate checks structural constraints plus the stricter requirements
// of production deployments.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Environment == Production {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("BOARDSYNC_JWT_SECRET is required in production")
		}
		if c.Snapshot.URL == "" {
			return fmt.Errorf("snapshot.url is required in production")
		}
	}

	if c.Storage.Driver == "bolt" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the bolt driver")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Package config provides configuration management for the observatory services.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the observatory services.
type Config struct {
	// Server contains HTTP server settings for the search gateway.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Temporal contains Temporal workflow orchestration settings.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Kafka contains Kafka settings for entity mutation events.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Harvest contains upstream source API configurations.
	Harvest HarvestConfig `mapstructure:"harvest"`
	// Search contains document store settings for the search gateway.
	Search SearchConfig `mapstructure:"search"`
	// Indicators contains indicator engine settings.
	Indicators IndicatorsConfig `mapstructure:"indicators"`
	// Artifacts contains raw-data artifact storage settings.
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	// Moderation contains directory moderation settings.
	Moderation ModerationConfig `mapstructure:"moderation"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 50).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 10).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue name for harvest and indicator workflows.
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// KafkaConfig holds Kafka settings for entity mutation events.
type KafkaConfig struct {
	// Enabled controls whether mutation events are published and consumed.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the topic for entity mutation events.
	Topic string `mapstructure:"topic"`
	// ConsumerGroup is the group id of the index sync listener.
	ConsumerGroup string `mapstructure:"consumer_group"`
	// BatchSize is the producer batch size.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the producer linger time.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// HarvestConfig holds configuration for all upstream source APIs.
type HarvestConfig struct {
	// LoopSize is the promotion batch size (default: 1000).
	LoopSize int `mapstructure:"loop_size"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex SourceAPIConfig `mapstructure:"openalex"`
	// Crossref contains Crossref API settings.
	Crossref SourceAPIConfig `mapstructure:"crossref"`
	// Unpaywall contains Unpaywall dump reader settings.
	Unpaywall SourceAPIConfig `mapstructure:"unpaywall"`
	// Sucupira contains Sucupira CSV reader settings.
	Sucupira SucupiraConfig `mapstructure:"sucupira"`
}

// SourceAPIConfig holds configuration for a single upstream API.
type SourceAPIConfig struct {
	// Enabled controls whether this source is harvested.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key, loaded from the environment only.
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// MailTo is the polite-pool contact address sent with requests.
	MailTo string `mapstructure:"mail_to"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// PerPage is the page size for cursor pagination.
	PerPage int `mapstructure:"per_page"`
}

// SucupiraConfig holds settings for the Sucupira CSV reader.
type SucupiraConfig struct {
	// Enabled controls whether Sucupira files are processed.
	Enabled bool `mapstructure:"enabled"`
	// ProductionPath is the path of the intellectual production CSV.
	ProductionPath string `mapstructure:"production_path"`
	// DetailsPath is the path of the production details CSV.
	DetailsPath string `mapstructure:"details_path"`
}

// SearchConfig holds document store settings for the search gateway.
type SearchConfig struct {
	// Addresses is the list of OpenSearch node URLs.
	Addresses []string `mapstructure:"addresses"`
	// Username is the basic-auth user.
	Username string `mapstructure:"username"`
	// Password is the basic-auth password, loaded from the environment only.
	Password string `mapstructure:"-"`
	// DirectoryIndex is the index that directory records are synced to.
	DirectoryIndex string `mapstructure:"directory_index"`
	// FiltersCacheTTL is how long parsed filter aggregations are cached.
	FiltersCacheTTL time.Duration `mapstructure:"filters_cache_ttl"`
	// FiltersCacheSize is the maximum number of cached filter results.
	FiltersCacheSize int `mapstructure:"filters_cache_size"`
	// BulkBatchSize is the number of documents per bulk request.
	BulkBatchSize int `mapstructure:"bulk_batch_size"`
	// ScrollTTL is the scroll keep-alive for full index re-reads.
	ScrollTTL time.Duration `mapstructure:"scroll_ttl"`
	// RequestTimeout bounds individual search requests.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// IndicatorsConfig holds indicator engine settings.
type IndicatorsConfig struct {
	// MinItems is the minimum summarized item count for an indicator
	// to be persisted (default: 10).
	MinItems int `mapstructure:"min_items"`
	// EvolutionWindowYears is the default trailing window for
	// evolution indicators (default: 10).
	EvolutionWindowYears int `mapstructure:"evolution_window_years"`
	// ScheduleInterval is the period of generated indicator schedules.
	ScheduleInterval time.Duration `mapstructure:"schedule_interval"`
}

// ArtifactsConfig holds raw-data artifact storage settings.
type ArtifactsConfig struct {
	// Backend selects the store implementation (local, s3).
	Backend string `mapstructure:"backend"`
	// MediaRoot is the directory for the local backend.
	MediaRoot string `mapstructure:"media_root"`
	// S3 contains settings for the S3 backend.
	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds S3 artifact store settings.
type S3Config struct {
	// Bucket is the bucket name.
	Bucket string `mapstructure:"bucket"`
	// Region is the AWS region.
	Region string `mapstructure:"region"`
	// Endpoint overrides the S3 endpoint (for MinIO and compatible stores).
	Endpoint string `mapstructure:"endpoint"`
	// AccessKeyID is the static access key, loaded from the environment only.
	AccessKeyID string `mapstructure:"-"`
	// SecretAccessKey is the static secret key, loaded from the environment only.
	SecretAccessKey string `mapstructure:"-"`
	// UsePathStyle forces path-style addressing (required by MinIO).
	UsePathStyle bool `mapstructure:"use_path_style"`
}

// ModerationConfig holds directory moderation settings.
type ModerationConfig struct {
	// Enabled turns on the TO_MODERATE flow for non-staff creators.
	Enabled bool `mapstructure:"enabled"`
	// ModeratorEmail receives moderation notifications.
	ModeratorEmail string `mapstructure:"moderator_email"`
	// CCGroup is the group address copied on notifications.
	CCGroup string `mapstructure:"cc_group"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("OCABR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ocabr-observatory")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Harvest.OpenAlex.APIKey = os.Getenv("OCABR_HARVEST_OPENALEX_API_KEY")
	cfg.Harvest.Crossref.APIKey = os.Getenv("OCABR_HARVEST_CROSSREF_API_KEY")
	cfg.Harvest.Unpaywall.APIKey = os.Getenv("OCABR_HARVEST_UNPAYWALL_API_KEY")

	cfg.Search.Password = os.Getenv("OCABR_SEARCH_PASSWORD")

	cfg.Artifacts.S3.AccessKeyID = os.Getenv("OCABR_ARTIFACTS_S3_ACCESS_KEY_ID")
	cfg.Artifacts.S3.SecretAccessKey = os.Getenv("OCABR_ARTIFACTS_S3_SECRET_ACCESS_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ocabr")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "observatory")
	// Default to "require" for production security. Use OCABR_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 10)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Temporal defaults
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "observatory")
	v.SetDefault("temporal.task_queue", "observatory-tasks")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.observatory.entity_mutations")
	v.SetDefault("kafka.consumer_group", "observatory-index-sync")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Harvest defaults
	v.SetDefault("harvest.loop_size", 1000)

	v.SetDefault("harvest.openalex.enabled", true)
	v.SetDefault("harvest.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("harvest.openalex.mail_to", "")
	v.SetDefault("harvest.openalex.timeout", "2s")
	v.SetDefault("harvest.openalex.rate_limit", 10.0)
	v.SetDefault("harvest.openalex.per_page", 200)

	v.SetDefault("harvest.crossref.enabled", true)
	v.SetDefault("harvest.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("harvest.crossref.mail_to", "")
	v.SetDefault("harvest.crossref.timeout", "2s")
	v.SetDefault("harvest.crossref.rate_limit", 5.0)
	v.SetDefault("harvest.crossref.per_page", 200)

	v.SetDefault("harvest.unpaywall.enabled", true)
	v.SetDefault("harvest.unpaywall.base_url", "")
	v.SetDefault("harvest.unpaywall.timeout", "2s")
	v.SetDefault("harvest.unpaywall.rate_limit", 5.0)
	v.SetDefault("harvest.unpaywall.per_page", 0)

	v.SetDefault("harvest.sucupira.enabled", false)
	v.SetDefault("harvest.sucupira.production_path", "")
	v.SetDefault("harvest.sucupira.details_path", "")

	// Search defaults
	v.SetDefault("search.addresses", []string{"http://localhost:9200"})
	v.SetDefault("search.username", "")
	v.SetDefault("search.directory_index", "directory_records")
	v.SetDefault("search.filters_cache_ttl", "300s")
	v.SetDefault("search.filters_cache_size", 256)
	v.SetDefault("search.bulk_batch_size", 200)
	v.SetDefault("search.scroll_ttl", "2m")
	v.SetDefault("search.request_timeout", "30s")

	// Indicator defaults
	v.SetDefault("indicators.min_items", 10)
	v.SetDefault("indicators.evolution_window_years", 10)
	v.SetDefault("indicators.schedule_interval", "24h")

	// Artifact defaults
	v.SetDefault("artifacts.backend", "local")
	v.SetDefault("artifacts.media_root", "media")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.use_path_style", false)

	// Moderation defaults
	v.SetDefault("moderation.enabled", true)
	v.SetDefault("moderation.moderator_email", "")
	v.SetDefault("moderation.cc_group", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate search config
	if len(c.Search.Addresses) == 0 {
		return fmt.Errorf("at least one search address is required")
	}
	if c.Search.BulkBatchSize <= 0 {
		return fmt.Errorf("search bulk_batch_size must be positive")
	}

	// Validate indicator config
	if c.Indicators.MinItems < 0 {
		return fmt.Errorf("indicators min_items must not be negative")
	}
	if c.Indicators.EvolutionWindowYears <= 0 {
		return fmt.Errorf("indicators evolution_window_years must be positive")
	}

	// Validate artifact config
	switch c.Artifacts.Backend {
	case "local":
		if c.Artifacts.MediaRoot == "" {
			return fmt.Errorf("artifacts media_root is required for the local backend")
		}
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("artifacts s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown artifacts backend: %s", c.Artifacts.Backend)
	}

	// Validate sucupira config
	if c.Harvest.Sucupira.Enabled {
		if c.Harvest.Sucupira.ProductionPath == "" || c.Harvest.Sucupira.DetailsPath == "" {
			return fmt.Errorf("sucupira production_path and details_path are required when enabled")
		}
	}

	return nil
}

// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the cache, admission and storage sections.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Source    SourceConfig    `mapstructure:"source"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the worker pool and the HTTP client identity.
// QueueDepth preallocates the execution backlog; it never caps it.
type CrawlerConfig struct {
	Concurrency   int    `mapstructure:"concurrency"`
	QueueDepth    int    `mapstructure:"queue_depth"`
	UserAgent     string `mapstructure:"user_agent"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// HTTPConfig configures fetch timeouts and retries.
type HTTPConfig struct {
	TimeoutSeconds int   `mapstructure:"timeout_seconds"`
	MaxRetries     int   `mapstructure:"max_retries"`
	RetryDelayMs   int   `mapstructure:"retry_delay_ms"`
	MaxBodyBytes   int64 `mapstructure:"max_body_bytes"`
}

// RateLimitConfig configures the per-host politeness limiter.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// SourceConfig points at the archive.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CacheConfig selects the document store.
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	Table      string `mapstructure:"table"`
	Collection string `mapstructure:"collection"`
	Prefix     string `mapstructure:"prefix"`
}

// AdmissionConfig selects the pending ledger.
type AdmissionConfig struct {
	Backend string `mapstructure:"backend"`
	Key     string `mapstructure:"key"`
}

// JobsConfig selects the job status store.
type JobsConfig struct {
	Backend string `mapstructure:"backend"`
	Table   string `mapstructure:"table"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// MongoConfig controls access to MongoDB.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig controls access to Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects where rendered reports are written.
type StorageConfig struct {
	Backend string       `mapstructure:"backend"`
	Bucket  string       `mapstructure:"bucket"`
	Prefix  string       `mapstructure:"prefix"`
	Local   LocalStorage `mapstructure:"local"`
}

// LocalStorage configures the filesystem blob store.
type LocalStorage struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for job completion events.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features and the rotating file sink.
type LoggingConfig struct {
	Development bool        `mapstructure:"development"`
	File        LogFileSink `mapstructure:"file"`
}

// LogFileSink configures lumberjack rotation. An empty Path disables it.
type LogFileSink struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HANSARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.user_agent", "hansard-crawler/0.1")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_delay_ms", 5000)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 2.0)
	v.SetDefault("ratelimit.burst", 2)
	v.SetDefault("source.base_url", "https://api.parliament.uk/historic-hansard")
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.table", "documents")
	v.SetDefault("cache.collection", "documents")
	v.SetDefault("cache.prefix", "hansard:doc:")
	v.SetDefault("admission.backend", BackendMemory)
	v.SetDefault("admission.key", "celery_user_queue")
	v.SetDefault("jobs.backend", BackendMemory)
	v.SetDefault("jobs.table", "jobs")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("mongo.database", "hansard")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.prefix", "hansard")
	v.SetDefault("storage.local.base_dir", "./reports")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 28)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.QueueDepth < 0 {
		return fmt.Errorf("crawler.queue_depth must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if err := oneOf("cache.backend", c.Cache.Backend, BackendMemory, BackendPostgres, BackendMongo, BackendRedis); err != nil {
		return err
	}
	if err := oneOf("admission.backend", c.Admission.Backend, BackendMemory, BackendRedis); err != nil {
		return err
	}
	if err := oneOf("jobs.backend", c.Jobs.Backend, BackendMemory, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("storage.backend", c.Storage.Backend, BackendMemory, BackendLocal, BackendGCS); err != nil {
		return err
	}
	if (c.Cache.Backend == BackendPostgres || c.Jobs.Backend == BackendPostgres) && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be set for the postgres backend")
	}
	if c.Cache.Backend == BackendMongo && c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri must be set for the mongo backend")
	}
	if c.Storage.Backend == BackendGCS && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket must be set for the gcs backend")
	}
	return nil
}

// FetchTimeout is the per-request HTTP budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryDelay is the pause between fetch attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelayMs) * time.Millisecond
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Capacity     CapacityConfig     `mapstructure:"capacity"`
	Announcement AnnouncementConfig `mapstructure:"announcement"`
	Lifecycle    LifecycleConfig    `mapstructure:"lifecycle"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Log          LogConfig          `mapstructure:"log"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Display      DisplayConfig      `mapstructure:"display"`
	Email        EmailConfig        `mapstructure:"email"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RequestTimeout bounds each handler via the timeout middleware.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Mode           string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL is the form golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type AuthConfig struct {
	SeedDefaultStaff bool   `mapstructure:"seed_default_staff"`
	DefaultPassword  string `mapstructure:"default_password"`
}

type CapacityConfig struct {
	MaxPerShift int    `mapstructure:"max_per_shift"`
	Timezone    string `mapstructure:"timezone"`
}

// Location resolves the clinic timezone, falling back to UTC.
func (c CapacityConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid capacity.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

type AnnouncementConfig struct {
	Channel      string        `mapstructure:"channel"`
	Repeat       int           `mapstructure:"repeat"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TriageRoom   string        `mapstructure:"triage_room"`
	Tone         string        `mapstructure:"tone"`
	EventChannel string        `mapstructure:"event_channel"`
}

type LifecycleConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DisplayConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"manager_recipients"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "triage")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.expiry_hours", 12)

	v.SetDefault("auth.seed_default_staff", true)
	v.SetDefault("auth.default_password", "123456")

	v.SetDefault("capacity.max_per_shift", 16)
	v.SetDefault("capacity.timezone", "America/Sao_Paulo")

	v.SetDefault("announcement.channel", "triage:announcements")
	v.SetDefault("announcement.repeat", 4)
	v.SetDefault("announcement.timeout", 2*time.Second)
	v.SetDefault("announcement.triage_room", "Sala de Triagem")
	v.SetDefault("announcement.tone", "ding-dong")
	v.SetDefault("announcement.event_channel", "triage:events")

	v.SetDefault("lifecycle.stale_after", 30*time.Minute)

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 500*time.Millisecond)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("display.cache_ttl", 2*time.Second)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)
}

// LoadConfig reads config.yaml from the usual locations, then lets
// environment variables override any key (database.host -> DATABASE_HOST).
// A missing file is fine; defaults and env cover everything.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Capacity.MaxPerShift <= 0 {
		return fmt.Errorf("capacity.max_per_shift must be positive, got %d", c.Capacity.MaxPerShift)
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if _, err := c.Capacity.Location(); err != nil {
		return err
	}
	return nil
}

// WorkerConfig holds settings only the background worker needs. They come
// from WORKER_* environment variables on top of the shared file config.
type WorkerConfig struct {
	ShiftCheckInterval time.Duration `envconfig:"SHIFT_CHECK_INTERVAL" default:"1m"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	ReportsEnabled     bool          `envconfig:"REPORTS_ENABLED" default:"true"`
	MetricsPort        int           `envconfig:"METRICS_PORT" default:"9091"`
}

func LoadWorkerConfig() (*WorkerConfig, error) {
	var wc WorkerConfig
	if err := envconfig.Process("worker", &wc); err != nil {
		return nil, fmt.Errorf("failed to process worker env: %w", err)
	}
	return &wc, nil
}

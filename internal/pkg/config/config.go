package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Map       MapConfig       `mapstructure:"map"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// GeocoderConfig configures the reverse-geocoding client.
type GeocoderConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Language  string        `mapstructure:"language"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SharedTTL time.Duration `mapstructure:"shared_ttl"`
}

// SessionsConfig bounds the in-memory map session registry.
type SessionsConfig struct {
	MaxSessions int           `mapstructure:"max_sessions"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl"`
}

type MapConfig struct {
	ZoomDebounce time.Duration `mapstructure:"zoom_debounce"`
}

// UpstreamConfig points at the remote observation REST backend.
type UpstreamConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "obsmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "obsmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "obsmap/1.0")
	v.SetDefault("geocoder.language", "id")
	v.SetDefault("geocoder.timeout", 5*time.Second)
	v.SetDefault("geocoder.shared_ttl", 7*24*time.Hour)
	v.SetDefault("sessions.max_sessions", 10000)
	v.SetDefault("sessions.idle_ttl", 30*time.Minute)
	v.SetDefault("map.zoom_debounce", 250*time.Millisecond)
	v.SetDefault("upstream.base_url", "http://localhost:8000/api")
	v.SetDefault("upstream.page_size", 200)
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "obsmap-geocode")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: OBSMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("OBSMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Geocoder.BaseURL == "" {
		errs = append(errs, "geocoder.base_url is required")
	}
	if c.Geocoder.Timeout <= 0 {
		errs = append(errs, "geocoder.timeout must be positive")
	}
	if c.Sessions.MaxSessions <= 0 {
		errs = append(errs, "sessions.max_sessions must be positive")
	}
	if c.Sessions.IdleTTL <= 0 {
		errs = append(errs, "sessions.idle_ttl must be positive")
	}
	if c.Map.ZoomDebounce < 0 {
		errs = append(errs, "map.zoom_debounce must not be negative")
	}
	if c.Upstream.PageSize <= 0 || c.Upstream.PageSize > 1000 {
		errs = append(errs, fmt.Sprintf("upstream.page_size must be 1-1000, got %d", c.Upstream.PageSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Package config loads recruitops settings from recruitops.yaml and
// RECRUITOPS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the working directory
const FileName = "recruitops.yaml"

// EnvPrefix prefixes every environment override
const EnvPrefix = "RECRUITOPS"

// Config represents the full recruitops configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Mapbox    MapboxConfig    `mapstructure:"mapbox"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	JobAdder  JobAdderConfig  `mapstructure:"jobadder"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Advisor   AdvisorConfig   `mapstructure:"advisor"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	Profiling       bool          `mapstructure:"profiling"`
}

// Address is the host:port the server listens on
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig represents the Postgres (Supabase) connection
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig represents the cache connection. An empty Addr selects the
// in-memory cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// AuthConfig represents API token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// RateLimitConfig represents per-client API rate limiting
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MapboxConfig represents the geocoder
type MapboxConfig struct {
	Token    string        `mapstructure:"token"`
	BaseURL  string        `mapstructure:"base_url"`
	Country  string        `mapstructure:"country"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SheetsConfig represents the Google Sheets workbook used for import and export
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CandidatesRange string `mapstructure:"candidates_range"`
	BenchRange      string `mapstructure:"bench_range"`
	ForecastRange   string `mapstructure:"forecast_range"`
}

// JobAdderConfig represents the JobAdder API client
type JobAdderConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
}

// SyncConfig represents sync runs
type SyncConfig struct {
	LedgerPath  string        `mapstructure:"ledger_path"`
	Concurrency int           `mapstructure:"concurrency"`
	Interval    time.Duration `mapstructure:"interval"`
	BenchWindow time.Duration `mapstructure:"bench_window"`
}

// JobsConfig represents the background worker pool
type JobsConfig struct {
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// AdvisorConfig represents the Gemini-backed chat advisors
type AdvisorConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	HistoryTTL time.Duration `mapstructure:"history_ttl"`
	MaxTurns   int           `mapstructure:"max_turns"`
}

// ForecastConfig represents forecast defaults
type ForecastConfig struct {
	Months  int           `mapstructure:"months"`
	Horizon time.Duration `mapstructure:"horizon"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.profiling", false)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "recruitops:")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.issuer", "recruitops")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mapbox.token", "")
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com")
	v.SetDefault("mapbox.country", "au")
	v.SetDefault("mapbox.cache_ttl", 30*24*time.Hour)

	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.candidates_range", "Candidates!A1:Z")
	v.SetDefault("sheets.bench_range", "Bench!A1:H")
	v.SetDefault("sheets.forecast_range", "Forecast!A1:F")

	v.SetDefault("jobadder.client_id", "")
	v.SetDefault("jobadder.client_secret", "")
	v.SetDefault("jobadder.refresh_token", "")
	v.SetDefault("jobadder.base_url", "https://api.jobadder.com/v2")
	v.SetDefault("jobadder.token_url", "https://id.jobadder.com/connect/token")

	v.SetDefault("sync.ledger_path", "recruitops-sync.db")
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.interval", time.Hour)
	v.SetDefault("sync.bench_window", 14*24*time.Hour)

	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.poll_interval", time.Second)
	v.SetDefault("jobs.max_attempts", 3)

	v.SetDefault("advisor.api_key", "")
	v.SetDefault("advisor.model", "gemini-2.0-flash")
	v.SetDefault("advisor.history_ttl", 24*time.Hour)
	v.SetDefault("advisor.max_turns", 20)

	v.SetDefault("forecast.months", 6)
	v.SetDefault("forecast.horizon", 8*7*24*time.Hour)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads configuration from recruitops.yaml in the working directory, if
// present, then applies environment overrides
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile loads configuration from an explicit path
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// DATABASE_URL is the conventional Supabase variable
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects malformed settings
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be json or console, got %q", cfg.Log.Format))
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0) {
		problems = append(problems, "rate_limit.requests and rate_limit.window must be positive when enabled")
	}
	for _, p := range cfg.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				problems = append(problems, fmt.Sprintf("server.trusted_proxies: %q is not an IP address or CIDR range", p))
			}
		}
	}
	if cfg.Sync.Concurrency < 1 {
		problems = append(problems, "sync.concurrency must be at least 1")
	}
	if cfg.Jobs.Workers < 1 {
		problems = append(problems, "jobs.workers must be at least 1")
	}
	if cfg.Advisor.MaxTurns < 1 {
		problems = append(problems, "advisor.max_turns must be at least 1")
	}
	if cfg.Forecast.Months < 1 || cfg.Forecast.Months > 36 {
		problems = append(problems, "forecast.months must be between 1 and 36")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Write saves the given settings (dotted keys) as a YAML config file
func Write(path string, settings map[string]any) error {
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a config file is present in dir
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

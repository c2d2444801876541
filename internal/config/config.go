package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names the persistence gateway a binary talks to.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendREST     Backend = "rest"
	BackendMemory   Backend = "memory"
)

type Config struct {
	Server        ServerConfig    `yaml:"server"`
	Backend       Backend         `yaml:"backend"`
	Database      DatabaseConfig  `yaml:"database"`
	REST          RESTConfig      `yaml:"rest"`
	Auth          AuthConfig      `yaml:"auth"`
	Cache         CacheConfig     `yaml:"cache"`
	Log           LogConfig       `yaml:"log"`
	Tailscale     TailscaleConfig `yaml:"tailscale"`
	MigrationsDir string          `yaml:"migrations_dir"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RESTConfig points at a hosted PostgREST endpoint.
type RESTConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type CacheConfig struct {
	Driver        string        `yaml:"driver"` // none, local or redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	TTL           time.Duration `yaml:"ttl"`
	LocalSizeMB   int           `yaml:"local_size_mb"`
}

// Enabled reports whether a cache driver is configured.
func (c CacheConfig) Enabled() bool {
	return c.Driver == "local" || c.Driver == "redis"
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Addr is the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func defaults() *Config {
	return &Config{
		Backend: BackendPostgres,
		Auth: AuthConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Driver:      "none",
			TTL:         5 * time.Minute,
			LocalSizeMB: 16,
		},
		Log:           LogConfig{Level: "info", Format: "text"},
		Tailscale:     TailscaleConfig{Hostname: "ironlog"},
		MigrationsDir: "migrations",
	}
}

// Load reads config from a YAML file, loads a .env file sitting next to it if
// present, then applies environment variable overrides.
// Env vars use the prefix IRONLOG_ and underscore-separated paths:
//
//	IRONLOG_SERVER_HOST, IRONLOG_SERVER_PORT, IRONLOG_BACKEND,
//	IRONLOG_DB_HOST, IRONLOG_DB_PORT, IRONLOG_DB_NAME,
//	IRONLOG_DB_USER, IRONLOG_DB_PASSWORD, IRONLOG_DB_SSLMODE,
//	IRONLOG_REST_URL, IRONLOG_REST_API_KEY, IRONLOG_AUTH_JWT_SECRET,
//	IRONLOG_CACHE_DRIVER, IRONLOG_CACHE_REDIS_ADDR, IRONLOG_CACHE_REDIS_PASSWORD,
//	IRONLOG_LOG_LEVEL, IRONLOG_LOG_FORMAT, IRONLOG_LOG_FILE,
//	IRONLOG_TAILSCALE_ENABLED
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Variables already in the environment win over the .env file.
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("IRONLOG_SERVER_HOST", &cfg.Server.Host)
	num("IRONLOG_SERVER_PORT", &cfg.Server.Port)
	if v := os.Getenv("IRONLOG_BACKEND"); v != "" {
		cfg.Backend = Backend(v)
	}
	str("IRONLOG_DB_HOST", &cfg.Database.Host)
	num("IRONLOG_DB_PORT", &cfg.Database.Port)
	str("IRONLOG_DB_NAME", &cfg.Database.Name)
	str("IRONLOG_DB_USER", &cfg.Database.User)
	str("IRONLOG_DB_PASSWORD", &cfg.Database.Password)
	str("IRONLOG_DB_SSLMODE", &cfg.Database.SSLMode)
	str("IRONLOG_REST_URL", &cfg.REST.URL)
	str("IRONLOG_REST_API_KEY", &cfg.REST.APIKey)
	str("IRONLOG_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("IRONLOG_CACHE_DRIVER", &cfg.Cache.Driver)
	str("IRONLOG_CACHE_REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("IRONLOG_CACHE_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	str("IRONLOG_LOG_LEVEL", &cfg.Log.Level)
	str("IRONLOG_LOG_FORMAT", &cfg.Log.Format)
	str("IRONLOG_LOG_FILE", &cfg.Log.File)
	if v := os.Getenv("IRONLOG_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Backend {
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case BackendREST:
		if c.REST.URL == "" {
			return fmt.Errorf("rest.url is required")
		}
		if c.REST.APIKey == "" {
			return fmt.Errorf("rest.api_key is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("backend %q must be postgres, rest or memory", c.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("auth token TTLs must be positive")
	}
	switch c.Cache.Driver {
	case "", "none", "local":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("cache.driver %q must be none, local or redis", c.Cache.Driver)
	}
	if c.Cache.Enabled() && c.Cache.TTL < time.Second {
		return fmt.Errorf("cache.ttl must be at least 1s, got %s", c.Cache.TTL)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

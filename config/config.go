package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvProduction enables secure cookies.
const EnvProduction = "production"

// Admin is the single administrator identity.
type Admin struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// Auth contains session cookie and token settings.
type Auth struct {
	CookieName      string `toml:"cookie_name"`
	TokenTTLSeconds int    `toml:"token_ttl_seconds"`
	// SigningSecret pins the token signing key. Empty means a fresh secret per process.
	SigningSecret string `toml:"signing_secret"`
}

// Database contains connection and migration settings.
type Database struct {
	DSN         string `toml:"dsn"`
	Migrations  string `toml:"migrations"`
	AutoMigrate bool   `toml:"auto_migrate"`
}

// Worker contains pipeline worker and scheduler settings.
type Worker struct {
	Workers         int `toml:"workers"`
	QueueSize       int `toml:"queue_size"`
	TickSeconds     int `toml:"tick_seconds"`
	ScheduleSeconds int `toml:"schedule_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the admin backend configuration.
type Config struct {
	Env      string   `toml:"env"`
	Bind     string   `toml:"bind"`
	Admin    Admin    `toml:"admin"`
	Auth     Auth     `toml:"auth"`
	Database Database `toml:"database"`
	Worker   Worker   `toml:"worker"`
	Logging  Logging  `toml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Env:  "development",
		Bind: ":8080",
		Auth: Auth{
			CookieName:      "authentication",
			TokenTTLSeconds: 10800,
		},
		Database: Database{
			DSN:         "file:reddyt-admin.db?cache=shared",
			AutoMigrate: true,
		},
		Worker: Worker{
			Workers:         2,
			QueueSize:       32,
			TickSeconds:     5,
			ScheduleSeconds: 30,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path when it exists, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	exists := false
	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			exists = true
			decoder := toml.NewDecoder(file)
			if err := decoder.Decode(&cfg); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, false, fmt.Errorf("open config: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}

	return &cfg, exists, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if value, ok := lookup(key); ok {
			*dst = value
		}
	}

	set("RYT_ENV", &c.Env)
	set("RYT_BIND", &c.Bind)
	set("RYT_ADMIN_EMAIL", &c.Admin.Email)
	set("RYT_ADMIN_PASSWORD", &c.Admin.Password)
	set("RYT_SIGNING_SECRET", &c.Auth.SigningSecret)
	set("DATABASE_URL", &c.Database.DSN)
	set("DATABASE_MIGRATIONS", &c.Database.Migrations)
}

// normalize trims whitespace. The password is kept byte for byte.
func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Bind = strings.TrimSpace(c.Bind)
	c.Admin.Email = strings.TrimSpace(c.Admin.Email)
	c.Auth.CookieName = strings.TrimSpace(c.Auth.CookieName)
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Database.Migrations = strings.TrimSpace(c.Database.Migrations)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Production reports whether the backend runs in production mode.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

func (c *Config) GetAdminEmail() string {
	return c.Admin.Email
}

func (c *Config) GetAdminPassword() string {
	return c.Admin.Password
}

func (c *Config) GetCookieName() string {
	return c.Auth.CookieName
}

func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLSeconds) * time.Second
}

func (c *Config) GetSecureCookies() bool {
	return c.Production()
}

func (c *Config) GetSigningSecret() string {
	return c.Auth.SigningSecret
}

// TickInterval is how often the worker manager polls for active runs.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Worker.TickSeconds) * time.Second
}

// ScheduleInterval is how often the scheduler evaluates profile schedules.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Worker.ScheduleSeconds) * time.Second
}

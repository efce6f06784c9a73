// Package config loads dagchef settings from a TOML file, a .env file and
// the environment, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/hammamikhairi/dagchef/internal/logger"
)

// Environment overrides.
const (
	EnvLogin    = "DAGCHEF_LOGIN"
	EnvStore    = "DAGCHEF_STORE"
	EnvRedisURL = "DAGCHEF_REDIS_URL"
	EnvMongoURI = "DAGCHEF_MONGO_URI"
	EnvConfig   = "DAGCHEF_CONFIG"
)

// DefaultPath is read when no --config flag or DAGCHEF_CONFIG is given.
const DefaultPath = "dagchef.toml"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Duration is a wrapper for time.Duration that supports TOML marshaling.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full settings file.
type Config struct {
	// Login identifies the current user for ownership checks.
	Login    string `toml:"login"`
	LogLevel string `toml:"log_level"`

	TickInterval        Duration `toml:"tick_interval"`
	NotifyCooldown      Duration `toml:"notify_cooldown"`
	ReminderInterval    Duration `toml:"reminder_interval"`
	AlmostDoneThreshold Duration `toml:"almost_done_threshold"`
	MaxEscalation       int      `toml:"max_escalation"`

	// ManualTimers leaves timers unarmed until the cook starts them.
	ManualTimers bool `toml:"manual_timers"`
	Bell         bool `toml:"bell"`
	Watch        bool `toml:"watch"`

	Store StoreConfig `toml:"store"`
}

// StoreConfig selects and addresses the recipe store.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisURL      string `toml:"redis_url"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Login:               "chef",
		LogLevel:            "normal",
		TickInterval:        Duration{time.Second},
		NotifyCooldown:      Duration{15 * time.Second},
		ReminderInterval:    Duration{2 * time.Minute},
		AlmostDoneThreshold: Duration{30 * time.Second},
		MaxEscalation:       3,
		Bell:                true,
		Watch:               true,
		Store: StoreConfig{
			Backend:       BackendMemory,
			Dir:           ".dagchef",
			RedisURL:      "redis://localhost:6379/0",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "dagchef",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error unless
// required is set. .env is loaded first so it can feed the overrides.
func Load(path string, required bool) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultPath
	}

	md, err := toml.DecodeFile(path, cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
	case err != nil:
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	default:
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, fmt.Errorf("loading config %s: unknown keys %v", path, undec)
		}
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults. Environment overrides are not
// applied.
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("parsing config: unknown keys %v", undec)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvLogin); v != "" {
		c.Login = v
	}
	if v := getenv(EnvStore); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Store.RedisURL = v
	}
	if v := getenv(EnvMongoURI); v != "" {
		c.Store.MongoURI = v
	}
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.TickInterval.Duration <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.NotifyCooldown.Duration < 0 || c.ReminderInterval.Duration < 0 || c.AlmostDoneThreshold.Duration < 0 {
		return errors.New("notification intervals must not be negative")
	}
	if c.MaxEscalation < 0 {
		return fmt.Errorf("max_escalation must not be negative, got %d", c.MaxEscalation)
	}
	return nil
}

// Level maps log_level to a logger level.
func (c *Config) Level() (logger.Level, error) {
	return logger.ParseLevel(strings.ToLower(c.LogLevel))
}

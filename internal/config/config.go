package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Feed    FeedConfig
	Swipe   SwipeConfig
	Session SessionConfig
	Storage StorageConfig
	Relay   RelayConfig
	Matcher MatcherConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port       int
	Host       string
	StaticDir  string
	MaxConns   int
	MCPEnabled bool
}

type FeedConfig struct {
	// ListingURL is the remote profile listing. Empty means the server's own
	// /api/profiles endpoint.
	ListingURL   string
	FetchTimeout time.Duration
	SeedFile     string
}

type SwipeConfig struct {
	VelocityThreshold float64
	EndPolicy         string
}

type SessionConfig struct {
	TTL time.Duration
	Max int
}

type StorageConfig struct {
	DataDir       string
	ProfileDriver string
	PostgresDSN   string
}

type RelayConfig struct {
	RedisAddr    string
	RedisChannel string
	PollInterval time.Duration
}

type MatcherConfig struct {
	BaseURL     string
	Model       string
	UseFallback bool
	Seed        int
	APIKey      string
}

type LogConfig struct {
	Level string
}

// SlogLevel maps the configured level name to a slog.Level. Unknown names
// map to Info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      5000,
			Host:      "127.0.0.1",
			StaticDir: "build",
			MaxConns:  256,
		},
		Feed: FeedConfig{
			FetchTimeout: 5 * time.Second,
		},
		Swipe: SwipeConfig{
			VelocityThreshold: 0.2,
			EndPolicy:         "wrap",
		},
		Session: SessionConfig{
			TTL: 30 * time.Minute,
			Max: 1000,
		},
		Storage: StorageConfig{
			DataDir:       defaultDataDir(),
			ProfileDriver: "sqlite",
		},
		Relay: RelayConfig{
			RedisChannel: "creatorswipe:decisions",
			PollInterval: 500 * time.Millisecond,
		},
		Matcher: MatcherConfig{
			BaseURL:     "https://api.mistral.ai/v1/",
			Model:       "mistral-medium",
			UseFallback: true,
			Seed:        42,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// A .env file in the working directory is loaded first; it never overrides
// variables already set in the environment.
//
// On macOS the backend is UserDefaults (domain: com.creatorswipe.app) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/creatorswipe/config.json and secrets fall back to
// $XDG_DATA_HOME/creatorswipe/secrets.json.
//
// Environment variables (CREATORSWIPE_*) override backend values on all platforms.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

const keychainService = "creatorswipe"

func loadWith(b Backend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Swipe.EndPolicy) {
	case "wrap", "stop":
	default:
		errs = append(errs, fmt.Errorf("swipe.end_policy %q must be wrap or stop", c.Swipe.EndPolicy))
	}
	if c.Swipe.VelocityThreshold <= 0 {
		errs = append(errs, fmt.Errorf("swipe.velocity_threshold must be positive"))
	}
	switch c.Storage.ProfileDriver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("missing required config: storage.profile_driver is postgres but no DSN is set. "+
				"Set it via %s", SecretHint("storage.postgres_dsn")))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.profile_driver %q must be sqlite or postgres", c.Storage.ProfileDriver))
	}
	return errors.Join(errs...)
}

// keychainReader reads secrets from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

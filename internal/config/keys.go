package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	alt     string // legacy env var, read when env is unset
	secret  bool
	account string // keychain account for secrets
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "CREATORSWIPE_SERVER_PORT", alt: "PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.host", typ: kString, env: "CREATORSWIPE_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.static_dir", typ: kString, env: "CREATORSWIPE_SERVER_STATIC_DIR",
		apply:   func(cfg *Config, v any) { cfg.Server.StaticDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.StaticDir },
	},
	{
		key: "server.max_conns", typ: kInt, env: "CREATORSWIPE_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.mcp_enabled", typ: kBool, env: "CREATORSWIPE_SERVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPEnabled },
	},
	{
		key: "feed.listing_url", typ: kString, env: "CREATORSWIPE_FEED_LISTING_URL",
		apply:   func(cfg *Config, v any) { cfg.Feed.ListingURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Feed.ListingURL },
	},
	{
		key: "feed.fetch_timeout", typ: kDuration, env: "CREATORSWIPE_FEED_FETCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Feed.FetchTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Feed.FetchTimeout },
	},
	{
		key: "feed.seed_file", typ: kString, env: "CREATORSWIPE_FEED_SEED_FILE",
		apply:   func(cfg *Config, v any) { cfg.Feed.SeedFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Feed.SeedFile },
	},
	{
		key: "swipe.velocity_threshold", typ: kFloat, env: "CREATORSWIPE_SWIPE_VELOCITY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Swipe.VelocityThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Swipe.VelocityThreshold },
	},
	{
		key: "swipe.end_policy", typ: kString, env: "CREATORSWIPE_SWIPE_END_POLICY",
		apply:   func(cfg *Config, v any) { cfg.Swipe.EndPolicy = v.(string) },
		extract: func(cfg Config) any { return cfg.Swipe.EndPolicy },
	},
	{
		key: "session.ttl", typ: kDuration, env: "CREATORSWIPE_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Session.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.TTL },
	},
	{
		key: "session.max", typ: kInt, env: "CREATORSWIPE_SESSION_MAX",
		apply:   func(cfg *Config, v any) { cfg.Session.Max = v.(int) },
		extract: func(cfg Config) any { return cfg.Session.Max },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CREATORSWIPE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.profile_driver", typ: kString, env: "CREATORSWIPE_STORAGE_PROFILE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.ProfileDriver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.ProfileDriver },
	},
	{
		key: "storage.postgres_dsn", typ: kString, env: "CREATORSWIPE_STORAGE_POSTGRES_DSN",
		secret: true, account: "postgres_dsn",
		apply:   func(cfg *Config, v any) { cfg.Storage.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PostgresDSN },
	},
	{
		key: "relay.redis_addr", typ: kString, env: "CREATORSWIPE_RELAY_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Relay.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Relay.RedisAddr },
	},
	{
		key: "relay.redis_channel", typ: kString, env: "CREATORSWIPE_RELAY_REDIS_CHANNEL",
		apply:   func(cfg *Config, v any) { cfg.Relay.RedisChannel = v.(string) },
		extract: func(cfg Config) any { return cfg.Relay.RedisChannel },
	},
	{
		key: "relay.poll_interval", typ: kDuration, env: "CREATORSWIPE_RELAY_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Relay.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Relay.PollInterval },
	},
	{
		key: "matcher.base_url", typ: kString, env: "CREATORSWIPE_MATCHER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Matcher.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Matcher.BaseURL },
	},
	{
		key: "matcher.model", typ: kString, env: "CREATORSWIPE_MATCHER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Matcher.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Matcher.Model },
	},
	{
		key: "matcher.use_fallback", typ: kBool, env: "CREATORSWIPE_MATCHER_USE_FALLBACK",
		apply:   func(cfg *Config, v any) { cfg.Matcher.UseFallback = v.(bool) },
		extract: func(cfg Config) any { return cfg.Matcher.UseFallback },
	},
	{
		key: "matcher.seed", typ: kInt, env: "CREATORSWIPE_MATCHER_SEED",
		apply:   func(cfg *Config, v any) { cfg.Matcher.Seed = v.(int) },
		extract: func(cfg Config) any { return cfg.Matcher.Seed },
	},
	{
		key: "matcher.api_key", typ: kString, env: "CREATORSWIPE_MATCHER_API_KEY", alt: "MISTRAL_API_KEY",
		secret: true, account: "matcher_api_key",
		apply:   func(cfg *Config, v any) { cfg.Matcher.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Matcher.APIKey },
	},
	{
		key: "log.level", typ: kString, env: "CREATORSWIPE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts raw into the Go type for t.
func parseValue(t keyType, raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name := s.env
		raw := os.Getenv(name)
		if raw == "" && s.alt != "" {
			name = s.alt
			raw = os.Getenv(name)
		}
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", name, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

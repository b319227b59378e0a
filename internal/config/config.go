// Package config loads process configuration from an optional YAML file and
// RECIPEHUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"recipehub-search/internal/api"
	"recipehub-search/internal/cache"
	"recipehub-search/internal/history"
	"recipehub-search/internal/invalidation"
	"recipehub-search/internal/scroll"
	"recipehub-search/internal/search"
	"recipehub-search/internal/session"
)

const EnvPrefix = "RECIPEHUB"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	API          APIConfig          `mapstructure:"api"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Search       SearchConfig       `mapstructure:"search"`
	Scroll       ScrollConfig       `mapstructure:"scroll"`
	Session      SessionConfig      `mapstructure:"session"`
	Redis        RedisConfig        `mapstructure:"redis"`
	History      HistoryConfig      `mapstructure:"history"`
	Invalidation InvalidationConfig `mapstructure:"invalidation"`
}

type ServerConfig struct {
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

type CacheConfig struct {
	TTL                time.Duration `mapstructure:"ttl"`
	MaxEntries         int           `mapstructure:"max_entries"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

type SearchConfig struct {
	Debounce         time.Duration `mapstructure:"debounce"`
	SuggestDebounce  time.Duration `mapstructure:"suggest_debounce"`
	SuggestMinLength int           `mapstructure:"suggest_min_length"`
	SuggestMax       int           `mapstructure:"suggest_max"`
	SuggestCacheTTL  time.Duration `mapstructure:"suggest_cache_ttl"`
	PageSize         int           `mapstructure:"page_size"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
}

type ScrollConfig struct {
	Threshold float64       `mapstructure:"threshold"`
	Lock      time.Duration `mapstructure:"lock"`
}

type SessionConfig struct {
	MaxSessions int           `mapstructure:"max_sessions"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "redis"
	Prefix  string `mapstructure:"prefix"`
}

type InvalidationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 64*1024)

	v.SetDefault("log.env", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("api.base_url", "http://127.0.0.1:3000")
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.max_retries", 2)
	v.SetDefault("api.base_backoff", "100ms")

	d := cache.DefaultConfig()
	v.SetDefault("cache.ttl", d.TTL)
	v.SetDefault("cache.max_entries", d.MaxEntries)
	v.SetDefault("cache.eviction_percentage", d.EvictionPercentage)
	v.SetDefault("cache.sweep_interval", d.SweepInterval)

	s := search.DefaultConfig()
	v.SetDefault("search.debounce", s.Debounce)
	v.SetDefault("search.suggest_debounce", s.SuggestDebounce)
	v.SetDefault("search.suggest_min_length", s.SuggestMinLength)
	v.SetDefault("search.suggest_max", s.SuggestMax)
	v.SetDefault("search.suggest_cache_ttl", s.SuggestCacheTTL)
	v.SetDefault("search.page_size", s.PageSize)
	v.SetDefault("search.fetch_timeout", s.FetchTimeout)

	v.SetDefault("scroll.threshold", 200)
	v.SetDefault("scroll.lock", "1s")

	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.idle_timeout", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.prefix", "recipehub")

	v.SetDefault("invalidation.enabled", false)
	v.SetDefault("invalidation.channel", invalidation.DefaultChannel)
}

// Load reads path (if non-empty) and RECIPEHUB_* overrides, e.g.
// RECIPEHUB_API_BASE_URL or RECIPEHUB_CACHE_TTL=5m.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	apiCfg := c.APIClient()
	if err := apiCfg.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("api: %w", err))
	}
	if err := c.CacheStore().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.SearchCoordinator().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.History.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("history.backend %q must be memory or redis", c.History.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// NeedsRedis reports whether any component is configured to use Redis.
func (c Config) NeedsRedis() bool {
	return c.History.Backend == "redis" || c.Invalidation.Enabled
}

func (c Config) APIClient() api.Config {
	return api.Config{
		BaseURL:         c.API.BaseURL,
		APIKey:          c.API.APIKey,
		UpstreamTimeout: c.API.Timeout,
		MaxRetries:      c.API.MaxRetries,
		BaseBackoff:     c.API.BaseBackoff,
	}
}

func (c Config) CacheStore() cache.Config {
	return cache.Config{
		TTL:                c.Cache.TTL,
		MaxEntries:         c.Cache.MaxEntries,
		EvictionPercentage: c.Cache.EvictionPercentage,
		SweepInterval:      c.Cache.SweepInterval,
	}
}

func (c Config) SearchCoordinator() search.Config {
	return search.Config{
		Debounce:         c.Search.Debounce,
		SuggestDebounce:  c.Search.SuggestDebounce,
		SuggestMinLength: c.Search.SuggestMinLength,
		SuggestMax:       c.Search.SuggestMax,
		SuggestCacheTTL:  c.Search.SuggestCacheTTL,
		PageSize:         c.Search.PageSize,
		FetchTimeout:     c.Search.FetchTimeout,
		RecentLimit:      history.RecentLimit,
		HistoryLimit:     history.HistoryLimit,
	}
}

func (c Config) ScrollTrigger() scroll.Config {
	return scroll.Config{Threshold: c.Scroll.Threshold, Lock: c.Scroll.Lock}
}

func (c Config) Sessions() session.Config {
	return session.Config{MaxSessions: c.Session.MaxSessions, IdleTimeout: c.Session.IdleTimeout}
}

func (c Config) HistoryStore() history.Config {
	return history.Config{Backend: c.History.Backend, Prefix: c.History.Prefix}
}

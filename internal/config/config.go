// Package config loads and validates engine configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Robots    RobotsConfig    `mapstructure:"robots"`
	Render    RenderConfig    `mapstructure:"render"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Extract   ExtractConfig   `mapstructure:"extract"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures page fetch client behavior.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	UserAgent        string `mapstructure:"user_agent"`
	MaxPageBytes     int64  `mapstructure:"max_page_bytes"`
}

// RobotsConfig governs the robots.txt compliance subsystem.
type RobotsConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	Strict              bool `mapstructure:"strict"`
	CacheTTLSeconds     int  `mapstructure:"cache_ttl_seconds"`
	CacheMaxDomains     int  `mapstructure:"cache_max_domains"`
	FetchTimeoutSeconds int  `mapstructure:"fetch_timeout_seconds"`
}

// RenderConfig configures the headless JS-rendering fallback.
type RenderConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
}

// RateLimitConfig tunes the per-domain politeness limiter.
type RateLimitConfig struct {
	DomainQPS       float64       `mapstructure:"domain_qps"`
	Burst           int           `mapstructure:"burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
}

// ExtractConfig tunes price extraction heuristics.
type ExtractConfig struct {
	MinScore int `mapstructure:"min_score"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.user_agent", "PricewatchBot/1.0 (+https://example.com/bot)")
	v.SetDefault("http.max_page_bytes", 5*1024*1024)
	v.SetDefault("robots.enabled", true)
	v.SetDefault("robots.strict", false)
	v.SetDefault("robots.cache_ttl_seconds", 86400)
	v.SetDefault("robots.cache_max_domains", 10000)
	v.SetDefault("robots.fetch_timeout_seconds", 5)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.timeout_seconds", 25)
	v.SetDefault("render.max_parallel", 2)
	v.SetDefault("render.domain_qps", 0.5)
	v.SetDefault("ratelimit.domain_qps", 1)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("ratelimit.cleanup_interval", "5m")
	v.SetDefault("ratelimit.idle_ttl", "15m")
	v.SetDefault("extract.min_score", 1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent must be set")
	}
	if c.HTTP.MaxPageBytes <= 0 {
		return fmt.Errorf("http.max_page_bytes must be > 0")
	}
	if c.Robots.CacheTTLSeconds <= 0 {
		return fmt.Errorf("robots.cache_ttl_seconds must be > 0")
	}
	if c.Robots.CacheMaxDomains <= 0 {
		return fmt.Errorf("robots.cache_max_domains must be > 0")
	}
	if c.Robots.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("robots.fetch_timeout_seconds must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	if c.RateLimit.DomainQPS < 0 {
		return fmt.Errorf("ratelimit.domain_qps must be >= 0")
	}
	return nil
}

// RequestTimeout converts the configured timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RobotsTTL converts the robots cache TTL into a duration.
func (c Config) RobotsTTL() time.Duration {
	return time.Duration(c.Robots.CacheTTLSeconds) * time.Second
}

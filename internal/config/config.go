// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig            `mapstructure:"logging"`
	HTTP     HTTPConfig               `mapstructure:"http"`
	Delays   DelayConfig              `mapstructure:"delays"`
	Progress ProgressConfig           `mapstructure:"progress"`
	Search   SearchConfig             `mapstructure:"search"`
	Resolve  ResolveConfig            `mapstructure:"resolve"`
	Status   StatusConfig             `mapstructure:"status"`
	Scrapers map[string]ScraperConfig `mapstructure:"scrapers"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the fetch client's retry and connectivity behavior.
type HTTPConfig struct {
	UserAgent            string `mapstructure:"user_agent"`
	AcceptLanguage       string `mapstructure:"accept_language"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	MaxRetries           int    `mapstructure:"max_retries"`
	RetryDelaySeconds    int    `mapstructure:"retry_delay_seconds"`
	ConnectivityProbe    string `mapstructure:"connectivity_probe"`
	OutageCeilingSeconds int    `mapstructure:"outage_ceiling_seconds"`
	OutagePollSeconds    int    `mapstructure:"outage_poll_seconds"`
}

// DelayConfig bounds the randomized jitter applied before every fetch.
type DelayConfig struct {
	MinMs int `mapstructure:"min_ms"`
	MaxMs int `mapstructure:"max_ms"`
}

// ProgressConfig selects and locates the progress store backend.
type ProgressConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// SearchConfig holds the search API used to resolve official websites.
type SearchConfig struct {
	Endpoint      string   `mapstructure:"endpoint"`
	APIKey        string   `mapstructure:"api_key"`
	BannedDomains []string `mapstructure:"banned_domains"`
}

// ResolveConfig governs the concurrent website-resolution pool.
type ResolveConfig struct {
	Workers      int     `mapstructure:"workers"`
	KeywordCheck bool    `mapstructure:"keyword_check"`
	HostRPS      float64 `mapstructure:"host_rps"`
	HostBurst    int     `mapstructure:"host_burst"`
}

// StatusConfig controls the optional status/metrics HTTP server.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// ScraperConfig describes one provider-category scraper instance.
type ScraperConfig struct {
	Name           string `mapstructure:"name"`
	OverviewURL    string `mapstructure:"overview_url"`
	TypeTag        string `mapstructure:"type_tag"`
	OutputFile     string `mapstructure:"output_file"`
	ResolvedOutput string `mapstructure:"resolved_output"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HEALTHDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.healthdir")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("http.accept_language", "de-CH,de;q=0.9,en-US;q=0.8,en;q=0.7")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_delay_seconds", 10)
	v.SetDefault("http.connectivity_probe", "8.8.8.8:53")
	v.SetDefault("http.outage_ceiling_seconds", 120)
	v.SetDefault("http.outage_poll_seconds", 10)
	v.SetDefault("delays.min_ms", 500)
	v.SetDefault("delays.max_ms", 2000)
	v.SetDefault("progress.backend", "csv")
	v.SetDefault("progress.dir", ".")
	v.SetDefault("search.endpoint", "https://www.searchapi.io/api/v1/search")
	v.SetDefault("search.banned_domains", []string{"onedoc.ch", "comparis.ch", "doktor.ch"})
	v.SetDefault("resolve.workers", 10)
	v.SetDefault("resolve.keyword_check", true)
	v.SetDefault("resolve.host_rps", 2)
	v.SetDefault("resolve.host_burst", 1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Delays.MinMs < 0 || c.Delays.MaxMs < c.Delays.MinMs {
		return fmt.Errorf("delays.min_ms/max_ms must satisfy 0 <= min <= max")
	}
	if c.Progress.Backend != "csv" && c.Progress.Backend != "sqlite" {
		return fmt.Errorf("progress.backend must be csv or sqlite, got %q", c.Progress.Backend)
	}
	if c.Resolve.Workers <= 0 {
		return fmt.Errorf("resolve.workers must be > 0")
	}
	for key, s := range c.Scrapers {
		if s.OverviewURL == "" {
			return fmt.Errorf("scrapers.%s.overview_url is required", key)
		}
		if s.TypeTag == "" {
			return fmt.Errorf("scrapers.%s.type_tag is required", key)
		}
		if s.OutputFile == "" {
			return fmt.Errorf("scrapers.%s.output_file is required", key)
		}
	}
	return nil
}

// Scraper returns the configuration for one scraper key.
func (c Config) Scraper(key string) (ScraperConfig, error) {
	s, ok := c.Scrapers[key]
	if !ok {
		keys := make([]string, 0, len(c.Scrapers))
		for k := range c.Scrapers {
			keys = append(keys, k)
		}
		return ScraperConfig{}, fmt.Errorf("unknown scraper %q (configured: %s)", key, strings.Join(keys, ", "))
	}
	return s, nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryDelay is the base of the exponential backoff schedule.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelaySeconds) * time.Second
}

// JitterBounds returns the [min, max] randomized pre-fetch delay.
func (c Config) JitterBounds() (time.Duration, time.Duration) {
	return time.Duration(c.Delays.MinMs) * time.Millisecond,
		time.Duration(c.Delays.MaxMs) * time.Millisecond
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"github.com/varoOP/mediahub/internal/aggregate"
	"github.com/varoOP/mediahub/internal/domain"
	"github.com/varoOP/mediahub/internal/paging"
)

// EnvPrefix prefixes every environment override, e.g. MEDIAHUB_TMDB_API_KEY.
const EnvPrefix = "MEDIAHUB"

// Default returns the configuration used when nothing overrides it.
func Default() *domain.Config {
	return &domain.Config{
		RandomUserAgent:    false,
		RequestTimeout:     10 * time.Second,
		RetryAttempts:      3,
		RateLimit:          2,
		CacheTTL:           aggregate.DefaultTTL,
		QuickSearchTimeout: aggregate.DefaultQuickSearchTimeout,
		UpstreamPageSize:   paging.DefaultUpstreamPageSize,
		DisplayPageSize:    paging.DefaultDisplayPageSize,
		DatabaseDir:        ".",
		DatabaseID:         "mediahub",
		UserID:             "local",
		LogLevel:           "info",
		ListenAddr:         "127.0.0.1:7676",
	}
}

// SetDefaults registers every key with viper so env overrides resolve
// even without a config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("tmdb_api_key", d.TmdbApiKey)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("random_user_agent", d.RandomUserAgent)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("retry_attempts", d.RetryAttempts)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("quick_search_timeout", d.QuickSearchTimeout)
	v.SetDefault("upstream_page_size", d.UpstreamPageSize)
	v.SetDefault("display_page_size", d.DisplayPageSize)
	v.SetDefault("database_dir", d.DatabaseDir)
	v.SetDefault("database_id", d.DatabaseID)
	v.SetDefault("user_id", d.UserID)
	v.SetDefault("discord_webhook_url", d.DiscordWebhookURL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_path", d.LogPath)
	v.SetDefault("listen_addr", d.ListenAddr)
}

// Load loads configuration from multiple sources:
// 1. Config file (config.toml, optional)
// 2. Environment variables (MEDIAHUB_*)
func Load() (*domain.Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*domain.Config, error) {
	SetDefaults(v)

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Validate(cfg *domain.Config) error {
	if cfg.TmdbApiKey == "" {
		return fmt.Errorf("tmdb_api_key is required (set via config.toml or %s_TMDB_API_KEY environment variable)", EnvPrefix)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request_timeout: %s (must be positive)", cfg.RequestTimeout)
	}
	if cfg.QuickSearchTimeout <= 0 {
		return fmt.Errorf("invalid quick_search_timeout: %s (must be positive)", cfg.QuickSearchTimeout)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("invalid cache_ttl: %s (must be positive)", cfg.CacheTTL)
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("invalid rate_limit: %v (must not be negative)", cfg.RateLimit)
	}
	if cfg.UpstreamPageSize <= 0 || cfg.DisplayPageSize <= 0 {
		return fmt.Errorf("invalid page sizes: upstream %d, display %d (must be positive)", cfg.UpstreamPageSize, cfg.DisplayPageSize)
	}
	if cfg.DatabaseID == "" || cfg.UserID == "" {
		return fmt.Errorf("database_id and user_id must not be empty")
	}
	return nil
}

// WriteDefault writes a config template to path. It refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# mediahub configuration. Every key can be overridden with %s_<KEY>.\n\n", EnvPrefix); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(Default()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

package domain

import "time"

type Config struct {
	TmdbApiKey         string        `toml:"tmdb_api_key" mapstructure:"tmdb_api_key"`
	UserAgent          string        `toml:"user_agent" mapstructure:"user_agent"`
	RandomUserAgent    bool          `toml:"random_user_agent" mapstructure:"random_user_agent"`
	RequestTimeout     time.Duration `toml:"request_timeout" mapstructure:"request_timeout"`
	RetryAttempts      uint          `toml:"retry_attempts" mapstructure:"retry_attempts"`
	RateLimit          float64       `toml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTL           time.Duration `toml:"cache_ttl" mapstructure:"cache_ttl"`
	QuickSearchTimeout time.Duration `toml:"quick_search_timeout" mapstructure:"quick_search_timeout"`
	UpstreamPageSize   int           `toml:"upstream_page_size" mapstructure:"upstream_page_size"`
	DisplayPageSize    int           `toml:"display_page_size" mapstructure:"display_page_size"`
	DatabaseDir        string        `toml:"database_dir" mapstructure:"database_dir"`
	DatabaseID         string        `toml:"database_id" mapstructure:"database_id"`
	UserID             string        `toml:"user_id" mapstructure:"user_id"`
	DiscordWebhookURL  string        `toml:"discord_webhook_url" mapstructure:"discord_webhook_url"`
	LogLevel           string        `toml:"log_level" mapstructure:"log_level"`
	LogPath            string        `toml:"log_path" mapstructure:"log_path"`
	ListenAddr         string        `toml:"listen_addr" mapstructure:"listen_addr"`
}

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	_, err := LoadFrom(newViper())
	assert.ErrorContains(t, err, "tmdb_api_key is required")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MEDIAHUB_TMDB_API_KEY", "secret")

	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	want := Default()
	want.TmdbApiKey = "secret"
	assert.Equal(t, want, cfg)

	assert.Equal(t, 15*time.Second, cfg.QuickSearchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 20, cfg.UpstreamPageSize)
	assert.Equal(t, 21, cfg.DisplayPageSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEDIAHUB_TMDB_API_KEY", "secret")
	t.Setenv("MEDIAHUB_CACHE_TTL", "90s")
	t.Setenv("MEDIAHUB_DISPLAY_PAGE_SIZE", "30")
	t.Setenv("MEDIAHUB_RANDOM_USER_AGENT", "true")

	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 30, cfg.DisplayPageSize)
	assert.True(t, cfg.RandomUserAgent)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MEDIAHUB_TMDB_API_KEY", "secret")
	t.Setenv("MEDIAHUB_UPSTREAM_PAGE_SIZE", "0")

	_, err := LoadFrom(newViper())
	assert.ErrorContains(t, err, "invalid page sizes")
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	require.NoError(t, WriteDefault(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	v.Set("tmdb_api_key", "secret")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "127.0.0.1:7676", cfg.ListenAddr)
	assert.Equal(t, 21, cfg.DisplayPageSize)

	assert.ErrorContains(t, WriteDefault(path), "already exists")
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "http://localhost:8000", cfg.Coop.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Coop.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.Downloads.TokenTTL)
	assert.Equal(t, int64(512*1024*1024), cfg.Uploads.MaxBytes)
	assert.False(t, cfg.Audit.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("COOP_API_BASE_URL", "https://coop.example.org/")
	v.Set("COOP_API_TIMEOUT", "bogus")
	v.Set("ALLOWED_ORIGINS", " http://localhost:3000 , ,https://dash.example.org")
	v.Set("UPLOAD_MAX_BYTES", -1)
	v.Set("DASHBOARD_CACHE_TTL", "90s")

	cfg := fromViper(v)

	assert.Equal(t, "https://coop.example.org", cfg.Coop.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Coop.Timeout)
	assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.org"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(512*1024*1024), cfg.Uploads.MaxBytes)
	assert.Equal(t, 90*time.Second, cfg.Dashboard.CacheTTL)
}

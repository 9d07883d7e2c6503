package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "sma_billing", cfg.Database.Name)
	assert.Equal(t, 36, cfg.Billing.MaxInstallments)
	assert.Equal(t, "INV", cfg.Billing.NumberPrefix)
	assert.False(t, cfg.Reports.CacheEnabled)
	assert.Equal(t, time.Minute, cfg.Reports.CacheTTL)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Notifications.RetryDelay)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BILLING_MAX_INSTALLMENTS", 0)
	v.Set("REPORTS_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, 36, cfg.Billing.MaxInstallments)
	assert.Equal(t, time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestBillingLocation(t *testing.T) {
	assert.Equal(t, time.UTC, BillingConfig{}.Location())
	assert.Equal(t, time.UTC, BillingConfig{Timezone: "Mars/Olympus"}.Location())

	loc := BillingConfig{Timezone: "UTC"}.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "UTC", loc.String())
}

func TestValidate(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 3, cfg.Database.ConnectRetries)

	cfg.Env = EnvProduction
	assert.ErrorIs(t, cfg.Validate(), ErrInsecureSecret)

	cfg.JWT.Secret = "rotated-secret"
	require.NoError(t, cfg.Validate())

	cfg.APIPrefix = "api"
	assert.Error(t, cfg.Validate())

	cfg.APIPrefix = "/api/v1"
	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

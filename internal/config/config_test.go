package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("CHARTERLY_SIGNING_KEY", "secret-from-env")

	yamlContent := `
database:
  path: "test.db"
auth:
  signing_key: "${CHARTERLY_SIGNING_KEY}"
cache:
  revalidate: 30s
  invalidate_on_write: true
booking:
  enforce_transitions: true
  default_currency: eur
telegram:
  manager_chats: [101, 202]
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "secret-from-env", cfg.Auth.SigningKey)
	assert.Equal(t, 30*time.Second, cfg.Cache.Revalidate)
	assert.True(t, cfg.Cache.InvalidateOnWrite)
	assert.True(t, cfg.Booking.EnforceTransitions)
	assert.Equal(t, "EUR", cfg.Booking.DefaultCurrency)
	assert.Equal(t, []int64{101, 202}, cfg.Telegram.ManagerChat)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "path"},
			Auth:     AuthConfig{SigningKey: "key"},
			Booking:  BookingConfig{DefaultCurrency: "USD"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "missing signing key", mutate: func(c *Config) { c.Auth.SigningKey = "" }, wantErr: true},
		{name: "bad currency", mutate: func(c *Config) { c.Booking.DefaultCurrency = "EURO" }, wantErr: true},
		{
			name: "webhook validation without token",
			mutate: func(c *Config) {
				c.Verification.ValidateWebhook = true
			},
			wantErr: true,
		},
		{
			name: "spreadsheet without credentials",
			mutate: func(c *Config) {
				c.Google.BookingSpreadsheetID = "sheet"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 60*time.Second, cfg.Cache.Revalidate)
	assert.False(t, cfg.Cache.InvalidateOnWrite)
	assert.False(t, cfg.Booking.EnforceTransitions)
	assert.Equal(t, "USD", cfg.Booking.DefaultCurrency)
	assert.Equal(t, "US", cfg.Verification.DefaultRegion)
	assert.Equal(t, "sms", cfg.Verification.Channel)
	assert.Equal(t, "charterly", cfg.Auth.Issuer)
	assert.Equal(t, 0, cfg.Monitoring.PrometheusPort)

	cfg = &Config{Monitoring: MonitoringConfig{PrometheusEnabled: true}}
	cfg.applyDefaults()
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
}

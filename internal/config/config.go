package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Backup       BackupConfig       `yaml:"backup"`
	Redis        RedisConfig        `yaml:"redis"`
	Cache        CacheConfig        `yaml:"cache"`
	Booking      BookingConfig      `yaml:"booking"`
	Auth         AuthConfig         `yaml:"auth"`
	Verification VerificationConfig `yaml:"verification"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Google       GoogleConfig       `yaml:"google"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// PublicURL is the externally visible base URL, used to rebuild webhook URLs for signature checks.
	PublicURL string `yaml:"public_url"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type CacheConfig struct {
	Revalidate        time.Duration `yaml:"revalidate"`
	InvalidateOnWrite bool          `yaml:"invalidate_on_write"`
}

type BookingConfig struct {
	EnforceTransitions bool          `yaml:"enforce_transitions"`
	DefaultCurrency    string        `yaml:"default_currency"`
	ExpirySweep        time.Duration `yaml:"expiry_sweep_interval"`
}

type AuthConfig struct {
	SigningKey string `yaml:"signing_key"`
	Issuer     string `yaml:"issuer"`
}

type VerificationConfig struct {
	AccountSID      string        `yaml:"account_sid"`
	AuthToken       string        `yaml:"auth_token"`
	ServiceSID      string        `yaml:"service_sid"`
	Channel         string        `yaml:"channel"`
	DefaultRegion   string        `yaml:"default_region"`
	ValidateWebhook bool          `yaml:"validate_webhook"`
	Timeout         time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken    string  `yaml:"bot_token"`
	ManagerChat []int64 `yaml:"manager_chats"`
	Debug       bool    `yaml:"debug"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
	SheetName            string `yaml:"sheet_name"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Auth.SigningKey == "" {
		return errors.New("auth signing key is required")
	}

	if len(c.Booking.DefaultCurrency) != 3 {
		return fmt.Errorf("booking default currency %q must be a 3-letter code", c.Booking.DefaultCurrency)
	}

	if c.Verification.ValidateWebhook && c.Verification.AuthToken == "" {
		return errors.New("verification.validate_webhook requires verification.auth_token")
	}

	if c.Google.BookingSpreadsheetID != "" && c.Google.CredentialsFile == "" {
		return errors.New("google.bookings_spreadsheet_id requires google.credentials_file")
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values must not be negative")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "charterly"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.Cache.Revalidate == 0 {
		c.Cache.Revalidate = 60 * time.Second
	}

	c.Booking.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.Booking.DefaultCurrency))
	if c.Booking.DefaultCurrency == "" {
		c.Booking.DefaultCurrency = "USD"
	}
	if c.Booking.ExpirySweep == 0 {
		c.Booking.ExpirySweep = 5 * time.Minute
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = c.App.Name
	}

	if c.Verification.Channel == "" {
		c.Verification.Channel = "sms"
	}
	if c.Verification.DefaultRegion == "" {
		c.Verification.DefaultRegion = "US"
	}
	if c.Verification.Timeout == 0 {
		c.Verification.Timeout = 10 * time.Second
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the deliverability checker.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Checks   ChecksConfig   `yaml:"checks"`
	Provider ProviderConfig `yaml:"provider"`
	Tracking TrackingConfig `yaml:"tracking"`
	Mailer   MailerConfig   `yaml:"mailer"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Auth     AuthConfig     `yaml:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional diagnostics cache settings.
type RedisConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the diagnostics cache TTL as a duration.
func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ChecksConfig holds DNS probe settings.
type ChecksConfig struct {
	Domain         string `yaml:"domain"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-lookup timeout as a duration.
func (c ChecksConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProviderConfig names the active mail provider and its credentials.
// Mailer is one of: sendgrid, mailgun, brevo, postmark, smtp, gmail,
// outlook, none, or any other provider name (validated generically).
type ProviderConfig struct {
	Mailer   string            `yaml:"mailer"`
	SendGrid SendGridConfig    `yaml:"sendgrid"`
	Mailgun  MailgunConfig     `yaml:"mailgun"`
	Brevo    BrevoConfig       `yaml:"brevo"`
	Postmark PostmarkConfig    `yaml:"postmark"`
	SMTP     SMTPProbeConfig   `yaml:"smtp"`
	Gmail    OAuthMailerConfig `yaml:"gmail"`
	Outlook  OAuthMailerConfig `yaml:"outlook"`
	Other    map[string]string `yaml:"other"`
}

// SendGridConfig holds SendGrid API credentials.
type SendGridConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// MailgunConfig holds Mailgun API credentials.
type MailgunConfig struct {
	APIKey  string `yaml:"api_key"`
	Domain  string `yaml:"domain"`
	BaseURL string `yaml:"base_url"`
}

// BrevoConfig holds Brevo (formerly Sendinblue) API credentials.
type BrevoConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// PostmarkConfig holds Postmark server token credentials.
type PostmarkConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SMTPProbeConfig holds raw SMTP connection parameters.
// Encryption is one of: none, ssl, tls.
type SMTPProbeConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Encryption string `yaml:"encryption"`
}

// OAuthMailerConfig holds an OAuth mailer's token state.
type OAuthMailerConfig struct {
	AccessToken string    `yaml:"access_token"`
	Expiry      time.Time `yaml:"expiry"`
}

// TrackingConfig holds open/click tracking settings.
type TrackingConfig struct {
	BaseURL    string `yaml:"base_url"`
	SigningKey string `yaml:"signing_key"`
}

// MailerConfig holds the outbound SMTP transport settings.
type MailerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	From          string `yaml:"from"`
	SkipTLSVerify bool   `yaml:"skip_tls_verify"`
}

// WebhookConfig holds the bounce webhook settings. Secret, when set,
// is required in the X-EDC-Webhook-Secret header; empty keeps the
// endpoint open (provider network trust).
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// AuthConfig holds the capability tokens for the protected endpoints.
type AuthConfig struct {
	HealthToken string `yaml:"health_token"`
	AdminToken  string `yaml:"admin_token"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Checks.TimeoutSeconds == 0 {
		cfg.Checks.TimeoutSeconds = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.CacheTTLSeconds == 0 {
		cfg.Redis.CacheTTLSeconds = 300
	}
	if cfg.Provider.Mailer == "" {
		cfg.Provider.Mailer = "none"
	}
	if cfg.Provider.SendGrid.BaseURL == "" {
		cfg.Provider.SendGrid.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.Provider.Mailgun.BaseURL == "" {
		cfg.Provider.Mailgun.BaseURL = "https://api.mailgun.net"
	}
	if cfg.Provider.Brevo.BaseURL == "" {
		cfg.Provider.Brevo.BaseURL = "https://api.brevo.com"
	}
	if cfg.Provider.Postmark.BaseURL == "" {
		cfg.Provider.Postmark.BaseURL = "https://api.postmarkapp.com"
	}
	if cfg.Mailer.Port == 0 {
		cfg.Mailer.Port = 587
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if domain := os.Getenv("CHECK_DOMAIN"); domain != "" {
		cfg.Checks.Domain = domain
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		cfg.Provider.SendGrid.APIKey = key
	}
	if key := os.Getenv("MAILGUN_API_KEY"); key != "" {
		cfg.Provider.Mailgun.APIKey = key
	}
	if domain := os.Getenv("MAILGUN_DOMAIN"); domain != "" {
		cfg.Provider.Mailgun.Domain = domain
	}
	if key := os.Getenv("BREVO_API_KEY"); key != "" {
		cfg.Provider.Brevo.APIKey = key
	}
	if key := os.Getenv("POSTMARK_API_KEY"); key != "" {
		cfg.Provider.Postmark.APIKey = key
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_SIGNING_KEY"); v != "" {
		cfg.Tracking.SigningKey = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Mailer.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Mailer.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Mailer.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Mailer.Password = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("HEALTH_TOKEN"); v != "" {
		cfg.Auth.HealthToken = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Auth.AdminToken = v
	}

	return cfg, nil
}

package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultSessionSecret = "secret_key_change_me"

// ErrDefaultSecret is returned when production runs with the development
// session secret.
var ErrDefaultSecret = errors.New("SESSION_SECRET must be set in production")

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"host=localhost user=postgres password=postgres dbname=hikeclub port=5432 sslmode=disable TimeZone=Europe/Paris"`
	SiteURL     string `envconfig:"SITE_URL" default:"http://localhost:8080"`

	SessionSecret string `envconfig:"SESSION_SECRET" default:"secret_key_change_me"`
	// TokenSecret signs pending-registration and password reset tokens.
	// Falls back to SessionSecret when empty.
	TokenSecret string `envconfig:"TOKEN_SECRET"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`

	InvitationCode         string        `envconfig:"INVITATION_CODE"`
	PendingRegistrationTTL time.Duration `envconfig:"PENDING_REGISTRATION_TTL" default:"15m"`
	PasswordResetTTL       time.Duration `envconfig:"PASSWORD_RESET_TTL" default:"15m"`

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort string `envconfig:"SMTP_PORT"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
	SMTPFrom string `envconfig:"SMTP_FROM"`

	TemplatesDir  string        `envconfig:"TEMPLATES_DIR" default:"./web/templates"`
	StatsCacheTTL time.Duration `envconfig:"STATS_CACHE_TTL" default:"1m"`
	CORSOrigins   []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
}

// Load reads the optional .env file and then the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.IsProduction() && cfg.SessionSecret == defaultSessionSecret {
		return nil, ErrDefaultSecret
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = cfg.SessionSecret
	}
	return &cfg, nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GoogleEnabled reports whether Google OAuth credentials are configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quizgen"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	PublicBaseURL           string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres Postgres
	Redis    Redis
	Security Security
	OAuth    OAuth
	Gemini   Gemini
	Images   Images
	Quiz     Quiz
	SMTP     SMTP
	CORS     CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache + pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret       string `env:"JWT_SECRET,notEmpty"`
	ShareHMACSecret string `env:"SHARE_HMAC_SECRET,notEmpty"`
}

// OAuth holds OAuth provider configuration.
type OAuth struct {
	GoogleClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_OAUTH_REDIRECT_URL"`
}

// Gemini configures the LLM content generator.
type Gemini struct {
	APIKey      string        `env:"GEMINI_API_KEY"`
	Model       string        `env:"GEMINI_MODEL" envDefault:"models/gemini-2.5-flash"`
	BaseURL     string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	HTTPTimeout time.Duration `env:"GEMINI_HTTP_TIMEOUT" envDefault:"40s"`
	MaxAttempts int           `env:"GEMINI_MAX_ATTEMPTS" envDefault:"3"`
}

// Images configures the text-to-image endpoint and fallback rendering.
type Images struct {
	BaseURL     string        `env:"IMAGE_BASE_URL" envDefault:"https://image.pollinations.ai"`
	Width       int           `env:"IMAGE_WIDTH" envDefault:"512"`
	Height      int           `env:"IMAGE_HEIGHT" envDefault:"288"`
	HTTPTimeout time.Duration `env:"IMAGE_HTTP_TIMEOUT" envDefault:"20s"`
	Concurrency int           `env:"IMAGE_CONCURRENCY" envDefault:"4"`
	RetryQueue  int           `env:"IMAGE_RETRY_QUEUE" envDefault:"64"`
}

// Quiz groups quiz generation defaults and limits.
type Quiz struct {
	DefaultQuestionCount int           `env:"DEFAULT_QUESTION_COUNT" envDefault:"5"`
	MaxQuestionCount     int           `env:"MAX_QUESTION_COUNT" envDefault:"20"`
	ShareCacheTTL        time.Duration `env:"SHARE_CACHE_TTL" envDefault:"5m"`
	ResultsTopN          int           `env:"RESULTS_TOP_N" envDefault:"50"`
}

// SMTP holds email server configuration.
type SMTP struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" envDefault:"587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	FromEmail string `env:"SMTP_FROM_EMAIL"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	JWTSecret        string
	JWTExpiresIn     time.Duration
	JWTRefreshExpiry time.Duration

	FrontendURL    string
	AllowedOrigins []string

	RateLimitMax    int
	RateLimitWindow time.Duration

	EmailDomain    string
	UniversityName string

	SendGridAPIKey string
	MailFrom       string
	MailFromName   string

	RedisURL string
	NATSURL  string

	R2     R2Config
	Google GoogleSettings
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	Region          string
}

// Enabled reports whether enough credentials are present to presign uploads.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.BucketName != ""
}

type GoogleSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (g GoogleSettings) Enabled() bool {
	return g.ClientID != ""
}

// Load reads the process environment. Missing required variables are reported together.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             GetEnv("PORT", "8080"),
		Env:              GetEnv("APP_ENV", "development"),
		DatabaseURL:      databaseURL(),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTExpiresIn:     GetEnvAsDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		JWTRefreshExpiry: GetEnvAsDuration("JWT_REFRESH_EXPIRES_IN", 30*24*time.Hour),
		FrontendURL:      os.Getenv("FRONTEND_URL"),
		RateLimitMax:     GetEnvAsInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:  GetEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		EmailDomain:      GetEnv("EMAIL_DOMAIN", "@cornell.edu"),
		UniversityName:   GetEnv("UNIVERSITY_NAME", "Cornell University"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		MailFrom:         GetEnv("MAIL_FROM", "no-reply@campusride.app"),
		MailFromName:     GetEnv("MAIL_FROM_NAME", "CampusRide"),
		RedisURL:         os.Getenv("REDIS_URL"),
		NATSURL:          os.Getenv("NATS_URL"),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("CLOUDFLARE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("CLOUDFLARE_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("CLOUDFLARE_BUCKET_NAME"),
			PublicURL:       os.Getenv("CLOUDFLARE_PUBLIC_URL"),
			Region:          "auto",
		},
		Google: GoogleSettings{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
	}
	cfg.AllowedOrigins = GetEnvAsSlice("ALLOWED_ORIGINS", []string{cfg.FrontendURL})

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.FrontendURL == "" {
		missing = append(missing, "FRONTEND_URL")
	}
	if cfg.SendGridAPIKey == "" {
		missing = append(missing, "SENDGRID_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", cfg.RateLimitMax)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// databaseURL prefers DATABASE_URL and falls back to the discrete DB_* variables.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	host, user, name := os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_NAME")
	if host == "" || user == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, os.Getenv("DB_PASSWORD"), name, GetEnv("DB_PORT", "5432"), GetEnv("DB_SSLMODE", "disable"))
}

func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsDuration accepts Go durations ("15m") and whole days ("7d").
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func GetEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func ParseDuration(value string) (time.Duration, error) {
	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(value)
}

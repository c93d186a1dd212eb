package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	UploadDriverR2    = "r2"
	UploadDriverLocal = "local"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	AppEnv       string

	CORSAllowedOrigins []string

	StorageDriver string
	UploadDriver  string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	UploadDir       string
	PublicUploadURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OTPRateLimit — максимум запросов на отправку кода в минуту с одного адреса.
	OTPRateLimit int
	// OTPAttemptLimit ограничивает попытки ввода кода на один аккаунт в минуту.
	OTPAttemptLimit int

	VerifyOTPTTL              time.Duration
	ResetOTPTTL               time.Duration
	SessionTTL                time.Duration
	RegistrationSweepInterval time.Duration
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MailEnabled reports whether SMTP delivery is configured; otherwise mail is logged.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AppEnv:        withDefault(getenv("APP_ENV"), "development"),
		StorageDriver: withDefault(getenv("STORAGE_DRIVER"), StorageDriverPostgres),
		UploadDriver:  withDefault(getenv("UPLOAD_DRIVER"), UploadDriverR2),

		R2AccountID:       getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),

		UploadDir:       withDefault(getenv("UPLOAD_DIR"), "uploads"),
		PublicUploadURL: withDefault(getenv("PUBLIC_UPLOAD_URL"), "/uploads"),

		SMTPHost:     getenv("SMTP_HOST"),
		SMTPUsername: getenv("SMTP_USERNAME"),
		SMTPPassword: getenv("SMTP_PASSWORD"),
		SenderEmail:  getenv("SENDER_EMAIL"),

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
	}

	cfg.DatabaseURL = getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageDriver == StorageDriverPostgres {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	cfg.JWTSecretKey = getenv("JWT_SECRET_KEY")
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, cfg.StorageDriver)
	}

	switch cfg.UploadDriver {
	case UploadDriverLocal:
	case UploadDriverR2:
		if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME are required for UPLOAD_DRIVER=r2")
		}
	default:
		return nil, fmt.Errorf("UPLOAD_DRIVER must be %q or %q, got %q", UploadDriverR2, UploadDriverLocal, cfg.UploadDriver)
	}

	var err error
	if cfg.ServerPort, err = intVar(getenv, "SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	if cfg.SMTPPort, err = intVar(getenv, "SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intVar(getenv, "REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.OTPRateLimit, err = intVar(getenv, "OTP_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.OTPRateLimit <= 0 {
		return nil, fmt.Errorf("OTP_RATE_LIMIT must be positive, got %d", cfg.OTPRateLimit)
	}
	if cfg.OTPAttemptLimit, err = intVar(getenv, "OTP_ATTEMPT_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.OTPAttemptLimit <= 0 {
		return nil, fmt.Errorf("OTP_ATTEMPT_LIMIT must be positive, got %d", cfg.OTPAttemptLimit)
	}

	if cfg.VerifyOTPTTL, err = durationVar(getenv, "VERIFY_OTP_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResetOTPTTL, err = durationVar(getenv, "RESET_OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationVar(getenv, "SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RegistrationSweepInterval, err = durationVar(getenv, "REGISTRATION_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	origins := withDefault(getenv("CORS_ALLOWED_ORIGINS"), "http://localhost:5173")
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intVar(getenv func(string) string, name string, fallback int) (int, error) {
	raw := getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func durationVar(getenv func(string) string, name string, fallback time.Duration) (time.Duration, error) {
	raw := getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return v, nil
}

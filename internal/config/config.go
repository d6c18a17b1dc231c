// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is loaded first when present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinIO selects the object store backend. An empty Endpoint means disk.
type MinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	URLExpiry time.Duration
}

// OIDC configures external sign-in.
type OIDC struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Enabled reports whether enough is configured to offer external sign-in.
func (o OIDC) Enabled() bool {
	return o.Issuer != "" && o.ClientID != "" && o.ClientSecret != ""
}

// Config holds every setting the server reads from the environment.
type Config struct {
	Port     int
	LogLevel slog.Level
	DBPath   string

	SessionSecret string
	SessionTTL    time.Duration
	BcryptCost    int
	CookieSecure  bool

	MaxUploadSize      int64
	BlobBackend        string // "disk" or "minio"
	UploadDir          string
	PublicUploadURL    string
	MinIO              MinIO
	AvatarFetchTimeout time.Duration

	OIDC OIDC
}

// Load reads the configuration. It only fails on values that are present but
// malformed; anything missing falls back to a development default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	bcryptCost, err := getEnvInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}
	maxUpload, err := getEnvInt("MAX_UPLOAD_SIZE", 5<<20)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := getEnvDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	urlExpiry, err := getEnvDuration("MINIO_URL_EXPIRY", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := getEnvDuration("AVATAR_FETCH_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               port,
		LogLevel:           level,
		DBPath:             getEnv("DB_PATH", "data/skyhub.db"),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionTTL:         sessionTTL,
		BcryptCost:         bcryptCost,
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
		MaxUploadSize:      int64(maxUpload),
		BlobBackend:        getEnv("BLOB_BACKEND", "disk"),
		UploadDir:          getEnv("UPLOAD_DIR", "data/uploads"),
		PublicUploadURL:    getEnv("PUBLIC_UPLOAD_URL", "/uploads"),
		AvatarFetchTimeout: fetchTimeout,
		MinIO: MinIO{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "skyhub"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
			URLExpiry: urlExpiry,
		},
		OIDC: OIDC{
			Issuer:       getEnv("OIDC_ISSUER", "https://accounts.google.com"),
			ClientID:     getEnv("OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
			CallbackURL:  getEnv("OIDC_CALLBACK_URL", ""),
		},
	}
	if cfg.OIDC.CallbackURL == "" {
		cfg.OIDC.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/oidc/callback", cfg.Port)
	}

	if cfg.BlobBackend != "disk" && cfg.BlobBackend != "minio" {
		return nil, fmt.Errorf("config: BLOB_BACKEND must be disk or minio, got %q", cfg.BlobBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration like 30m, got %q", key, value)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

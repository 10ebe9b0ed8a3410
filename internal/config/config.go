package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppEnv            = "dev"
	defaultPort              = "8080"
	defaultDatabaseURL       = "storefront.db"
	defaultJWTSecret         = "change-me-jwt-secret"
	defaultJWTAccessTTL      = "24h"
	defaultUploadDir         = "./uploads"
	defaultMaxUploadBytes    = "5242880" // 5 MiB
	defaultFolders           = "general,products,articles,pages"
	defaultUploadRatePerMin  = "30"
	defaultLogLevel          = "info"
	defaultLogMaxSizeMB      = "100"
	defaultLogMaxBackups     = "3"
	defaultLogMaxAgeDays     = "7"
	defaultLogCompress       = "false"
	defaultShutdownTimeout   = "15s"
	defaultCORSAllowOrigins  = "http://localhost:3000,http://localhost:5173"
	maxAllowedUploadCeiling  = 100 * 1024 * 1024
	maxAllowedUploadRatePerM = 10000
)

type Config struct {
	AppEnv          string
	Port            string
	DatabaseURL     string
	JWTSecret       string
	JWTAccessTTL    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	TrustedProxies  []string

	Media MediaConfig
	Log   LogConfig
}

// MediaConfig drives the upload pipeline. UploadDir is the single storage root
// shared by the write side and the /uploads read side.
type MediaConfig struct {
	UploadDir            string
	MaxUploadBytes       int64
	Folders              []string
	TransformConcurrency int
	UploadRatePerMinute  int
}

type LogConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = defaultAppEnv
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.CORSOrigins = parseListEnv("CORS_ALLOWED_ORIGINS", defaultCORSAllowOrigins)
	cfg.TrustedProxies = parseListEnv("TRUSTED_PROXIES", "")

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if err != nil {
		return nil, err
	}

	cfg.Media.UploadDir = strings.TrimSpace(getEnv("MEDIA_UPLOAD_DIR", defaultUploadDir))
	cfg.Media.Folders = parseListEnv("MEDIA_FOLDERS", defaultFolders)

	maxBytes, err := parseIntEnv("MEDIA_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	cfg.Media.MaxUploadBytes = int64(maxBytes)

	cfg.Media.TransformConcurrency, err = parseIntEnv("MEDIA_TRANSFORM_CONCURRENCY", strconv.Itoa(runtime.NumCPU()))
	if err != nil {
		return nil, err
	}
	cfg.Media.UploadRatePerMinute, err = parseIntEnv("MEDIA_UPLOAD_RATE_PER_MINUTE", defaultUploadRatePerMin)
	if err != nil {
		return nil, err
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.Log.Path = strings.TrimSpace(os.Getenv("LOG_PATH"))
	if cfg.Log.MaxSizeMB, err = parseIntEnv("LOG_MAX_SIZE_MB", defaultLogMaxSizeMB); err != nil {
		return nil, err
	}
	if cfg.Log.MaxBackups, err = parseIntEnv("LOG_MAX_BACKUPS", defaultLogMaxBackups); err != nil {
		return nil, err
	}
	if cfg.Log.MaxAgeDays, err = parseIntEnv("LOG_MAX_AGE_DAYS", defaultLogMaxAgeDays); err != nil {
		return nil, err
	}
	cfg.Log.Compress = parseBoolEnv("LOG_COMPRESS", defaultLogCompress)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("media config: upload_dir=%s max_upload_bytes=%d folders=%v", cfg.Media.UploadDir, cfg.Media.MaxUploadBytes, cfg.Media.Folders)

	return cfg, nil
}

// IsProduction reports whether the app runs with production-grade requirements.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.Media.UploadDir == "" {
		return fmt.Errorf("MEDIA_UPLOAD_DIR must not be empty")
	}
	if cfg.Media.MaxUploadBytes <= 0 || cfg.Media.MaxUploadBytes > maxAllowedUploadCeiling {
		return fmt.Errorf("MEDIA_MAX_UPLOAD_BYTES must be in (0, %d]", maxAllowedUploadCeiling)
	}
	if len(cfg.Media.Folders) == 0 {
		return fmt.Errorf("MEDIA_FOLDERS must list at least one folder")
	}
	for _, f := range cfg.Media.Folders {
		if strings.ContainsAny(f, `/\`) || f == "." || f == ".." {
			return fmt.Errorf("MEDIA_FOLDERS contains invalid folder %q", f)
		}
	}
	if cfg.Media.TransformConcurrency <= 0 {
		return fmt.Errorf("MEDIA_TRANSFORM_CONCURRENCY must be > 0")
	}
	if cfg.Media.UploadRatePerMinute <= 0 || cfg.Media.UploadRatePerMinute > maxAllowedUploadRatePerM {
		return fmt.Errorf("MEDIA_UPLOAD_RATE_PER_MINUTE must be in (0, %d]", maxAllowedUploadRatePerM)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseListEnv(name, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(name, fallback), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

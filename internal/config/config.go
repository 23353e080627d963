package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Profile    string
	ServerAddr string

	DatabaseDriver string
	DatabaseURL    string
	RedisAddr      string

	ViewTokenSecret   string
	ViewTokenTTL      time.Duration
	AmbientAuthSecret string

	TileRateLimit       int
	TileRateLimitWindow time.Duration
	APIRateLimitRPM     int

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	StorageTimeout time.Duration

	WatermarkLabel   string
	WatermarkOpacity float64

	AuditBufferSize int

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
	EnableOTelHTTP            bool
}

// Load assembles configuration from the environment with defaults suitable
// for local development, then validates. The only values without a default
// are the two signing secrets.
func Load() (*Config, error) {
	cfg := &Config{
		Profile:           envString("APP_PROFILE", "dev"),
		ServerAddr:        envString("SERVER_ADDR", ":8080"),
		DatabaseDriver:    envString("DATABASE_DRIVER", "postgres"),
		DatabaseURL:       envString("DATABASE_URL", ""),
		RedisAddr:         envString("REDIS_ADDR", ""),
		ViewTokenSecret:   envString("VIEW_TOKEN_SECRET", ""),
		AmbientAuthSecret: envString("AMBIENT_AUTH_SECRET", ""),
		S3Bucket:          envString("S3_BUCKET", "docshield-pages"),
		S3Region:          envString("S3_REGION", "us-east-1"),
		S3Endpoint:        envString("S3_ENDPOINT", ""),
		S3AccessKey:       envString("S3_ACCESS_KEY", ""),
		S3SecretKey:       envString("S3_SECRET_KEY", ""),
		WatermarkLabel:    envString("WATERMARK_LABEL", "DocShield"),

		OTELExporterOTLPEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELServiceName:          envString("OTEL_SERVICE_NAME", "view-session-service"),
		OTELEnvironment:          envString("OTEL_ENVIRONMENT", "dev"),
	}

	var err error
	if cfg.ViewTokenTTL, err = envDuration("VIEW_TOKEN_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TileRateLimit, err = envInt("TILE_RATE_LIMIT", 60); err != nil {
		return nil, err
	}
	if cfg.TileRateLimitWindow, err = envDuration("TILE_RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitRPM, err = envInt("API_RATE_LIMIT_RPM", 600); err != nil {
		return nil, err
	}
	if cfg.StorageTimeout, err = envDuration("STORAGE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WatermarkOpacity, err = envFloat("WATERMARK_OPACITY", 0.14); err != nil {
		return nil, err
	}
	if cfg.AuditBufferSize, err = envInt("AUDIT_BUFFER_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownHTTPDrainTimeout, err = envDuration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownObservabilityTimeout, err = envDuration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = envBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracesEnabled, err = envBool("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = envDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.EnableOTelHTTP, err = envBool("OTEL_HTTP_ENABLED", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		recordConfigValidationEvent(context.Background(), cfg.Profile, "invalid", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), cfg.Profile, "valid", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		problems = append(problems, "DATABASE_DRIVER must be postgres or sqlite")
	}
	if len(c.ViewTokenSecret) < 32 {
		problems = append(problems, "VIEW_TOKEN_SECRET must be at least 32 bytes")
	}
	if len(c.AmbientAuthSecret) < 32 {
		problems = append(problems, "AMBIENT_AUTH_SECRET must be at least 32 bytes")
	}
	if c.TileRateLimit <= 0 {
		problems = append(problems, "TILE_RATE_LIMIT must be positive")
	}
	if c.TileRateLimitWindow <= 0 {
		problems = append(problems, "TILE_RATE_LIMIT_WINDOW must be positive")
	}
	if c.WatermarkOpacity <= 0 || c.WatermarkOpacity > 1 {
		problems = append(problems, "WATERMARK_OPACITY must be in (0,1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

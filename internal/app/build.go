package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docshield/view-session-service/internal/config"
	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/health"
	"github.com/docshield/view-session-service/internal/http/handler"
	"github.com/docshield/view-session-service/internal/http/router"
	"github.com/docshield/view-session-service/internal/observability"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
	"github.com/docshield/view-session-service/internal/service"
	"github.com/docshield/view-session-service/internal/storage"
	"github.com/docshield/view-session-service/internal/watermark"
)

// Build wires the whole service from configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Document{}, &domain.ShareLink{}, &domain.ViewAudit{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	docRepo := repository.NewDocumentRepository(db)
	userRepo := repository.NewUserRepository(db)
	shareRepo := repository.NewShareLinkRepository(db)
	auditRepo := repository.NewViewAuditRepository(db)

	audit := service.NewAuditService(auditRepo, cfg.AuditBufferSize, logger)
	policy := service.NewPolicyService(shareRepo)
	tokens := security.NewViewTokenManager("docshield-view", cfg.ViewTokenSecret, cfg.ViewTokenTTL)
	manifests := service.NewManifestService(docRepo, shareRepo, policy, tokens, audit)

	var limiter service.TileRateLimiter
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = service.NewRedisTileRateLimiter(redisClient, "tile_rl", cfg.TileRateLimit, cfg.TileRateLimitWindow)
	} else {
		logger.Warn("REDIS_ADDR unset, tile rate limits are per-instance")
		limiter = service.NewLocalTileRateLimiter(cfg.TileRateLimit, cfg.TileRateLimitWindow)
	}

	store, err := storage.NewS3ObjectStore(ctx, storage.S3Options{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Timeout:   cfg.StorageTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}

	compositor, err := watermark.NewCompositor(cfg.WatermarkLabel)
	if err != nil {
		return nil, fmt.Errorf("init watermark compositor: %w", err)
	}

	tiles := service.NewTileService(docRepo, userRepo, shareRepo, tokens, limiter, store, compositor, audit, cfg.WatermarkOpacity)

	checkers := []health.Checker{
		health.CheckFunc{Name: "db", Fn: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
	}
	if redisClient != nil {
		checkers = append(checkers, health.CheckFunc{Name: "redis", Fn: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	h := router.NewRouter(router.Dependencies{
		ViewHandler:     handler.NewViewHandler(manifests, tiles),
		AmbientParser:   security.NewAmbientTokenParser(cfg.AmbientAuthSecret),
		UserRepo:        userRepo,
		APIRateLimitRPM: cfg.APIRateLimitRPM,
		Readiness:       health.NewProbeRunner(5*time.Second, 2*time.Second, checkers...),
		EnableOTelHTTP:  cfg.EnableOTelHTTP,
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return New(cfg, logger, server, runtime, audit), nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{})
	default:
		return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	}
}

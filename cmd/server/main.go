package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/campaignhub/backend/api/handler"
	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/internal/broadcast"
	"github.com/campaignhub/backend/internal/config"
	"github.com/campaignhub/backend/internal/infrastructure/cache"
	"github.com/campaignhub/backend/internal/infrastructure/monitor"
	"github.com/campaignhub/backend/internal/infrastructure/objstore"
	"github.com/campaignhub/backend/internal/infrastructure/pending"
	pgInfra "github.com/campaignhub/backend/internal/infrastructure/postgres"
	redisInfra "github.com/campaignhub/backend/internal/infrastructure/redis"
	"github.com/campaignhub/backend/internal/middleware"
	"github.com/campaignhub/backend/internal/router"
	"github.com/campaignhub/backend/internal/services"
	"github.com/campaignhub/backend/internal/services/lifecycle"
	"github.com/campaignhub/backend/pkg/httpcontext"
	"github.com/campaignhub/backend/pkg/logger"
	"github.com/campaignhub/backend/repository"
	"github.com/campaignhub/backend/repository/postgres"
	backupUC "github.com/campaignhub/backend/usecase/backup"
	contentUC "github.com/campaignhub/backend/usecase/content"
	mediaUC "github.com/campaignhub/backend/usecase/media"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	descriptors := make([]domain.Descriptor, 0, len(cfg.Domains))
	for _, dc := range cfg.Domains {
		descriptors = append(descriptors, domain.Descriptor{
			Name:      dc.Name,
			SortField: dc.SortField,
		}.Normalize())
	}

	// The remote store is best effort from here on: a failed connection
	// degrades to cache-only operation instead of aborting startup.
	var entityRepo repository.EntityRepository
	var pgPool *pgxpool.Pool
	if cfg.Database.Enabled {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Warn("migrations failed, continuing cache-only", zap.Error(err))
		}
		pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Warn("postgres connection failed, continuing cache-only", zap.Error(err))
		} else {
			pgPool = pool
			entityRepo = postgres.NewEntityRepository(pool)
			manager.Register("postgres", func(ctx context.Context) error {
				pool.Close()
				return nil
			})
		}
	}

	bus := broadcast.NewBus()
	var broadcaster broadcast.Broadcaster = bus
	var redisClient *redislib.Client
	if cfg.Redis.Enabled {
		client, err := redisInfra.NewClient(cfg.Redis)
		if err != nil {
			zapLogger.Warn("redis connection failed, broadcasting in-process only", zap.Error(err))
		} else {
			redisClient = client
			bridge := broadcast.NewRedisBridge(bus, client, zapLogger)
			broadcaster = bridge
			manager.Register("redis", func(ctx context.Context) error {
				_ = bridge.Close()
				return client.Close()
			})
		}
	}

	cacheStore, err := cache.Open(cfg.Cache.Path, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to open cache store", zap.Error(err))
	}
	manager.Register("cache", func(ctx context.Context) error {
		return cacheStore.Close()
	})

	pendingQueue, err := pending.Open(cfg.Pending.Path)
	if err != nil {
		zapLogger.Fatal("failed to open pending queue", zap.Error(err))
	}
	manager.Register("pending_queue", func(ctx context.Context) error {
		return pendingQueue.Close()
	})

	mon := monitor.New(pgPool, redisClient, pendingQueue, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	pendingProcessor := services.NewPendingProcessor(
		pendingQueue,
		mon,
		entityRepo,
		descriptors,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Pending.SyncInterval,
			BatchSize:  cfg.Pending.BatchSize,
			MaxRetries: cfg.Pending.MaxRetry,
		},
	)
	pendingProcessor.Start()
	manager.Register("pending_processor", func(ctx context.Context) error {
		pendingProcessor.Stop(ctx)
		return nil
	})

	registry := contentUC.NewRegistry()
	for _, desc := range descriptors {
		svc := contentUC.New(desc, cacheStore, entityRepo, broadcaster, pendingProcessor, zapLogger)
		if err := svc.Start(); err != nil {
			zapLogger.Fatal("failed to subscribe content service",
				zap.String("domain", desc.Name), zap.Error(err))
		}
		registry.Add(svc)
		manager.Register("content_"+desc.Name, func(ctx context.Context) error {
			svc.Stop()
			return nil
		})
	}

	blobStore, err := objstore.New(appCtx, cfg.Media)
	if err != nil {
		zapLogger.Warn("object storage unavailable, media falls back to ephemeral URLs", zap.Error(err))
	}
	var blobs repository.BlobStore
	if blobStore != nil {
		blobs = blobStore
	}

	backupService := backupUC.New(zapLogger)
	mediaService := mediaUC.New(blobs, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(cfg.Admin, ctxAdapter, zapLogger),
		Content: apiHandler.NewContentHandler(registry, ctxAdapter, zapLogger),
		Backup:  apiHandler.NewBackupHandler(backupService, registry, ctxAdapter, zapLogger),
		Media:   apiHandler.NewMediaHandler(mediaService, registry, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.Admin.JWTSecret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxBodySize,
		Name:               cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

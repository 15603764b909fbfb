package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_backend/internal/activities"
	"crm_backend/internal/adapters/storage"
	"crm_backend/internal/attachments"
	"crm_backend/internal/auth"
	"crm_backend/internal/auth/lockout"
	"crm_backend/internal/contacts"
	contactsservice "crm_backend/internal/contacts/service"
	"crm_backend/internal/email"
	"crm_backend/internal/events"
	apphttp "crm_backend/internal/http"
	"crm_backend/internal/http/router"
	"crm_backend/internal/notification"
	"crm_backend/internal/pipeline"
	"crm_backend/internal/scheduler"
	"crm_backend/platform/config"
	"crm_backend/platform/db"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := db.WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := db.WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	purgeScheduler, closeScheduler := initPurgeScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	guard, closeGuard := initLockoutGuard(cfg, log)
	if closeGuard != nil {
		defer closeGuard()
	}

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(sender, purgeScheduler, log)
	notificationModule.RegisterHandlers(eventBus)

	bucket := cfg.GetMinioBucketAttachments()
	authModule := auth.NewModule(pool, cfg, guard, eventBus, val, log)
	contactsModule := contacts.NewModule(pool, pipeline.NewAggregator(pipeline.DefaultTaxonomy()), eventBus, val, log, contactsservice.Options{
		PhoneRegion:      cfg.GetPhoneDefaultRegion(),
		AttachmentBucket: bucket,
	})
	activitiesModule := activities.NewModule(pool, eventBus, val, log, bucket)

	modules := []apphttp.Module{
		authModule,
		contactsModule,
		activitiesModule,
	}

	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, storageSvc, bucket)
		log.Info("storage service initialized", "attachmentsBucket", bucket)

		modules = append(modules, attachments.NewModule(pool, storageSvc, bucket, storageSvc.GetMaxFileSize(), log))
	} else {
		log.Warn("MINIO_ENDPOINT not configured; attachment endpoints disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		Sessions: authModule.Service(),
		EventBus: eventBus,
		Modules:  modules,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, bucket string) {
	if err := db.WithRetry(ctx, log, "ensure attachments bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func initPurgeScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.PurgeScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; orphaned attachment objects will not be purged")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initLockoutGuard(cfg config.LockoutConfig, log *logger.Logger) (lockout.Guard, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; login lockout disabled")
		return lockout.Noop{}, nil
	}

	guard, err := lockout.NewRedisGuardFromURL(cfg.GetRedisURL(), cfg.GetLoginMaxFailures(), cfg.GetLoginLockoutWindow())
	if err != nil {
		log.Error("failed to initialize login lockout", "error", err)
		return lockout.Noop{}, nil
	}

	return guard, func() {
		_ = guard.Close()
	}
}

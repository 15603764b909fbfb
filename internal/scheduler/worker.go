package scheduler

import (
	"context"
	"fmt"
	"time"

	"crm_backend/internal/adapters/storage"
	"crm_backend/platform/config"
	"crm_backend/platform/logger"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

const (
	purgeParallelism       = 4
	sessionCleanupSchedule = "@every 1h"
)

// ObjectDeleter removes stored objects.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}

// SessionCleaner deletes expired sessions and reports how many were removed.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	objects   ObjectDeleter
	sessions  SessionCleaner
	log       *logger.Logger
}

// NewWorker builds the asynq server and the periodic scheduler. objects may be
// nil when object storage is not configured; purge tasks are then dropped.
func NewWorker(cfg config.SchedulerConfig, objects ObjectDeleter, sessions SessionCleaner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := queueName(cfg)
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	periodic := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := periodic.Register(sessionCleanupSchedule, NewSessionsCleanupTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register session cleanup: %w", err)
	}

	w := newWorker(objects, sessions, log)
	w.server = server
	w.scheduler = periodic
	return w, nil
}

func newWorker(objects ObjectDeleter, sessions SessionCleaner, log *logger.Logger) *Worker {
	w := &Worker{
		mux:      asynq.NewServeMux(),
		objects:  objects,
		sessions: sessions,
		log:      log,
	}
	w.mux.HandleFunc(TaskAttachmentsPurge, w.handleAttachmentsPurge)
	w.mux.HandleFunc(TaskSessionsCleanup, w.handleSessionsCleanup)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.log.Error("periodic scheduler failed to start", "error", err)
		} else {
			defer w.scheduler.Shutdown()
		}
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAttachmentsPurge(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAttachmentsPurgePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if w.objects == nil {
		w.log.Warn("object storage not configured; dropping purge", "bucket", payload.Bucket, "keys", len(payload.Keys))
		return nil
	}

	if err := PurgeObjects(ctx, w.objects, payload.Bucket, payload.Keys); err != nil {
		return err
	}
	w.log.Info("attachment objects purged", "bucket", payload.Bucket, "keys", len(payload.Keys))
	return nil
}

func (w *Worker) handleSessionsCleanup(ctx context.Context, _ *asynq.Task) error {
	if w.sessions == nil {
		return nil
	}
	deleted, err := w.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.log.Info("expired sessions deleted", "deleted", deleted)
	}
	return nil
}

// PurgeObjects deletes keys from bucket with bounded parallelism. Objects that
// are already gone count as deleted.
func PurgeObjects(ctx context.Context, objects ObjectDeleter, bucket string, keys []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeParallelism)

	for _, key := range keys {
		g.Go(func() error {
			if err := objects.DeleteObject(gctx, bucket, key); err != nil && !storage.IsNotFound(err) {
				return fmt.Errorf("purge %s/%s: %w", bucket, key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

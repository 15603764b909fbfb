// Package notification provides event handlers for side effects triggered by
// domain events: welcome emails on registration and purging of stored
// attachment objects once their rows are gone.
// Domain modules publish events and never talk to email or the job queue directly.
package notification

import (
	"context"

	"crm_backend/internal/email"
	"crm_backend/internal/events"
	"crm_backend/internal/scheduler"
	"crm_backend/platform/logger"
)

// Module handles notification side effects for domain events.
type Module struct {
	sender email.Sender
	purge  scheduler.PurgeScheduler
	log    *logger.Logger
}

// New creates the notification module. purge may be nil when no job queue is configured.
func New(sender email.Sender, purge scheduler.PurgeScheduler, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{
		sender: sender,
		purge:  purge,
		log:    log,
	}
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.UserRegistered{}.EventName(), m)
	bus.Subscribe(events.ActivityLogged{}.EventName(), m)
	bus.Subscribe(events.AttachmentObjectsOrphaned{}.EventName(), m)
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.UserRegistered:
		return m.handleUserRegistered(ctx, e)
	case events.ActivityLogged:
		return m.handleActivityLogged(ctx, e)
	case events.AttachmentObjectsOrphaned:
		return m.handleAttachmentObjectsOrphaned(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleUserRegistered(ctx context.Context, e events.UserRegistered) error {
	if err := m.sender.SendWelcomeEmail(ctx, e.Email, e.FullName); err != nil {
		m.log.Error("failed to send welcome email",
			"userId", e.UserID,
			"email", e.Email,
			"error", err,
		)
		return err
	}
	m.log.Info("welcome email sent", "userId", e.UserID, "email", e.Email)
	return nil
}

func (m *Module) handleActivityLogged(_ context.Context, e events.ActivityLogged) error {
	m.log.Info("activity logged",
		"userId", e.UserID,
		"contactId", e.ContactID,
		"activityId", e.ActivityID,
		"type", e.Type,
		"pipelineStage", e.PipelineStage,
		"inherited", e.Inherited,
	)
	return nil
}

func (m *Module) handleAttachmentObjectsOrphaned(ctx context.Context, e events.AttachmentObjectsOrphaned) error {
	if len(e.Keys) == 0 {
		return nil
	}
	if m.purge == nil {
		m.log.Warn("attachment objects orphaned without a purge queue",
			"userId", e.UserID,
			"bucket", e.Bucket,
			"count", len(e.Keys),
		)
		return nil
	}
	if err := m.purge.EnqueueAttachmentsPurge(ctx, e.Bucket, e.Keys); err != nil {
		m.log.Error("failed to enqueue attachment purge",
			"userId", e.UserID,
			"bucket", e.Bucket,
			"count", len(e.Keys),
			"error", err,
		)
		return err
	}
	m.log.Info("attachment purge enqueued", "userId", e.UserID, "bucket", e.Bucket, "count", len(e.Keys))
	return nil
}

var _ events.Handler = (*Module)(nil)

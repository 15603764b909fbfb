// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// UserRegistered is published after a new account has been created.
type UserRegistered struct {
	BaseEvent
	UserID   uuid.UUID `json:"userId"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
}

func (e UserRegistered) EventName() string { return "auth.user.registered" }

// ActivityLogged is published after an activity has been stored.
// Inherited is true when the stage was taken from the previous latest activity.
type ActivityLogged struct {
	BaseEvent
	UserID        uuid.UUID `json:"userId"`
	ContactID     uuid.UUID `json:"contactId"`
	ActivityID    uuid.UUID `json:"activityId"`
	Type          string    `json:"type"`
	PipelineStage string    `json:"pipelineStage"`
	Inherited     bool      `json:"inherited"`
}

func (e ActivityLogged) EventName() string { return "activities.activity.logged" }

// AttachmentObjectsOrphaned is published when rows referencing stored objects
// were deleted and the objects themselves must be purged.
type AttachmentObjectsOrphaned struct {
	BaseEvent
	UserID uuid.UUID `json:"userId"`
	Bucket string    `json:"bucket"`
	Keys   []string  `json:"keys"`
}

func (e AttachmentObjectsOrphaned) EventName() string { return "attachments.objects.orphaned" }

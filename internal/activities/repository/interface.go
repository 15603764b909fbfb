package repository

import (
	"context"
	"time"

	"crm_backend/internal/pipeline"

	"github.com/google/uuid"
)

// Activity is a stored activity row.
type Activity struct {
	ID            uuid.UUID
	ContactID     uuid.UUID
	Type          string
	Subject       string
	Notes         *string
	ActivityDate  time.Time
	PipelineStage string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot returns the derivation read model of the activity.
func (a Activity) Snapshot() pipeline.ActivitySnapshot {
	return pipeline.ActivitySnapshot{
		ID:            a.ID,
		ContactID:     a.ContactID,
		Type:          a.Type,
		ActivityDate:  a.ActivityDate,
		PipelineStage: a.PipelineStage,
		CreatedAt:     a.CreatedAt,
	}
}

// Attachment is the metadata of a file attached to an activity.
type Attachment struct {
	ID               uuid.UUID
	ActivityID       uuid.UUID
	OriginalFilename string
	FileSize         int64
	MimeType         *string
	UploadedAt       time.Time
}

// CreateParams contains parameters for creating an activity. Defaults are
// resolved by the service, so every field is set.
type CreateParams struct {
	ID            uuid.UUID
	ContactID     uuid.UUID
	Type          string
	Subject       string
	Notes         *string
	ActivityDate  time.Time
	PipelineStage string
}

// UpdateParams holds the optional fields of a partial update. Nil keeps the stored value.
type UpdateParams struct {
	Type          *string
	Subject       *string
	Notes         *string
	ActivityDate  *time.Time
	PipelineStage *string
}

// ListFilter narrows the cross-contact listing. Empty fields do not filter.
type ListFilter struct {
	Type   string
	Search string
}

// ActivityReader provides owner-scoped reads. Ownership runs through the contact.
type ActivityReader interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (Activity, error)
	ContactOwnedBy(ctx context.Context, userID, contactID uuid.UUID) (bool, error)
	// ListForContact returns the contact's activities, most recent activity_date first.
	ListForContact(ctx context.Context, contactID uuid.UUID) ([]Activity, error)
	// ListForOwner returns activities across all of the user's contacts.
	ListForOwner(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Activity, error)
	// LatestForContact returns the contact's most recent stored activity, or nil.
	LatestForContact(ctx context.Context, contactID uuid.UUID) (*Activity, error)
	// ListAttachments returns attachment metadata for the given activities.
	ListAttachments(ctx context.Context, activityIDs []uuid.UUID) ([]Attachment, error)
	// ListAttachmentKeys returns the object keys stored for one activity.
	ListAttachmentKeys(ctx context.Context, activityID uuid.UUID) ([]string, error)
}

// ActivityWriter provides owner-scoped writes.
type ActivityWriter interface {
	Create(ctx context.Context, params CreateParams) (Activity, error)
	Update(ctx context.Context, userID, id uuid.UUID, params UpdateParams) (Activity, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// Repository combines all activity repository operations.
type Repository interface {
	ActivityReader
	ActivityWriter
}

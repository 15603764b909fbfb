package repository

import (
	"context"
	"time"

	"crm_backend/internal/pipeline"

	"github.com/google/uuid"
)

// Contact is a stored contact row.
type Contact struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Name          string
	Email         string
	Phone         *string
	Company       *string
	JobTitle      *string
	Website       *string
	Notes         *string
	PipelineStage string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateParams contains parameters for creating a contact.
type CreateParams struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Name          string
	Email         string
	Phone         *string
	Company       *string
	JobTitle      *string
	Website       *string
	Notes         *string
	PipelineStage string
}

// UpdateParams holds the optional fields of a partial update. Nil keeps the stored value.
type UpdateParams struct {
	Name          *string
	Email         *string
	Phone         *string
	Company       *string
	JobTitle      *string
	Website       *string
	Notes         *string
	PipelineStage *string
}

// ContactReader provides owner-scoped reads.
type ContactReader interface {
	GetByID(ctx context.Context, userID, id uuid.UUID) (Contact, error)
	// ListCandidates returns every contact of userID matching search, newest first.
	// An empty search matches all of the user's contacts.
	ListCandidates(ctx context.Context, userID uuid.UUID, search string) ([]Contact, error)
	// ListActivitySnapshots returns the complete activity sets of the given contacts.
	ListActivitySnapshots(ctx context.Context, contactIDs []uuid.UUID) ([]pipeline.ActivitySnapshot, error)
	// ListAttachmentKeys returns the object keys of every attachment under the contact.
	ListAttachmentKeys(ctx context.Context, userID, id uuid.UUID) ([]string, error)
}

// ContactWriter provides owner-scoped writes.
type ContactWriter interface {
	Create(ctx context.Context, params CreateParams) (Contact, error)
	Update(ctx context.Context, userID, id uuid.UUID, params UpdateParams) (Contact, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// Repository combines all contact repository operations.
type Repository interface {
	ContactReader
	ContactWriter
}

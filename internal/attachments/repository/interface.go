package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Attachment is a stored attachment row. FileKey locates the object in the bucket.
type Attachment struct {
	ID               uuid.UUID
	ActivityID       uuid.UUID
	OriginalFilename string
	StoredFilename   string
	FileKey          string
	FileSize         int64
	MimeType         *string
	UploadedAt       time.Time
}

// Repository provides owner-scoped attachment persistence. Ownership runs
// through the activity's contact.
type Repository interface {
	ActivityOwnedBy(ctx context.Context, userID, activityID uuid.UUID) (bool, error)
	Create(ctx context.Context, a Attachment) (Attachment, error)
	Get(ctx context.Context, userID, activityID, id uuid.UUID) (Attachment, error)
	Delete(ctx context.Context, userID, activityID, id uuid.UUID) error
}

package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateActivityRequest contains data for logging an activity. Every field is
// optional: type defaults to Note, the date to now, the subject to empty and
// the stage to the contact's latest recorded stage.
type CreateActivityRequest struct {
	Type          *string    `json:"type,omitempty" validate:"omitempty,oneof=Call Meeting Email Note"`
	Subject       *string    `json:"subject,omitempty" validate:"omitempty,max=255"`
	Notes         *string    `json:"notes,omitempty" validate:"omitempty,max=20000"`
	ActivityDate  *time.Time `json:"activity_date,omitempty"`
	PipelineStage *string    `json:"pipeline_stage,omitempty" validate:"omitempty,max=50"`
}

// UpdateActivityRequest is a partial update; omitted fields are kept.
type UpdateActivityRequest struct {
	Type          *string    `json:"type,omitempty" validate:"omitempty,oneof=Call Meeting Email Note"`
	Subject       *string    `json:"subject,omitempty" validate:"omitempty,max=255"`
	Notes         *string    `json:"notes,omitempty" validate:"omitempty,max=20000"`
	ActivityDate  *time.Time `json:"activity_date,omitempty"`
	PipelineStage *string    `json:"pipeline_stage,omitempty" validate:"omitempty,notblank,max=50"`
}

// ListActivitiesRequest filters the cross-contact listing. Type "All" or empty disables the type filter.
type ListActivitiesRequest struct {
	Type   string `form:"type" validate:"omitempty,oneof=All Call Meeting Email Note"`
	Search string `form:"search" validate:"omitempty,max=255"`
}

// AttachmentResponse is the metadata of one attached file.
type AttachmentResponse struct {
	ID               uuid.UUID `json:"id"`
	ActivityID       uuid.UUID `json:"activity_id"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         *string   `json:"mime_type"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// ActivityResponse is one activity with its attachments.
type ActivityResponse struct {
	ID            uuid.UUID            `json:"id"`
	ContactID     uuid.UUID            `json:"contact_id"`
	Type          string               `json:"type"`
	Subject       string               `json:"subject"`
	Notes         *string              `json:"notes"`
	ActivityDate  time.Time            `json:"activity_date"`
	PipelineStage string               `json:"pipeline_stage"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Attachments   []AttachmentResponse `json:"attachments"`
}

// ActivityListResponse is the timeline of one contact.
type ActivityListResponse struct {
	Activities []ActivityResponse `json:"activities"`
	Total      int                `json:"total"`
}

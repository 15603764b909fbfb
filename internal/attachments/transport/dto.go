package transport

import (
	"time"

	"github.com/google/uuid"
)

// AttachmentResponse is the metadata returned after an upload.
type AttachmentResponse struct {
	ID               uuid.UUID `json:"id"`
	ActivityID       uuid.UUID `json:"activity_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"stored_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         *string   `json:"mime_type"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

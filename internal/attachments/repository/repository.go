package repository

import (
	"context"
	"errors"
	"fmt"

	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attachmentNotFoundMessage = "attachment not found"

const (
	attachmentColumns = `id, activity_id, original_filename, stored_filename, file_key, file_size, mime_type, uploaded_at`

	activityOwnedQuery = `
		SELECT EXISTS (
			SELECT 1 FROM activities a
			JOIN contacts c ON c.id = a.contact_id
			WHERE a.id = $1 AND c.user_id = $2
		)`

	insertAttachmentQuery = `
		INSERT INTO attachments (id, activity_id, original_filename, stored_filename, file_key, file_size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + attachmentColumns

	getAttachmentQuery = `
		SELECT att.id, att.activity_id, att.original_filename, att.stored_filename, att.file_key, att.file_size, att.mime_type, att.uploaded_at
		FROM attachments att
		JOIN activities a ON a.id = att.activity_id
		JOIN contacts c ON c.id = a.contact_id
		WHERE att.id = $1 AND att.activity_id = $2 AND c.user_id = $3`

	deleteAttachmentQuery = `
		DELETE FROM attachments att
		USING activities a, contacts c
		WHERE att.id = $1 AND att.activity_id = $2
		  AND a.id = att.activity_id AND c.id = a.contact_id AND c.user_id = $3`
)

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new attachments repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func (r *Repo) ActivityOwnedBy(ctx context.Context, userID, activityID uuid.UUID) (bool, error) {
	var owned bool
	if err := r.pool.QueryRow(ctx, activityOwnedQuery, activityID, userID).Scan(&owned); err != nil {
		return false, fmt.Errorf("check activity ownership: %w", err)
	}
	return owned, nil
}

func (r *Repo) Create(ctx context.Context, a Attachment) (Attachment, error) {
	out, err := scanAttachment(r.pool.QueryRow(ctx, insertAttachmentQuery,
		a.ID, a.ActivityID, a.OriginalFilename, a.StoredFilename, a.FileKey, a.FileSize, a.MimeType,
	))
	if err != nil {
		return Attachment{}, fmt.Errorf("create attachment: %w", err)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, userID, activityID, id uuid.UUID) (Attachment, error) {
	out, err := scanAttachment(r.pool.QueryRow(ctx, getAttachmentQuery, id, activityID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, apperr.NotFound(attachmentNotFoundMessage)
		}
		return Attachment{}, fmt.Errorf("get attachment: %w", err)
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, userID, activityID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteAttachmentQuery, id, activityID, userID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(attachmentNotFoundMessage)
	}
	return nil
}

func scanAttachment(row pgx.Row) (Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.ActivityID, &a.OriginalFilename, &a.StoredFilename, &a.FileKey, &a.FileSize, &a.MimeType, &a.UploadedAt)
	return a, err
}

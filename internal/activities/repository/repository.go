package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activityNotFoundMessage = "activity not found"

const (
	activityColumns       = `id, contact_id, type, subject, notes, activity_date, pipeline_stage, created_at, updated_at`
	activityColumnsPrefix = `a.id, a.contact_id, a.type, a.subject, a.notes, a.activity_date, a.pipeline_stage, a.created_at, a.updated_at`

	insertActivityQuery = `
		INSERT INTO activities (id, contact_id, type, subject, notes, activity_date, pipeline_stage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + activityColumns

	getActivityQuery = `
		SELECT ` + activityColumnsPrefix + `
		FROM activities a
		JOIN contacts c ON c.id = a.contact_id
		WHERE a.id = $1 AND c.user_id = $2`

	contactOwnedQuery = `SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1 AND user_id = $2)`

	listForContactQuery = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE contact_id = $1
		ORDER BY activity_date DESC, created_at DESC, id DESC`

	listForOwnerQuery = `
		SELECT ` + activityColumnsPrefix + `
		FROM activities a
		JOIN contacts c ON c.id = a.contact_id
		WHERE c.user_id = $1
		  AND ($2 = '' OR a.type = $2)
		  AND ($3 = '' OR LOWER(a.subject) LIKE $3 OR LOWER(COALESCE(a.notes, '')) LIKE $3)
		ORDER BY a.activity_date DESC, a.created_at DESC, a.id DESC`

	latestForContactQuery = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE contact_id = $1
		ORDER BY activity_date DESC, created_at DESC, id DESC
		LIMIT 1`

	listAttachmentsQuery = `
		SELECT id, activity_id, original_filename, file_size, mime_type, uploaded_at
		FROM attachments
		WHERE activity_id = ANY($1)
		ORDER BY uploaded_at ASC, id ASC`

	listAttachmentKeysQuery = `SELECT file_key FROM attachments WHERE activity_id = $1`

	updateActivityQuery = `
		UPDATE activities SET
			type = COALESCE($3, type),
			subject = COALESCE($4, subject),
			notes = COALESCE($5, notes),
			activity_date = COALESCE($6, activity_date),
			pipeline_stage = COALESCE($7, pipeline_stage),
			updated_at = now()
		WHERE id = $1
		  AND contact_id IN (SELECT id FROM contacts WHERE user_id = $2)
		RETURNING ` + activityColumns

	deleteActivityQuery = `
		DELETE FROM activities
		WHERE id = $1
		  AND contact_id IN (SELECT id FROM contacts WHERE user_id = $2)`
)

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new activities repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, p CreateParams) (Activity, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, insertActivityQuery,
		p.ID, p.ContactID, p.Type, p.Subject, p.Notes, p.ActivityDate, p.PipelineStage,
	))
	if err != nil {
		return Activity{}, fmt.Errorf("create activity: %w", err)
	}
	return a, nil
}

func (r *Repo) GetByID(ctx context.Context, userID, id uuid.UUID) (Activity, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, getActivityQuery, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activity{}, apperr.NotFound(activityNotFoundMessage)
		}
		return Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

func (r *Repo) ContactOwnedBy(ctx context.Context, userID, contactID uuid.UUID) (bool, error) {
	var owned bool
	if err := r.pool.QueryRow(ctx, contactOwnedQuery, contactID, userID).Scan(&owned); err != nil {
		return false, fmt.Errorf("check contact ownership: %w", err)
	}
	return owned, nil
}

func (r *Repo) ListForContact(ctx context.Context, contactID uuid.UUID) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, listForContactQuery, contactID)
	if err != nil {
		return nil, fmt.Errorf("list contact activities: %w", err)
	}
	return collectActivities(rows)
}

func (r *Repo) ListForOwner(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, listForOwnerQuery, userID, filter.Type, LikePattern(filter.Search))
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return collectActivities(rows)
}

func (r *Repo) LatestForContact(ctx context.Context, contactID uuid.UUID) (*Activity, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, latestForContactQuery, contactID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest activity: %w", err)
	}
	return &a, nil
}

func (r *Repo) ListAttachments(ctx context.Context, activityIDs []uuid.UUID) ([]Attachment, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, listAttachmentsQuery, activityIDs)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	out := make([]Attachment, 0)
	for rows.Next() {
		var att Attachment
		if err := rows.Scan(&att.ID, &att.ActivityID, &att.OriginalFilename, &att.FileSize, &att.MimeType, &att.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return out, nil
}

func (r *Repo) ListAttachmentKeys(ctx context.Context, activityID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, listAttachmentKeysQuery, activityID)
	if err != nil {
		return nil, fmt.Errorf("list activity attachment keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect activity attachment keys: %w", err)
	}
	return keys, nil
}

func (r *Repo) Update(ctx context.Context, userID, id uuid.UUID, p UpdateParams) (Activity, error) {
	a, err := scanActivity(r.pool.QueryRow(ctx, updateActivityQuery,
		id, userID, p.Type, p.Subject, p.Notes, p.ActivityDate, p.PipelineStage,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activity{}, apperr.NotFound(activityNotFoundMessage)
		}
		return Activity{}, fmt.Errorf("update activity: %w", err)
	}
	return a, nil
}

func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteActivityQuery, id, userID)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(activityNotFoundMessage)
	}
	return nil
}

// LikePattern turns a search term into a lowercase substring LIKE pattern.
// LIKE wildcards in the term match literally. An empty term yields "".
func LikePattern(search string) string {
	term := strings.TrimSpace(search)
	if term == "" {
		return ""
	}
	term = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(term))
	return "%" + term + "%"
}

func collectActivities(rows pgx.Rows) ([]Activity, error) {
	defer rows.Close()

	out := make([]Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

func scanActivity(row pgx.Row) (Activity, error) {
	var a Activity
	err := row.Scan(
		&a.ID, &a.ContactID, &a.Type, &a.Subject, &a.Notes,
		&a.ActivityDate, &a.PipelineStage, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

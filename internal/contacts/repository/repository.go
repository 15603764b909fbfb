package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm_backend/internal/pipeline"
	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const contactNotFoundMessage = "contact not found"

const (
	contactColumns = `id, user_id, name, email, phone, company, job_title, website, notes, pipeline_stage, created_at, updated_at`

	insertContactQuery = `
		INSERT INTO contacts (id, user_id, name, email, phone, company, job_title, website, notes, pipeline_stage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + contactColumns

	getContactQuery = `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id = $1 AND user_id = $2`

	listCandidatesQuery = `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1
		  AND ($2 = '' OR LOWER(name) LIKE $2 OR LOWER(email) LIKE $2 OR LOWER(COALESCE(company, '')) LIKE $2)
		ORDER BY created_at DESC, id DESC`

	listActivitySnapshotsQuery = `
		SELECT id, contact_id, type, activity_date, pipeline_stage, created_at
		FROM activities
		WHERE contact_id = ANY($1)`

	listAttachmentKeysQuery = `
		SELECT att.file_key
		FROM attachments att
		JOIN activities a ON a.id = att.activity_id
		JOIN contacts c ON c.id = a.contact_id
		WHERE c.id = $1 AND c.user_id = $2`

	updateContactQuery = `
		UPDATE contacts SET
			name = COALESCE($3, name),
			email = COALESCE($4, email),
			phone = COALESCE($5, phone),
			company = COALESCE($6, company),
			job_title = COALESCE($7, job_title),
			website = COALESCE($8, website),
			notes = COALESCE($9, notes),
			pipeline_stage = COALESCE($10, pipeline_stage),
			updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + contactColumns

	deleteContactQuery = `DELETE FROM contacts WHERE id = $1 AND user_id = $2`
)

// Repo implements Repository with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new contacts repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, p CreateParams) (Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx, insertContactQuery,
		p.ID, p.UserID, p.Name, p.Email, p.Phone, p.Company, p.JobTitle, p.Website, p.Notes, p.PipelineStage,
	))
	if err != nil {
		return Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return c, nil
}

func (r *Repo) GetByID(ctx context.Context, userID, id uuid.UUID) (Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx, getContactQuery, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, apperr.NotFound(contactNotFoundMessage)
		}
		return Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *Repo) ListCandidates(ctx context.Context, userID uuid.UUID, search string) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, listCandidatesQuery, userID, LikePattern(search))
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

func (r *Repo) ListActivitySnapshots(ctx context.Context, contactIDs []uuid.UUID) ([]pipeline.ActivitySnapshot, error) {
	if len(contactIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, listActivitySnapshotsQuery, contactIDs)
	if err != nil {
		return nil, fmt.Errorf("list activity snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]pipeline.ActivitySnapshot, 0, len(contactIDs))
	for rows.Next() {
		var s pipeline.ActivitySnapshot
		if err := rows.Scan(&s.ID, &s.ContactID, &s.Type, &s.ActivityDate, &s.PipelineStage, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *Repo) ListAttachmentKeys(ctx context.Context, userID, id uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, listAttachmentKeysQuery, id, userID)
	if err != nil {
		return nil, fmt.Errorf("list contact attachment keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect contact attachment keys: %w", err)
	}
	return keys, nil
}

func (r *Repo) Update(ctx context.Context, userID, id uuid.UUID, p UpdateParams) (Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx, updateContactQuery,
		id, userID, p.Name, p.Email, p.Phone, p.Company, p.JobTitle, p.Website, p.Notes, p.PipelineStage,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, apperr.NotFound(contactNotFoundMessage)
		}
		return Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteContactQuery, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(contactNotFoundMessage)
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

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.JobTitle,
		&c.Website, &c.Notes, &c.PipelineStage, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

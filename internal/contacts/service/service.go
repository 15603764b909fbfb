package service

import (
	"context"

	"crm_backend/internal/contacts/repository"
	"crm_backend/internal/contacts/transport"
	"crm_backend/internal/events"
	"crm_backend/internal/pipeline"
	"crm_backend/platform/logger"
	"crm_backend/platform/phone"
	"crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Options configure the contacts service.
type Options struct {
	// PhoneRegion is the region assumed for phone numbers without a country code.
	PhoneRegion string
	// AttachmentBucket names the bucket holding activity attachments, so
	// deleting a contact can release its objects.
	AttachmentBucket string
}

// Service provides contact registry operations and pipeline statistics.
type Service struct {
	repo       repository.Repository
	aggregator *pipeline.Aggregator
	bus        events.Bus
	log        *logger.Logger
	opts       Options
}

// New creates a contacts service.
func New(repo repository.Repository, aggregator *pipeline.Aggregator, bus events.Bus, log *logger.Logger, opts Options) *Service {
	return &Service{repo: repo, aggregator: aggregator, bus: bus, log: log, opts: opts}
}

// Create stores a new contact owned by userID. A new contact has no
// activities, so its current stage is Lead.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req transport.CreateContactRequest) (transport.ContactResponse, error) {
	stage := pipeline.DefaultStage
	if req.PipelineStage != nil && *req.PipelineStage != "" {
		stage = *req.PipelineStage
	}

	contact, err := s.repo.Create(ctx, repository.CreateParams{
		ID:            uuid.Must(uuid.NewV7()),
		UserID:        userID,
		Name:          sanitize.Text(req.Name),
		Email:         req.Email,
		Phone:         s.normalizePhone(req.Phone),
		Company:       sanitize.TextPtr(req.Company),
		JobTitle:      sanitize.TextPtr(req.JobTitle),
		Website:       req.Website,
		Notes:         sanitize.TextPtr(req.Notes),
		PipelineStage: stage,
	})
	if err != nil {
		return transport.ContactResponse{}, err
	}

	s.log.Info("contact created", "contactId", contact.ID, "userId", userID)
	return toResponse(contact, pipeline.DefaultStage), nil
}

// Get returns one contact with its current stage.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (transport.ContactResponse, error) {
	contact, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return transport.ContactResponse{}, err
	}
	snapshots, err := s.snapshots(ctx, []repository.Contact{contact})
	if err != nil {
		return transport.ContactResponse{}, err
	}
	return toResponse(contact, snapshots[0].CurrentStage()), nil
}

// List returns one page of the user's contacts matching search, filtered by
// current stage. Filtering happens before pagination, so Total counts the
// filtered set.
func (s *Service) List(ctx context.Context, userID uuid.UUID, req transport.ListContactsRequest) (transport.ContactListResponse, error) {
	contacts, snapshots, err := s.candidates(ctx, userID, req.Search)
	if err != nil {
		return transport.ContactListResponse{}, err
	}

	rows := make([]transport.ContactResponse, len(contacts))
	for i, c := range contacts {
		rows[i] = toResponse(c, snapshots[i].CurrentStage())
	}

	filtered := pipeline.FilterByStage(rows, func(r transport.ContactResponse) string {
		return r.CurrentPipelineStage
	}, pipeline.ParseStageFilter(req.Stage))

	page := pipeline.Paginate(filtered, req.Page, req.Limit)
	items := page.Items
	if items == nil {
		items = []transport.ContactResponse{}
	}

	return transport.ContactListResponse{
		Contacts: items,
		Total:    page.Total,
		Page:     page.Page,
		Limit:    page.Limit,
		HasMore:  page.HasMore,
	}, nil
}

// PipelineStats counts the user's contacts matching search by current stage.
func (s *Service) PipelineStats(ctx context.Context, userID uuid.UUID, search string) (transport.PipelineStatsResponse, error) {
	_, snapshots, err := s.candidates(ctx, userID, search)
	if err != nil {
		return transport.PipelineStatsResponse{}, err
	}
	return s.aggregator.PipelineStats(snapshots), nil
}

// FilterCounts returns stage and activity type counts for the user's contacts matching search.
func (s *Service) FilterCounts(ctx context.Context, userID uuid.UUID, search string) (transport.FilterCountsResponse, error) {
	_, snapshots, err := s.candidates(ctx, userID, search)
	if err != nil {
		return transport.FilterCountsResponse{}, err
	}
	return s.aggregator.FilterCounts(snapshots), nil
}

// Update applies a partial update to a contact.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, req transport.UpdateContactRequest) (transport.ContactResponse, error) {
	contact, err := s.repo.Update(ctx, userID, id, repository.UpdateParams{
		Name:          sanitize.TextPtr(req.Name),
		Email:         req.Email,
		Phone:         s.normalizePhone(req.Phone),
		Company:       sanitize.TextPtr(req.Company),
		JobTitle:      sanitize.TextPtr(req.JobTitle),
		Website:       req.Website,
		Notes:         sanitize.TextPtr(req.Notes),
		PipelineStage: req.PipelineStage,
	})
	if err != nil {
		return transport.ContactResponse{}, err
	}

	snapshots, err := s.snapshots(ctx, []repository.Contact{contact})
	if err != nil {
		return transport.ContactResponse{}, err
	}

	s.log.Info("contact updated", "contactId", id, "userId", userID)
	return toResponse(contact, snapshots[0].CurrentStage()), nil
}

// Delete removes a contact with its activities and attachments. Stored
// attachment objects are handed off for purging.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, userID, id); err != nil {
		return err
	}

	keys, err := s.repo.ListAttachmentKeys(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	if len(keys) > 0 && s.bus != nil {
		s.bus.Publish(ctx, events.AttachmentObjectsOrphaned{
			BaseEvent: events.NewBaseEvent(),
			UserID:    userID,
			Bucket:    s.opts.AttachmentBucket,
			Keys:      keys,
		})
	}

	s.log.Info("contact deleted", "contactId", id, "userId", userID, "attachments", len(keys))
	return nil
}

// candidates loads the user's contacts matching search together with their
// complete activity sets. The two slices are index-aligned.
func (s *Service) candidates(ctx context.Context, userID uuid.UUID, search string) ([]repository.Contact, []pipeline.ContactSnapshot, error) {
	contacts, err := s.repo.ListCandidates(ctx, userID, search)
	if err != nil {
		return nil, nil, err
	}
	snapshots, err := s.snapshots(ctx, contacts)
	if err != nil {
		return nil, nil, err
	}
	return contacts, snapshots, nil
}

func (s *Service) snapshots(ctx context.Context, contacts []repository.Contact) ([]pipeline.ContactSnapshot, error) {
	if len(contacts) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}

	activities, err := s.repo.ListActivitySnapshots(ctx, ids)
	if err != nil {
		return nil, err
	}

	byContact := make(map[uuid.UUID][]pipeline.ActivitySnapshot, len(contacts))
	for _, a := range activities {
		byContact[a.ContactID] = append(byContact[a.ContactID], a)
	}

	out := make([]pipeline.ContactSnapshot, len(contacts))
	for i, c := range contacts {
		out[i] = pipeline.ContactSnapshot{ContactID: c.ID, Activities: byContact[c.ID]}
	}
	return out, nil
}

func (s *Service) normalizePhone(p *string) *string {
	if p == nil {
		return nil
	}
	normalized := phone.NormalizeE164(sanitize.Text(*p), s.opts.PhoneRegion)
	return &normalized
}

func toResponse(c repository.Contact, currentStage string) transport.ContactResponse {
	return transport.ContactResponse{
		ID:                   c.ID,
		UserID:               c.UserID,
		Name:                 c.Name,
		Email:                c.Email,
		Phone:                c.Phone,
		Company:              c.Company,
		JobTitle:             c.JobTitle,
		Website:              c.Website,
		Notes:                c.Notes,
		PipelineStage:        c.PipelineStage,
		CurrentPipelineStage: currentStage,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

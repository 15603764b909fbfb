package service

import (
	"context"
	"time"

	"crm_backend/internal/activities/repository"
	"crm_backend/internal/activities/transport"
	"crm_backend/internal/events"
	"crm_backend/internal/pipeline"
	"crm_backend/platform/apperr"
	"crm_backend/platform/logger"
	"crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const contactNotFoundMessage = "contact not found"

// Service records and reads the activity log.
type Service struct {
	repo             repository.Repository
	bus              events.Bus
	log              *logger.Logger
	attachmentBucket string
	now              func() time.Time
}

// New creates an activities service. attachmentBucket names the bucket whose
// objects are released when an activity is deleted.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger, attachmentBucket string) *Service {
	return &Service{
		repo:             repo,
		bus:              bus,
		log:              log,
		attachmentBucket: attachmentBucket,
		now:              time.Now,
	}
}

// Create logs an activity against a contact owned by userID. Without an
// explicit stage the new activity takes the stage of the contact's latest
// stored activity, falling back to Lead.
func (s *Service) Create(ctx context.Context, userID, contactID uuid.UUID, req transport.CreateActivityRequest) (transport.ActivityResponse, error) {
	if err := s.requireContact(ctx, userID, contactID); err != nil {
		return transport.ActivityResponse{}, err
	}

	activityType := pipeline.DefaultActivityType
	if req.Type != nil && *req.Type != "" {
		activityType = *req.Type
	}
	activityDate := s.now().UTC()
	if req.ActivityDate != nil {
		activityDate = req.ActivityDate.UTC()
	}
	subject := ""
	if req.Subject != nil {
		subject = sanitize.Text(*req.Subject)
	}
	explicit := ""
	if req.PipelineStage != nil {
		explicit = *req.PipelineStage
	}

	var latest *pipeline.ActivitySnapshot
	if explicit == "" {
		stored, err := s.repo.LatestForContact(ctx, contactID)
		if err != nil {
			return transport.ActivityResponse{}, err
		}
		if stored != nil {
			snap := stored.Snapshot()
			latest = &snap
		}
	}
	stage := pipeline.ResolveCreationStage(explicit, latest)

	activity, err := s.repo.Create(ctx, repository.CreateParams{
		ID:            uuid.Must(uuid.NewV7()),
		ContactID:     contactID,
		Type:          activityType,
		Subject:       subject,
		Notes:         req.Notes,
		ActivityDate:  activityDate,
		PipelineStage: stage,
	})
	if err != nil {
		return transport.ActivityResponse{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ActivityLogged{
			BaseEvent:     events.NewBaseEvent(),
			UserID:        userID,
			ContactID:     contactID,
			ActivityID:    activity.ID,
			Type:          activity.Type,
			PipelineStage: activity.PipelineStage,
			Inherited:     explicit == "",
		})
	}

	s.log.Info("activity logged", "activityId", activity.ID, "contactId", contactID, "stage", stage)
	return toResponse(activity, nil), nil
}

// ListForContact returns the contact's timeline, most recent first.
func (s *Service) ListForContact(ctx context.Context, userID, contactID uuid.UUID) (transport.ActivityListResponse, error) {
	if err := s.requireContact(ctx, userID, contactID); err != nil {
		return transport.ActivityListResponse{}, err
	}

	activities, err := s.repo.ListForContact(ctx, contactID)
	if err != nil {
		return transport.ActivityListResponse{}, err
	}
	out, err := s.withAttachments(ctx, activities)
	if err != nil {
		return transport.ActivityListResponse{}, err
	}
	return transport.ActivityListResponse{Activities: out, Total: len(out)}, nil
}

// ListAll returns activities across all of the user's contacts.
func (s *Service) ListAll(ctx context.Context, userID uuid.UUID, req transport.ListActivitiesRequest) ([]transport.ActivityResponse, error) {
	filter := repository.ListFilter{Type: req.Type, Search: req.Search}
	if filter.Type == pipeline.StageFilterAll {
		filter.Type = ""
	}

	activities, err := s.repo.ListForOwner(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	return s.withAttachments(ctx, activities)
}

// Get returns one activity.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (transport.ActivityResponse, error) {
	activity, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return transport.ActivityResponse{}, err
	}
	out, err := s.withAttachments(ctx, []repository.Activity{activity})
	if err != nil {
		return transport.ActivityResponse{}, err
	}
	return out[0], nil
}

// Update applies a partial update. Changing the stage or date of an activity
// changes its contact's current stage accordingly.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, req transport.UpdateActivityRequest) (transport.ActivityResponse, error) {
	params := repository.UpdateParams{
		Type:          req.Type,
		Subject:       sanitize.TextPtr(req.Subject),
		Notes:         req.Notes,
		PipelineStage: req.PipelineStage,
	}
	if req.ActivityDate != nil {
		date := req.ActivityDate.UTC()
		params.ActivityDate = &date
	}

	activity, err := s.repo.Update(ctx, userID, id, params)
	if err != nil {
		return transport.ActivityResponse{}, err
	}
	out, err := s.withAttachments(ctx, []repository.Activity{activity})
	if err != nil {
		return transport.ActivityResponse{}, err
	}

	s.log.Info("activity updated", "activityId", id, "userId", userID)
	return out[0], nil
}

// Delete removes an activity and its attachment rows. Stored objects are
// handed off for purging.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, userID, id); err != nil {
		return err
	}

	keys, err := s.repo.ListAttachmentKeys(ctx, id)
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
			Bucket:    s.attachmentBucket,
			Keys:      keys,
		})
	}

	s.log.Info("activity deleted", "activityId", id, "userId", userID, "attachments", len(keys))
	return nil
}

func (s *Service) requireContact(ctx context.Context, userID, contactID uuid.UUID) error {
	owned, err := s.repo.ContactOwnedBy(ctx, userID, contactID)
	if err != nil {
		return err
	}
	if !owned {
		return apperr.NotFound(contactNotFoundMessage)
	}
	return nil
}

func (s *Service) withAttachments(ctx context.Context, activities []repository.Activity) ([]transport.ActivityResponse, error) {
	ids := make([]uuid.UUID, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
	}

	attachments, err := s.repo.ListAttachments(ctx, ids)
	if err != nil {
		return nil, err
	}
	byActivity := make(map[uuid.UUID][]repository.Attachment, len(activities))
	for _, att := range attachments {
		byActivity[att.ActivityID] = append(byActivity[att.ActivityID], att)
	}

	out := make([]transport.ActivityResponse, len(activities))
	for i, a := range activities {
		out[i] = toResponse(a, byActivity[a.ID])
	}
	return out, nil
}

func toResponse(a repository.Activity, attachments []repository.Attachment) transport.ActivityResponse {
	resp := transport.ActivityResponse{
		ID:            a.ID,
		ContactID:     a.ContactID,
		Type:          a.Type,
		Subject:       a.Subject,
		Notes:         a.Notes,
		ActivityDate:  a.ActivityDate,
		PipelineStage: a.PipelineStage,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		Attachments:   make([]transport.AttachmentResponse, 0, len(attachments)),
	}
	for _, att := range attachments {
		resp.Attachments = append(resp.Attachments, transport.AttachmentResponse{
			ID:               att.ID,
			ActivityID:       att.ActivityID,
			OriginalFilename: att.OriginalFilename,
			FileSize:         att.FileSize,
			MimeType:         att.MimeType,
			UploadedAt:       att.UploadedAt,
		})
	}
	return resp
}

package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"crm_backend/internal/activities/repository"
	"crm_backend/internal/activities/transport"
	"crm_backend/internal/events"
	apphttp "crm_backend/internal/http"
	"crm_backend/internal/pipeline"
	"crm_backend/platform/apperr"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu          sync.Mutex
	owners      map[uuid.UUID]uuid.UUID
	activities  []repository.Activity
	attachments []repository.Attachment
	keys        map[uuid.UUID][]string
	clock       time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		owners: make(map[uuid.UUID]uuid.UUID),
		keys:   make(map[uuid.UUID][]string),
		clock:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) owns(userID, contactID uuid.UUID) bool {
	owner, ok := m.owners[contactID]
	return ok && owner == userID
}

func (m *memoryRepo) Create(_ context.Context, p repository.CreateParams) (repository.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	a := repository.Activity{
		ID: p.ID, ContactID: p.ContactID, Type: p.Type, Subject: p.Subject, Notes: p.Notes,
		ActivityDate: p.ActivityDate, PipelineStage: p.PipelineStage, CreatedAt: m.clock, UpdatedAt: m.clock,
	}
	m.activities = append(m.activities, a)
	return a, nil
}

func (m *memoryRepo) GetByID(_ context.Context, userID, id uuid.UUID) (repository.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.activities {
		if a.ID == id && m.owns(userID, a.ContactID) {
			return a, nil
		}
	}
	return repository.Activity{}, apperr.NotFound("activity not found")
}

func (m *memoryRepo) ContactOwnedBy(_ context.Context, userID, contactID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owns(userID, contactID), nil
}

func (m *memoryRepo) sorted(keep func(repository.Activity) bool) []repository.Activity {
	out := make([]repository.Activity, 0)
	for _, a := range m.activities {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ActivityDate.Equal(b.ActivityDate) {
			return a.ActivityDate.After(b.ActivityDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})
	return out
}

func (m *memoryRepo) ListForContact(_ context.Context, contactID uuid.UUID) ([]repository.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(a repository.Activity) bool { return a.ContactID == contactID }), nil
}

func (m *memoryRepo) ListForOwner(_ context.Context, userID uuid.UUID, f repository.ListFilter) ([]repository.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(f.Search))
	return m.sorted(func(a repository.Activity) bool {
		if !m.owns(userID, a.ContactID) {
			return false
		}
		if f.Type != "" && a.Type != f.Type {
			return false
		}
		if term == "" {
			return true
		}
		notes := ""
		if a.Notes != nil {
			notes = *a.Notes
		}
		return strings.Contains(strings.ToLower(a.Subject), term) || strings.Contains(strings.ToLower(notes), term)
	}), nil
}

func (m *memoryRepo) LatestForContact(ctx context.Context, contactID uuid.UUID) (*repository.Activity, error) {
	list, _ := m.ListForContact(ctx, contactID)
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (m *memoryRepo) ListAttachments(_ context.Context, ids []uuid.UUID) ([]repository.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Attachment
	for _, att := range m.attachments {
		for _, id := range ids {
			if att.ActivityID == id {
				out = append(out, att)
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) ListAttachmentKeys(_ context.Context, id uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[id], nil
}

func (m *memoryRepo) Update(_ context.Context, userID, id uuid.UUID, p repository.UpdateParams) (repository.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.activities {
		if a.ID != id || !m.owns(userID, a.ContactID) {
			continue
		}
		if p.Type != nil {
			a.Type = *p.Type
		}
		if p.Subject != nil {
			a.Subject = *p.Subject
		}
		if p.Notes != nil {
			a.Notes = p.Notes
		}
		if p.ActivityDate != nil {
			a.ActivityDate = *p.ActivityDate
		}
		if p.PipelineStage != nil {
			a.PipelineStage = *p.PipelineStage
		}
		m.activities[i] = a
		return a, nil
	}
	return repository.Activity{}, apperr.NotFound("activity not found")
}

func (m *memoryRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.activities {
		if a.ID == id && m.owns(userID, a.ContactID) {
			m.activities = append(m.activities[:i], m.activities[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("activity not found")
}

type fixture struct {
	repo    *memoryRepo
	bus     *events.InMemoryBus
	engine  *gin.Engine
	owner   uuid.UUID
	contact uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemoryRepo()
	owner, contact := uuid.New(), uuid.New()
	repo.owners[contact] = owner

	bus := events.NewInMemoryBus(logger.Discard())
	module := NewModuleWithRepository(repo, bus, validator.New(), logger.Discard(), "attachments")

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.MustParse(c.GetHeader("X-Test-User")))
		c.Next()
	})
	module.RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: v1, Protected: protected})

	return &fixture{repo: repo, bus: bus, engine: engine, owner: owner, contact: contact}
}

func (f *fixture) doAs(t *testing.T, user uuid.UUID, method, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user.String())
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func (f *fixture) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	return f.doAs(t, f.owner, method, path, body, out)
}

func (f *fixture) log(t *testing.T, body string) transport.ActivityResponse {
	t.Helper()
	var created transport.ActivityResponse
	code := f.do(t, http.MethodPost, "/api/v1/contacts/"+f.contact.String()+"/activities", body, &created)
	require.Equal(t, http.StatusCreated, code)
	return created
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	before := time.Now().UTC().Add(-time.Second)

	created := f.log(t, `{}`)

	assert.Equal(t, pipeline.ActivityNote, created.Type)
	assert.Equal(t, "", created.Subject)
	assert.Equal(t, pipeline.StageLead, created.PipelineStage)
	assert.True(t, created.ActivityDate.After(before))
	assert.Empty(t, created.Attachments)
}

func TestCreateInheritsStageFromStoredLatest(t *testing.T) {
	f := newFixture(t)

	f.log(t, `{"type":"Call","activity_date":"2025-02-10T00:00:00Z","pipeline_stage":"Proposal"}`)
	f.log(t, `{"type":"Email","activity_date":"2025-02-01T00:00:00Z","pipeline_stage":"Client"}`)

	inherited := f.log(t, `{"type":"Note","activity_date":"2025-01-01T00:00:00Z"}`)
	assert.Equal(t, pipeline.StageProposal, inherited.PipelineStage)

	empty := f.log(t, `{"pipeline_stage":""}`)
	assert.Equal(t, pipeline.StageProposal, empty.PipelineStage)
}

func TestCreateKeepsExplicitStageVerbatim(t *testing.T) {
	f := newFixture(t)

	created := f.log(t, `{"pipeline_stage":"Prospect"}`)
	assert.Equal(t, "Prospect", created.PipelineStage)

	next := f.log(t, `{}`)
	assert.Equal(t, "Prospect", next.PipelineStage)
}

func TestCreatePublishesActivityLogged(t *testing.T) {
	f := newFixture(t)
	logged := make(chan events.ActivityLogged, 2)
	f.bus.Subscribe(events.ActivityLogged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		logged <- e.(events.ActivityLogged)
		return nil
	}))

	created := f.log(t, `{"type":"Meeting","pipeline_stage":"Qualified"}`)
	evt := <-logged
	assert.Equal(t, created.ID, evt.ActivityID)
	assert.Equal(t, f.contact, evt.ContactID)
	assert.Equal(t, pipeline.StageQualified, evt.PipelineStage)
	assert.False(t, evt.Inherited)

	f.log(t, `{}`)
	evt = <-logged
	assert.True(t, evt.Inherited)
	assert.Equal(t, pipeline.StageQualified, evt.PipelineStage)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/contacts/" + f.contact.String() + "/activities"

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, path, `{"type":"Fax"}`, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, path, `{"activity_date":"yesterday"}`, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/contacts/nope/activities", `{}`, nil))
}

func TestActivitiesRequireOwnedContact(t *testing.T) {
	f := newFixture(t)
	created := f.log(t, `{"subject":"kickoff"}`)
	stranger := uuid.New()

	path := "/api/v1/contacts/" + f.contact.String() + "/activities"
	assert.Equal(t, http.StatusNotFound, f.doAs(t, stranger, http.MethodPost, path, `{}`, nil))
	assert.Equal(t, http.StatusNotFound, f.doAs(t, stranger, http.MethodGet, path, "", nil))
	assert.Equal(t, http.StatusNotFound, f.doAs(t, stranger, http.MethodGet, "/api/v1/activities/"+created.ID.String(), "", nil))
	assert.Equal(t, http.StatusNotFound, f.doAs(t, stranger, http.MethodPut, "/api/v1/activities/"+created.ID.String(), `{"subject":"x"}`, nil))
	assert.Equal(t, http.StatusNotFound, f.doAs(t, stranger, http.MethodDelete, "/api/v1/activities/"+created.ID.String(), "", nil))

	var all []transport.ActivityResponse
	require.Equal(t, http.StatusOK, f.doAs(t, stranger, http.MethodGet, "/api/v1/activities", "", &all))
	assert.Empty(t, all)
}

func TestListForContactIsNewestFirstWithAttachments(t *testing.T) {
	f := newFixture(t)
	older := f.log(t, `{"activity_date":"2025-01-01T00:00:00Z"}`)
	newer := f.log(t, `{"activity_date":"2025-02-01T00:00:00Z"}`)
	f.repo.attachments = append(f.repo.attachments, repository.Attachment{
		ID: uuid.New(), ActivityID: older.ID, OriginalFilename: "proposal.pdf", FileSize: 42,
	})

	var list transport.ActivityListResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/contacts/"+f.contact.String()+"/activities", "", &list))
	require.Equal(t, 2, list.Total)
	assert.Equal(t, newer.ID, list.Activities[0].ID)
	assert.Equal(t, older.ID, list.Activities[1].ID)
	require.Len(t, list.Activities[1].Attachments, 1)
	assert.Equal(t, "proposal.pdf", list.Activities[1].Attachments[0].OriginalFilename)
}

func TestListAllFiltersByTypeAndSearch(t *testing.T) {
	f := newFixture(t)
	f.log(t, `{"type":"Call","subject":"Intro call"}`)
	f.log(t, `{"type":"Email","subject":"Follow up","notes":"sent the PRICING sheet"}`)
	f.log(t, `{"type":"Call","subject":"Pricing review"}`)

	var all []transport.ActivityResponse
	f.do(t, http.MethodGet, "/api/v1/activities?type=All", "", &all)
	assert.Len(t, all, 3)

	f.do(t, http.MethodGet, "/api/v1/activities?type=Call", "", &all)
	assert.Len(t, all, 2)

	f.do(t, http.MethodGet, "/api/v1/activities?search=pricing", "", &all)
	assert.Len(t, all, 2)

	f.do(t, http.MethodGet, "/api/v1/activities?type=Call&search=pricing", "", &all)
	require.Len(t, all, 1)
	assert.Equal(t, "Pricing review", all[0].Subject)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/activities?type=Fax", "", nil))
}

func TestUpdateChangesStage(t *testing.T) {
	f := newFixture(t)
	created := f.log(t, `{"subject":"first"}`)

	var updated transport.ActivityResponse
	code := f.do(t, http.MethodPut, "/api/v1/activities/"+created.ID.String(), `{"pipeline_stage":"Lost Proposal","subject":"<b>lost</b>"}`, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, pipeline.StageLostProposal, updated.PipelineStage)
	assert.Equal(t, "lost", updated.Subject)

	next := f.log(t, `{}`)
	assert.Equal(t, pipeline.StageLostProposal, next.PipelineStage)
}

func TestDeleteReleasesAttachmentObjects(t *testing.T) {
	f := newFixture(t)
	created := f.log(t, `{}`)
	f.repo.keys[created.ID] = []string{"owner/activity/file.pdf"}

	orphaned := make(chan events.AttachmentObjectsOrphaned, 1)
	f.bus.Subscribe(events.AttachmentObjectsOrphaned{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		orphaned <- e.(events.AttachmentObjectsOrphaned)
		return nil
	}))

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/activities/"+created.ID.String(), "", nil))
	evt := <-orphaned
	assert.Equal(t, "attachments", evt.Bucket)
	assert.Equal(t, []string{"owner/activity/file.pdf"}, evt.Keys)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/activities/"+created.ID.String(), "", nil))
}

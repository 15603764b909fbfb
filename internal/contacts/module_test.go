package contacts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"crm_backend/internal/contacts/repository"
	"crm_backend/internal/contacts/service"
	"crm_backend/internal/contacts/transport"
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
	contacts    []repository.Contact
	activities  []pipeline.ActivitySnapshot
	attachments map[uuid.UUID][]string
	clock       time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		attachments: make(map[uuid.UUID][]string),
		clock:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) Create(_ context.Context, p repository.CreateParams) (repository.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	c := repository.Contact{
		ID: p.ID, UserID: p.UserID, Name: p.Name, Email: p.Email, Phone: p.Phone,
		Company: p.Company, JobTitle: p.JobTitle, Website: p.Website, Notes: p.Notes,
		PipelineStage: p.PipelineStage, CreatedAt: m.clock, UpdatedAt: m.clock,
	}
	m.contacts = append(m.contacts, c)
	return c, nil
}

func (m *memoryRepo) GetByID(_ context.Context, userID, id uuid.UUID) (repository.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID == id && c.UserID == userID {
			return c, nil
		}
	}
	return repository.Contact{}, apperr.NotFound("contact not found")
}

func (m *memoryRepo) ListCandidates(_ context.Context, userID uuid.UUID, search string) ([]repository.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]repository.Contact, 0)
	for _, c := range m.contacts {
		if c.UserID != userID {
			continue
		}
		company := ""
		if c.Company != nil {
			company = *c.Company
		}
		if term == "" ||
			strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.Email), term) ||
			strings.Contains(strings.ToLower(company), term) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) ListActivitySnapshots(_ context.Context, ids []uuid.UUID) ([]pipeline.ActivitySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []pipeline.ActivitySnapshot
	for _, a := range m.activities {
		if wanted[a.ContactID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListAttachmentKeys(_ context.Context, _ uuid.UUID, id uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attachments[id], nil
}

func (m *memoryRepo) Update(_ context.Context, userID, id uuid.UUID, p repository.UpdateParams) (repository.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.contacts {
		if c.ID != id || c.UserID != userID {
			continue
		}
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.Email != nil {
			c.Email = *p.Email
		}
		if p.Company != nil {
			c.Company = p.Company
		}
		if p.Phone != nil {
			c.Phone = p.Phone
		}
		if p.PipelineStage != nil {
			c.PipelineStage = *p.PipelineStage
		}
		m.contacts[i] = c
		return c, nil
	}
	return repository.Contact{}, apperr.NotFound("contact not found")
}

func (m *memoryRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.contacts {
		if c.ID == id && c.UserID == userID {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("contact not found")
}

func (m *memoryRepo) addActivity(contactID uuid.UUID, typ, stage string, date time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, pipeline.ActivitySnapshot{
		ID: uuid.Must(uuid.NewV7()), ContactID: contactID, Type: typ,
		ActivityDate: date, PipelineStage: stage, CreatedAt: date,
	})
}

type fixture struct {
	repo   *memoryRepo
	module *Module
	bus    *events.InMemoryBus
	engine *gin.Engine
	owner  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemoryRepo()
	bus := events.NewInMemoryBus(logger.Discard())
	module := NewModuleWithRepository(repo, pipeline.NewAggregator(pipeline.DefaultTaxonomy()), bus,
		validator.New(), logger.Discard(), service.Options{PhoneRegion: "US", AttachmentBucket: "attachments"})

	owner := uuid.New()
	engine := gin.New()
	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-User"); raw != "" {
			c.Set(httpkit.ContextUserIDKey, uuid.MustParse(raw))
		}
		c.Next()
	})
	module.RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: v1, Protected: protected})

	return &fixture{repo: repo, module: module, bus: bus, engine: engine, owner: owner}
}

func (f *fixture) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	return f.doAs(t, f.owner, method, path, body, out)
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

func (f *fixture) create(t *testing.T, name, company string) transport.ContactResponse {
	t.Helper()
	resp, err := f.module.Service().Create(context.Background(), f.owner, transport.CreateContactRequest{
		Name: name, Email: strings.ToLower(name) + "@example.com", Company: &company,
	})
	require.NoError(t, err)
	return resp
}

func TestCreateContactDefaultsToLead(t *testing.T) {
	f := newFixture(t)

	var created transport.ContactResponse
	code := f.do(t, http.MethodPost, "/api/v1/contacts",
		`{"name":"Ada","email":"ada@example.com","phone":"(201) 555-0123"}`, &created)

	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, pipeline.StageLead, created.PipelineStage)
	assert.Equal(t, pipeline.StageLead, created.CurrentPipelineStage)
	require.NotNil(t, created.Phone)
	assert.Equal(t, "+12015550123", *created.Phone)
}

func TestCreateContactValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"ada@example.com"}`},
		{"bad email", `{"name":"Ada","email":"nope"}`},
		{"passive stage", `{"name":"Ada","email":"ada@example.com","pipeline_stage":"Archived"}`},
		{"malformed json", `{"name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/contacts", tt.body, nil))
		})
	}
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetContactDerivesCurrentStage(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Ada", "Analytical")
	day := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	f.repo.addActivity(c.ID, pipeline.ActivityCall, pipeline.StageQualified, day)
	f.repo.addActivity(c.ID, pipeline.ActivityMeeting, pipeline.StageProposal, day.Add(24*time.Hour))

	var got transport.ContactResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/contacts/"+c.ID.String(), "", &got))
	assert.Equal(t, pipeline.StageProposal, got.CurrentPipelineStage)
	assert.Equal(t, pipeline.StageLead, got.PipelineStage)
}

func TestContactsAreOwnerScoped(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Ada", "Analytical")
	stranger := uuid.New()

	var errBody httpkit.ErrorResponse
	assert.Equal(t, http.StatusNotFound, f.doAs(t, stranger, http.MethodGet, "/api/v1/contacts/"+c.ID.String(), "", &errBody))
	assert.Equal(t, "contact not found", errBody.Error)
	assert.Equal(t, http.StatusNotFound, f.doAs(t, stranger, http.MethodDelete, "/api/v1/contacts/"+c.ID.String(), "", nil))

	var list transport.ContactListResponse
	f.doAs(t, stranger, http.MethodGet, "/api/v1/contacts", "", &list)
	assert.Zero(t, list.Total)
	assert.NotNil(t, list.Contacts)
}

func TestListFiltersByStageBeforePaginating(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		c := f.create(t, "Contact"+string(rune('A'+i)), "Acme")
		if i%5 >= 3 {
			f.repo.addActivity(c.ID, pipeline.ActivityCall, pipeline.StageClient, day)
		}
	}

	var page transport.ContactListResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/contacts?page=1&limit=3&stage=Lead", "", &page))
	assert.Len(t, page.Contacts, 3)
	assert.Equal(t, 6, page.Total)
	assert.True(t, page.HasMore)
	for _, c := range page.Contacts {
		assert.Equal(t, pipeline.StageLead, c.CurrentPipelineStage)
	}

	f.do(t, http.MethodGet, "/api/v1/contacts?page=2&limit=3&stage=Lead", "", &page)
	assert.Len(t, page.Contacts, 3)
	assert.False(t, page.HasMore)

	f.do(t, http.MethodGet, "/api/v1/contacts?stage=Lead,%20Client", "", &page)
	assert.Equal(t, 10, page.Total)
	assert.Equal(t, 50, page.Limit)

	f.do(t, http.MethodGet, "/api/v1/contacts?stage=All&limit=1000", "", &page)
	assert.Equal(t, 10, page.Total)
	assert.Equal(t, 100, page.Limit)
}

func TestListOrdersNewestFirstAndSearches(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Ada", "Analytical Engines")
	f.create(t, "Grace", "Navy")
	f.create(t, "Alan", "Bletchley")

	var page transport.ContactListResponse
	f.do(t, http.MethodGet, "/api/v1/contacts", "", &page)
	require.Len(t, page.Contacts, 3)
	assert.Equal(t, "Alan", page.Contacts[0].Name)

	f.do(t, http.MethodGet, "/api/v1/contacts?search=NAVY", "", &page)
	require.Len(t, page.Contacts, 1)
	assert.Equal(t, "Grace", page.Contacts[0].Name)

	f.do(t, http.MethodGet, "/api/v1/contacts?search=ada%40example", "", &page)
	require.Len(t, page.Contacts, 1)
	assert.Equal(t, "Ada", page.Contacts[0].Name)
}

func TestPipelineStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	f.create(t, "Ada", "Acme")
	won := f.create(t, "Grace", "Acme")
	f.repo.addActivity(won.ID, pipeline.ActivityMeeting, pipeline.StageClient, day)
	odd := f.create(t, "Alan", "Other")
	f.repo.addActivity(odd.ID, pipeline.ActivityNote, "Prospect", day)
	lost := f.create(t, "Linus", "Other")
	f.repo.addActivity(lost.ID, pipeline.ActivityEmail, pipeline.StageLostProposal, day)

	var stats transport.PipelineStatsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/contacts/pipeline-stats", "", &stats))
	assert.Len(t, stats.ActiveStages, 4)
	assert.Len(t, stats.PassiveStages, 4)
	assert.Equal(t, 1, stats.ActiveStages[pipeline.StageLead])
	assert.Equal(t, 1, stats.ActiveStages[pipeline.StageClient])
	assert.Equal(t, 1, stats.PassiveStages[pipeline.StageLostProposal])
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 1, stats.PassiveCount)

	f.do(t, http.MethodGet, "/api/v1/contacts/pipeline-stats?search=acme", "", &stats)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Zero(t, stats.PassiveCount)

	f.do(t, http.MethodGet, "/api/v1/contacts/pipeline-stats?search=nobody", "", &stats)
	assert.Len(t, stats.ActiveStages, 4)
	assert.Zero(t, stats.ActiveCount+stats.PassiveCount)
}

func TestFilterCountsEndpointIsSearchScoped(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	acme := f.create(t, "Ada", "Acme")
	f.repo.addActivity(acme.ID, pipeline.ActivityCall, pipeline.StageQualified, day)
	f.repo.addActivity(acme.ID, pipeline.ActivityCall, pipeline.StageQualified, day.Add(time.Hour))
	other := f.create(t, "Grace", "Navy")
	f.repo.addActivity(other.ID, pipeline.ActivityMeeting, pipeline.StageClient, day)

	var counts transport.FilterCountsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/contacts/filter-counts?search=acme", "", &counts))
	assert.Equal(t, map[string]int{pipeline.StageQualified: 1}, counts.StageCounts)
	assert.Equal(t, map[string]int{pipeline.ActivityCall: 2}, counts.ActivityTypeCounts)

	counts = transport.FilterCountsResponse{}
	f.do(t, http.MethodGet, "/api/v1/contacts/filter-counts?search=nobody", "", &counts)
	assert.Empty(t, counts.StageCounts)
	assert.Equal(t, map[string]int{"Call": 0, "Meeting": 0, "Email": 0, "Note": 0}, counts.ActivityTypeCounts)
}

func TestUpdateContact(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Ada", "Acme")

	var updated transport.ContactResponse
	code := f.do(t, http.MethodPut, "/api/v1/contacts/"+c.ID.String(), `{"company":"<i>Engines</i> Ltd","pipeline_stage":"Client"}`, &updated)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, updated.Company)
	assert.Equal(t, "Engines Ltd", *updated.Company)
	assert.Equal(t, pipeline.StageClient, updated.PipelineStage)
	assert.Equal(t, pipeline.StageLead, updated.CurrentPipelineStage)
	assert.Equal(t, "Ada", updated.Name)
}

func TestDeleteContactReleasesAttachmentObjects(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Ada", "Acme")
	f.repo.attachments[c.ID] = []string{"owner/activity/a.pdf", "owner/activity/b.png"}

	orphaned := make(chan events.AttachmentObjectsOrphaned, 1)
	f.bus.Subscribe(events.AttachmentObjectsOrphaned{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		orphaned <- e.(events.AttachmentObjectsOrphaned)
		return nil
	}))

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/contacts/"+c.ID.String(), "", nil))
	evt := <-orphaned
	assert.Equal(t, "attachments", evt.Bucket)
	assert.ElementsMatch(t, []string{"owner/activity/a.pdf", "owner/activity/b.png"}, evt.Keys)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/contacts/"+c.ID.String(), "", nil))
}

func TestInvalidContactID(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/contacts/not-a-uuid", "", nil))
}

package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	activitytransport "crm_backend/internal/activities/transport"
	contacttransport "crm_backend/internal/contacts/transport"
	"crm_backend/internal/pipeline"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContacts struct {
	userID  uuid.UUID
	listReq contacttransport.ListContactsRequest
	search  string
	list    contacttransport.ContactListResponse
	err     error
}

func (f *fakeContacts) List(_ context.Context, userID uuid.UUID, req contacttransport.ListContactsRequest) (contacttransport.ContactListResponse, error) {
	f.userID = userID
	f.listReq = req
	return f.list, f.err
}

func (f *fakeContacts) PipelineStats(_ context.Context, userID uuid.UUID, search string) (contacttransport.PipelineStatsResponse, error) {
	f.userID = userID
	f.search = search
	agg := pipeline.NewAggregator(pipeline.DefaultTaxonomy())
	archived := pipeline.ContactSnapshot{
		ContactID:  uuid.New(),
		Activities: []pipeline.ActivitySnapshot{{ID: uuid.New(), PipelineStage: pipeline.StageArchived}},
	}
	return agg.PipelineStats([]pipeline.ContactSnapshot{{ContactID: uuid.New()}, archived}), f.err
}

func (f *fakeContacts) FilterCounts(_ context.Context, userID uuid.UUID, search string) (contacttransport.FilterCountsResponse, error) {
	f.userID = userID
	f.search = search
	return contacttransport.FilterCountsResponse{}, f.err
}

type fakeActivities struct {
	contactID uuid.UUID
	req       activitytransport.CreateActivityRequest
	err       error
}

func (f *fakeActivities) Create(_ context.Context, _ uuid.UUID, contactID uuid.UUID, req activitytransport.CreateActivityRequest) (activitytransport.ActivityResponse, error) {
	f.contactID = contactID
	f.req = req
	if f.err != nil {
		return activitytransport.ActivityResponse{}, f.err
	}
	stage := "Lead"
	if req.PipelineStage != nil {
		stage = *req.PipelineStage
	}
	return activitytransport.ActivityResponse{
		ID:            uuid.New(),
		ContactID:     contactID,
		Type:          "Note",
		ActivityDate:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PipelineStage: stage,
	}, nil
}

func newTestHandlers() (*Handlers, *fakeContacts, *fakeActivities, uuid.UUID) {
	userID := uuid.New()
	contacts := &fakeContacts{}
	activities := &fakeActivities{}
	return NewHandlers(userID, contacts, activities, validator.New(), logger.Discard()), contacts, activities, userID
}

func connect(t *testing.T, h *Handlers) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := NewServer(h).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func decode(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestServerListsTools(t *testing.T) {
	h, _, _, _ := newTestHandlers()
	session := connect(t, h)

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_contacts", "get_pipeline_stats", "get_filter_counts", "log_activity"}, names)
}

func TestListContactsToolBindsConfiguredUser(t *testing.T) {
	h, contacts, _, userID := newTestHandlers()
	phone := "+12015550123"
	contacts.list = contacttransport.ContactListResponse{
		Contacts: []contacttransport.ContactResponse{{
			ID:                   uuid.New(),
			Name:                 "Ada",
			Email:                "ada@example.com",
			Phone:                &phone,
			PipelineStage:        "Lead",
			CurrentPipelineStage: "Qualified",
			CreatedAt:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
		Total:   1,
		Page:    1,
		Limit:   50,
		HasMore: false,
	}
	session := connect(t, h)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_contacts",
		Arguments: map[string]any{"search": "ada", "stage": "Qualified,Lead"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out ListContactsOutput
	decode(t, result, &out)
	require.Len(t, out.Contacts, 1)
	assert.Equal(t, "Qualified", out.Contacts[0].CurrentPipelineStage)
	assert.Equal(t, "+12015550123", out.Contacts[0].Phone)
	assert.Equal(t, "2026-01-02T03:04:05Z", out.Contacts[0].CreatedAt)
	assert.Equal(t, 1, out.Total)

	assert.Equal(t, userID, contacts.userID)
	assert.Equal(t, "ada", contacts.listReq.Search)
	assert.Equal(t, "Qualified,Lead", contacts.listReq.Stage)
}

func TestListContactsReturnsEmptyArray(t *testing.T) {
	h, _, _, _ := newTestHandlers()

	_, out, err := h.ListContacts(context.Background(), nil, ListContactsInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.Contacts)
	assert.Empty(t, out.Contacts)
}

func TestListContactsRejectsInvalidPage(t *testing.T) {
	h, _, _, _ := newTestHandlers()

	_, _, err := h.ListContacts(context.Background(), nil, ListContactsInput{Page: -1})
	assert.ErrorContains(t, err, "invalid input")
}

func TestPipelineStatsTool(t *testing.T) {
	h, contacts, _, _ := newTestHandlers()

	_, out, err := h.GetPipelineStats(context.Background(), nil, SearchInput{Search: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", contacts.search)
	assert.Equal(t, 1, out.ActiveStages["Lead"])
	assert.Equal(t, 1, out.PassiveStages["Archived"])
	assert.Equal(t, 1, out.ActiveCount)
	assert.Equal(t, 1, out.PassiveCount)
}

func TestFilterCountsToolNeverReturnsNilMaps(t *testing.T) {
	h, _, _, _ := newTestHandlers()

	_, out, err := h.GetFilterCounts(context.Background(), nil, SearchInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.StageCounts)
	assert.NotNil(t, out.ActivityTypeCounts)
}

func TestServiceErrorsAreWrapped(t *testing.T) {
	h, contacts, _, _ := newTestHandlers()
	contacts.err = errors.New("db down")

	_, _, err := h.GetFilterCounts(context.Background(), nil, SearchInput{})
	assert.EqualError(t, err, "failed to compute filter counts: db down")
}

func TestLogActivityTool(t *testing.T) {
	h, _, activities, _ := newTestHandlers()
	contactID := uuid.New()
	session := connect(t, h)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "log_activity",
		Arguments: map[string]any{
			"contact_id":     contactID.String(),
			"type":           "Call",
			"subject":        "Intro",
			"activity_date":  "2026-02-03T10:00:00+02:00",
			"pipeline_stage": "Proposal",
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out ActivityOutput
	decode(t, result, &out)
	assert.Equal(t, contactID.String(), out.ContactID)
	assert.Equal(t, "Proposal", out.PipelineStage)

	assert.Equal(t, contactID, activities.contactID)
	require.NotNil(t, activities.req.Type)
	assert.Equal(t, "Call", *activities.req.Type)
	require.NotNil(t, activities.req.ActivityDate)
	assert.True(t, activities.req.ActivityDate.Equal(time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)))
}

func TestLogActivityOmitsBlankStage(t *testing.T) {
	h, _, activities, _ := newTestHandlers()

	_, out, err := h.LogActivity(context.Background(), nil, LogActivityInput{
		ContactID:     uuid.NewString(),
		PipelineStage: "   ",
	})
	require.NoError(t, err)
	assert.Nil(t, activities.req.PipelineStage)
	assert.Nil(t, activities.req.Type)
	assert.Equal(t, "Lead", out.PipelineStage)
}

func TestLogActivityRejectsBadInput(t *testing.T) {
	h, _, activities, _ := newTestHandlers()
	ctx := context.Background()

	_, _, err := h.LogActivity(ctx, nil, LogActivityInput{})
	assert.EqualError(t, err, "contact_id is required")

	_, _, err = h.LogActivity(ctx, nil, LogActivityInput{ContactID: "nope"})
	assert.ErrorContains(t, err, "invalid contact_id")

	_, _, err = h.LogActivity(ctx, nil, LogActivityInput{ContactID: uuid.NewString(), ActivityDate: "yesterday"})
	assert.ErrorContains(t, err, "invalid activity_date")

	_, _, err = h.LogActivity(ctx, nil, LogActivityInput{ContactID: uuid.NewString(), Type: "Fax"})
	assert.ErrorContains(t, err, "invalid input")

	assert.Equal(t, uuid.Nil, activities.contactID)
}

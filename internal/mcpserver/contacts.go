package mcpserver

import (
	"context"
	"fmt"
	"time"

	contacttransport "crm_backend/internal/contacts/transport"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ListContactsInput struct {
	Search string `json:"search,omitempty" jsonschema:"Case-insensitive text matched against name, email and company"`
	Stage  string `json:"stage,omitempty" jsonschema:"Comma-separated current stages to keep, or All"`
	Page   int    `json:"page,omitempty" jsonschema:"Page number starting at 1 (default 1)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Page size (default 50, max 100)"`
}

type ContactOutput struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Phone                string `json:"phone,omitempty"`
	Company              string `json:"company,omitempty"`
	PipelineStage        string `json:"pipeline_stage"`
	CurrentPipelineStage string `json:"current_pipeline_stage"`
	CreatedAt            string `json:"created_at"`
}

type ListContactsOutput struct {
	Contacts []ContactOutput `json:"contacts"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
	HasMore  bool            `json:"has_more"`
}

func (h *Handlers) ListContacts(ctx context.Context, _ *mcp.CallToolRequest, input ListContactsInput) (*mcp.CallToolResult, ListContactsOutput, error) {
	req := contacttransport.ListContactsRequest{
		Page:   input.Page,
		Limit:  input.Limit,
		Search: input.Search,
		Stage:  input.Stage,
	}
	if err := h.validate(req); err != nil {
		return nil, ListContactsOutput{}, err
	}

	result, err := h.contacts.List(ctx, h.userID, req)
	if err != nil {
		return nil, ListContactsOutput{}, fmt.Errorf("failed to list contacts: %w", err)
	}

	out := ListContactsOutput{
		Contacts: make([]ContactOutput, 0, len(result.Contacts)),
		Total:    result.Total,
		Page:     result.Page,
		Limit:    result.Limit,
		HasMore:  result.HasMore,
	}
	for _, c := range result.Contacts {
		out.Contacts = append(out.Contacts, contactToOutput(c))
	}
	return nil, out, nil
}

type SearchInput struct {
	Search string `json:"search,omitempty" jsonschema:"Only count contacts matching this text"`
}

type PipelineStatsOutput struct {
	ActiveStages  map[string]int `json:"active_stages"`
	PassiveStages map[string]int `json:"passive_stages"`
	ActiveCount   int            `json:"active_count"`
	PassiveCount  int            `json:"passive_count"`
}

func (h *Handlers) GetPipelineStats(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, PipelineStatsOutput, error) {
	if err := h.validate(contacttransport.SearchRequest{Search: input.Search}); err != nil {
		return nil, PipelineStatsOutput{}, err
	}

	stats, err := h.contacts.PipelineStats(ctx, h.userID, input.Search)
	if err != nil {
		return nil, PipelineStatsOutput{}, fmt.Errorf("failed to compute pipeline stats: %w", err)
	}

	return nil, PipelineStatsOutput{
		ActiveStages:  nonNil(stats.ActiveStages),
		PassiveStages: nonNil(stats.PassiveStages),
		ActiveCount:   stats.ActiveCount,
		PassiveCount:  stats.PassiveCount,
	}, nil
}

type FilterCountsOutput struct {
	StageCounts        map[string]int `json:"stage_counts"`
	ActivityTypeCounts map[string]int `json:"activity_type_counts"`
}

func (h *Handlers) GetFilterCounts(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, FilterCountsOutput, error) {
	if err := h.validate(contacttransport.SearchRequest{Search: input.Search}); err != nil {
		return nil, FilterCountsOutput{}, err
	}

	counts, err := h.contacts.FilterCounts(ctx, h.userID, input.Search)
	if err != nil {
		return nil, FilterCountsOutput{}, fmt.Errorf("failed to compute filter counts: %w", err)
	}

	return nil, FilterCountsOutput{
		StageCounts:        nonNil(counts.StageCounts),
		ActivityTypeCounts: nonNil(counts.ActivityTypeCounts),
	}, nil
}

func contactToOutput(c contacttransport.ContactResponse) ContactOutput {
	return ContactOutput{
		ID:                   c.ID.String(),
		Name:                 c.Name,
		Email:                c.Email,
		Phone:                deref(c.Phone),
		Company:              deref(c.Company),
		PipelineStage:        c.PipelineStage,
		CurrentPipelineStage: c.CurrentPipelineStage,
		CreatedAt:            c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	activitytransport "crm_backend/internal/activities/transport"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type LogActivityInput struct {
	ContactID     string `json:"contact_id" jsonschema:"Contact ID (required)"`
	Type          string `json:"type,omitempty" jsonschema:"One of Call, Meeting, Email, Note (default Note)"`
	Subject       string `json:"subject,omitempty" jsonschema:"Short subject line"`
	Notes         string `json:"notes,omitempty" jsonschema:"Free-form notes"`
	ActivityDate  string `json:"activity_date,omitempty" jsonschema:"When it happened, RFC3339 (default now)"`
	PipelineStage string `json:"pipeline_stage,omitempty" jsonschema:"Stage to record; omitted keeps the contact's latest stage"`
}

type ActivityOutput struct {
	ID            string `json:"id"`
	ContactID     string `json:"contact_id"`
	Type          string `json:"type"`
	Subject       string `json:"subject"`
	Notes         string `json:"notes,omitempty"`
	ActivityDate  string `json:"activity_date"`
	PipelineStage string `json:"pipeline_stage"`
}

func (h *Handlers) LogActivity(ctx context.Context, _ *mcp.CallToolRequest, input LogActivityInput) (*mcp.CallToolResult, ActivityOutput, error) {
	if input.ContactID == "" {
		return nil, ActivityOutput{}, fmt.Errorf("contact_id is required")
	}
	contactID, err := uuid.Parse(input.ContactID)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("invalid contact_id: %w", err)
	}

	req, err := input.toRequest()
	if err != nil {
		return nil, ActivityOutput{}, err
	}
	if err := h.validate(req); err != nil {
		return nil, ActivityOutput{}, err
	}

	activity, err := h.activities.Create(ctx, h.userID, contactID, req)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("failed to log activity: %w", err)
	}

	h.log.Info("activity logged via mcp", "contactId", contactID, "activityId", activity.ID)

	return nil, ActivityOutput{
		ID:            activity.ID.String(),
		ContactID:     activity.ContactID.String(),
		Type:          activity.Type,
		Subject:       activity.Subject,
		Notes:         deref(activity.Notes),
		ActivityDate:  activity.ActivityDate.UTC().Format(time.RFC3339),
		PipelineStage: activity.PipelineStage,
	}, nil
}

func (in LogActivityInput) toRequest() (activitytransport.CreateActivityRequest, error) {
	var req activitytransport.CreateActivityRequest
	if in.Type != "" {
		req.Type = &in.Type
	}
	if in.Subject != "" {
		req.Subject = &in.Subject
	}
	if in.Notes != "" {
		req.Notes = &in.Notes
	}
	if strings.TrimSpace(in.PipelineStage) != "" {
		req.PipelineStage = &in.PipelineStage
	}
	if in.ActivityDate != "" {
		date, err := time.Parse(time.RFC3339, in.ActivityDate)
		if err != nil {
			return req, fmt.Errorf("invalid activity_date: %w", err)
		}
		req.ActivityDate = &date
	}
	return req, nil
}

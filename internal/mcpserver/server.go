// Package mcpserver exposes the CRM as Model Context Protocol tools bound to a
// single user. Tools delegate to the same services as the HTTP API.
package mcpserver

import (
	"context"
	"fmt"

	activitytransport "crm_backend/internal/activities/transport"
	contacttransport "crm_backend/internal/contacts/transport"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "crm"
	serverVersion = "0.1.0"
)

// ContactService is the slice of the contacts service used by the tools.
type ContactService interface {
	List(ctx context.Context, userID uuid.UUID, req contacttransport.ListContactsRequest) (contacttransport.ContactListResponse, error)
	PipelineStats(ctx context.Context, userID uuid.UUID, search string) (contacttransport.PipelineStatsResponse, error)
	FilterCounts(ctx context.Context, userID uuid.UUID, search string) (contacttransport.FilterCountsResponse, error)
}

// ActivityService is the slice of the activities service used by the tools.
type ActivityService interface {
	Create(ctx context.Context, userID, contactID uuid.UUID, req activitytransport.CreateActivityRequest) (activitytransport.ActivityResponse, error)
}

// Handlers implements the tool handlers for one user.
type Handlers struct {
	userID     uuid.UUID
	contacts   ContactService
	activities ActivityService
	val        *validator.Validator
	log        *logger.Logger
}

func NewHandlers(userID uuid.UUID, contacts ContactService, activities ActivityService, val *validator.Validator, log *logger.Logger) *Handlers {
	return &Handlers{
		userID:     userID,
		contacts:   contacts,
		activities: activities,
		val:        val,
		log:        log,
	}
}

// NewServer registers every CRM tool on a fresh MCP server.
func NewServer(h *Handlers) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_contacts",
		Description: "List contacts with their current pipeline stage, filtered by search text and stages",
	}, h.ListContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_pipeline_stats",
		Description: "Count contacts per current pipeline stage, split into active and passive stages",
	}, h.GetPipelineStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_filter_counts",
		Description: "Count contacts per current stage and activities per type",
	}, h.GetFilterCounts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "log_activity",
		Description: "Log a call, meeting, email or note against a contact; the stage defaults to the contact's latest stage",
	}, h.LogActivity)

	return server
}

// Run serves the tools over stdio until ctx is cancelled or the client disconnects.
func Run(ctx context.Context, h *Handlers) error {
	return NewServer(h).Run(ctx, &mcp.StdioTransport{})
}

func (h *Handlers) validate(req any) error {
	if err := h.val.Struct(req); err != nil {
		return fmt.Errorf("invalid input: %v", validator.FieldErrors(err))
	}
	return nil
}

package transport

import (
	"time"

	"crm_backend/internal/pipeline"

	"github.com/google/uuid"
)

// CreateContactRequest contains data for creating a contact. The stored stage
// may only be one of the active stages and defaults to Lead.
type CreateContactRequest struct {
	Name          string  `json:"name" validate:"required,notblank,max=255"`
	Email         string  `json:"email" validate:"required,email,max=255"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Company       *string `json:"company,omitempty" validate:"omitempty,max=255"`
	JobTitle      *string `json:"job_title,omitempty" validate:"omitempty,max=255"`
	Website       *string `json:"website,omitempty" validate:"omitempty,max=500"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
	PipelineStage *string `json:"pipeline_stage,omitempty" validate:"omitempty,oneof=Lead Qualified Proposal Client"`
}

// UpdateContactRequest is a partial update; omitted fields are kept.
type UpdateContactRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Company       *string `json:"company,omitempty" validate:"omitempty,max=255"`
	JobTitle      *string `json:"job_title,omitempty" validate:"omitempty,max=255"`
	Website       *string `json:"website,omitempty" validate:"omitempty,max=500"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
	PipelineStage *string `json:"pipeline_stage,omitempty" validate:"omitempty,oneof=Lead Qualified Proposal Client"`
}

// ListContactsRequest holds the listing query. Stage is a comma-separated
// list of current stages; empty or "All" disables the filter.
type ListContactsRequest struct {
	Page   int    `form:"page" validate:"omitempty,min=1"`
	Limit  int    `form:"limit" validate:"omitempty,min=1"`
	Search string `form:"search" validate:"omitempty,max=255"`
	Stage  string `form:"stage" validate:"omitempty,max=500"`
}

// SearchRequest scopes statistics to contacts matching Search.
type SearchRequest struct {
	Search string `form:"search" validate:"omitempty,max=255"`
}

// ContactResponse carries both the stored stage and the stage derived from activities.
type ContactResponse struct {
	ID                   uuid.UUID `json:"id"`
	UserID               uuid.UUID `json:"user_id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Phone                *string   `json:"phone"`
	Company              *string   `json:"company"`
	JobTitle             *string   `json:"job_title"`
	Website              *string   `json:"website"`
	Notes                *string   `json:"notes"`
	PipelineStage        string    `json:"pipeline_stage"`
	CurrentPipelineStage string    `json:"current_pipeline_stage"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ContactListResponse is one page of the stage-filtered listing.
type ContactListResponse struct {
	Contacts []ContactResponse `json:"contacts"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
	HasMore  bool              `json:"has_more"`
}

// PipelineStatsResponse is the per-stage breakdown of current stages.
type PipelineStatsResponse = pipeline.PipelineStats

// FilterCountsResponse backs the contact filter sidebar.
type FilterCountsResponse = pipeline.FilterCounts

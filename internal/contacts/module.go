// Package contacts provides the contact registry bounded context: contact
// CRUD, the stage-filtered listing and the pipeline statistics endpoints.
package contacts

import (
	"crm_backend/internal/contacts/handler"
	"crm_backend/internal/contacts/repository"
	"crm_backend/internal/contacts/service"
	"crm_backend/internal/events"
	apphttp "crm_backend/internal/http"
	"crm_backend/internal/pipeline"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the contacts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the contacts module with all its dependencies.
func NewModule(pool *pgxpool.Pool, aggregator *pipeline.Aggregator, bus events.Bus, val *validator.Validator, log *logger.Logger, opts service.Options) *Module {
	return NewModuleWithRepository(repository.New(pool), aggregator, bus, val, log, opts)
}

// NewModuleWithRepository builds the module on an explicit repository.
func NewModuleWithRepository(repo repository.Repository, aggregator *pipeline.Aggregator, bus events.Bus, val *validator.Validator, log *logger.Logger, opts service.Options) *Module {
	svc := service.New(repo, aggregator, bus, log, opts)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contacts"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts contact routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/contacts")
	g.POST("", m.handler.Create)
	g.GET("", m.handler.List)
	g.GET("/pipeline-stats", m.handler.PipelineStats)
	g.GET("/filter-counts", m.handler.FilterCounts)
	g.GET("/:id", m.handler.GetByID)
	g.PUT("/:id", m.handler.Update)
	g.DELETE("/:id", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)

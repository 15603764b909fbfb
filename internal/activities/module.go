// Package activities provides the activity log bounded context. Activities
// carry the pipeline stage label the contact's current stage is derived from.
package activities

import (
	"crm_backend/internal/activities/handler"
	"crm_backend/internal/activities/repository"
	"crm_backend/internal/activities/service"
	"crm_backend/internal/events"
	apphttp "crm_backend/internal/http"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the activities bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the activities module with all its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger, attachmentBucket string) *Module {
	return NewModuleWithRepository(repository.New(pool), bus, val, log, attachmentBucket)
}

// NewModuleWithRepository builds the module on an explicit repository.
func NewModuleWithRepository(repo repository.Repository, bus events.Bus, val *validator.Validator, log *logger.Logger, attachmentBucket string) *Module {
	svc := service.New(repo, bus, log, attachmentBucket)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "activities"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts activity routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/contacts/:id/activities", m.handler.ListForContact)
	ctx.Protected.POST("/contacts/:id/activities", m.handler.Create)

	g := ctx.Protected.Group("/activities")
	g.GET("", m.handler.List)
	g.GET("/:id", m.handler.GetByID)
	g.PUT("/:id", m.handler.Update)
	g.DELETE("/:id", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)

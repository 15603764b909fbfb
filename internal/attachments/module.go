// Package attachments provides file attachments on activities, stored in
// object storage with their metadata in PostgreSQL.
package attachments

import (
	"crm_backend/internal/attachments/handler"
	"crm_backend/internal/attachments/repository"
	"crm_backend/internal/attachments/service"
	apphttp "crm_backend/internal/http"
	"crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the attachments bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the attachments module writing objects to bucket.
func NewModule(pool *pgxpool.Pool, store service.ObjectStore, bucket string, maxFileSize int64, log *logger.Logger) *Module {
	return NewModuleWithRepository(repository.New(pool), store, bucket, maxFileSize, log)
}

// NewModuleWithRepository builds the module on an explicit repository.
func NewModuleWithRepository(repo repository.Repository, store service.ObjectStore, bucket string, maxFileSize int64, log *logger.Logger) *Module {
	svc := service.New(repo, store, bucket, maxFileSize, log)
	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "attachments"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts attachment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/activities/:id/attachments")
	g.POST("", m.handler.Upload)
	g.GET("/:attachmentId", m.handler.Download)
	g.DELETE("/:attachmentId", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)

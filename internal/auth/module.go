// Package auth provides the authentication bounded context module.
package auth

import (
	"crm_backend/internal/auth/handler"
	"crm_backend/internal/auth/lockout"
	"crm_backend/internal/auth/repository"
	"crm_backend/internal/auth/service"
	"crm_backend/internal/events"
	apphttp "crm_backend/internal/http"
	"crm_backend/platform/config"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, guard lockout.Guard, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	return NewModuleWithRepository(repository.New(pool), cfg, guard, eventBus, val, log)
}

// NewModuleWithRepository builds the module on an explicit repository.
func NewModuleWithRepository(repo repository.AuthRepository, cfg config.AuthServiceConfig, guard lockout.Guard, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repo, cfg, guard, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the auth service, which also validates sessions for the auth middleware.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.POST("/auth/logout", m.handler.Logout)
	ctx.Protected.GET("/users/me", m.handler.GetMe)
	ctx.Protected.PUT("/users/me", m.handler.UpdateMe)
}

var _ apphttp.Module = (*Module)(nil)

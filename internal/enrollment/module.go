// Package enrollment provides the enrollment manager bounded context module.
package enrollment

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"nurture_backend/internal/enrollment/handler"
	"nurture_backend/internal/enrollment/repository"
	"nurture_backend/internal/enrollment/service"
	"nurture_backend/internal/events"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/sequence"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"
)

// Module is the enrollment bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the enrollment repository, service and handler, and
// subscribes the cascade handlers on the event bus.
func NewModule(pool *pgxpool.Pool, leads service.LeadChecker, registry *sequence.Registry, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, registry, eventBus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "enrollment"
}

// Service returns the enrollment service for use by sibling modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts enrollment admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/enrollments/:id", m.handler.GetByID)
	ctx.Admin.POST("/enrollments/:id/cancel", m.handler.Cancel)
	ctx.Admin.POST("/enrollments/:id/stage", m.handler.AdvanceStage)
	ctx.Admin.POST("/enrollments/:id/convert", m.handler.Convert)
}

var _ apphttp.Module = (*Module)(nil)

// Package leads provides the lead store bounded context module.
package leads

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"nurture_backend/internal/events"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/leads/handler"
	"nurture_backend/internal/leads/repository"
	"nurture_backend/internal/leads/service"
	"nurture_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the leads repository, service and handler.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead service for use by sibling modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes. Capture is public intake and
// rate-limited; lookup, backfill and erasure are admin operations.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/leads", m.handler.Capture)
	ctx.V1.GET("/leads/:id", m.handler.GetByID)

	ctx.Admin.PATCH("/leads/:id/contact", m.handler.BackfillContact)
	ctx.Admin.DELETE("/leads/:id", m.handler.Delete)
}

var _ apphttp.Module = (*Module)(nil)

// Package webhook provides the email provider event ingestion module.
package webhook

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"nurture_backend/internal/dispatch"
	enrollsvc "nurture_backend/internal/enrollment/service"
	engagesvc "nurture_backend/internal/engagement/service"
	"nurture_backend/internal/events"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/webhook/handler"
	"nurture_backend/internal/webhook/repository"
	"nurture_backend/internal/webhook/service"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"
)

// Module is the webhook ingestion module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the event log, job resolver and ingestion service.
func NewModule(pool *pgxpool.Pool, enrollments *enrollsvc.Service, engagement *engagesvc.Service, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(
		repository.New(pool),
		dispatch.NewRepository(pool),
		enrollments,
		engagement,
		eventBus,
		log,
	)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the provider callback under the token-authenticated
// webhook group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/email-events", m.handler.EmailEvents)
}

var _ apphttp.Module = (*Module)(nil)

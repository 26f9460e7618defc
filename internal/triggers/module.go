// Package triggers provides the inbound trigger event module.
package triggers

import (
	enrollsvc "nurture_backend/internal/enrollment/service"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/sequence"
	"nurture_backend/internal/triggers/handler"
	"nurture_backend/internal/triggers/service"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"
)

// Module is the trigger intake module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the trigger service against the sequence registry and
// enrollment service.
func NewModule(registry *sequence.Registry, enrolls *enrollsvc.Service, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(registry, enrolls, log)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "triggers"
}

// RegisterRoutes mounts the trigger endpoint on the rate-limited public
// surface; capture forms and the quiz funnel post here directly.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.POST("/events/trigger", m.handler.Fire)
}

var _ apphttp.Module = (*Module)(nil)

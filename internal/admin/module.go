// Package admin provides the operator query API module.
package admin

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"nurture_backend/internal/admin/handler"
	"nurture_backend/internal/admin/repository"
	"nurture_backend/internal/admin/service"
	apphttp "nurture_backend/internal/http"
)

// Module is the admin read-side module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the projection repository against the sibling services.
func NewModule(pool *pgxpool.Pool, leads service.LeadSource, enrolls service.EnrollmentSource, engagement service.EngagementSource) *Module {
	svc := service.New(repository.New(pool), leads, enrolls, engagement)
	return &Module{handler: handler.New(svc)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "admin"
}

// RegisterRoutes mounts the subscriber queries and the CSV export.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/subscribers", m.handler.ListSubscribers)
	ctx.Admin.GET("/subscribers/:leadID", m.handler.GetSubscriber)
	ctx.Admin.GET("/exports/leads.csv", m.handler.ExportLeadsCSV)
}

var _ apphttp.Module = (*Module)(nil)

// Package funnel provides the funnel health monitoring module.
package funnel

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"nurture_backend/internal/funnel/handler"
	"nurture_backend/internal/funnel/repository"
	"nurture_backend/internal/funnel/service"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
)

// Module is the funnel health bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the funnel metric queries and snapshot aggregator. cache
// may be nil when redis is unavailable; snapshots then compute on every read.
func NewModule(pool *pgxpool.Pool, cache *redis.Client, cfg config.FunnelConfig, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), cache, cfg, log)
	return &Module{handler: handler.New(svc)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "funnel"
}

// RegisterRoutes mounts the operator health endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/funnel-health", m.handler.Health)
}

var _ apphttp.Module = (*Module)(nil)

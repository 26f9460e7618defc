// Package engagement provides the engagement tracker and scorer module.
package engagement

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"nurture_backend/internal/engagement/repository"
	"nurture_backend/internal/engagement/service"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/platform/config"
	"nurture_backend/platform/httpkit"
)

// Module is the engagement bounded context module implementing http.Module.
type Module struct {
	service *service.Service
}

// NewModule wires the engagement repository and tracker service.
func NewModule(pool *pgxpool.Pool, cfg config.EngagementConfig) *Module {
	return &Module{service: service.New(repository.New(pool), cfg)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "engagement"
}

// Service returns the tracker for use by the dispatch worker and webhook
// ingester.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the explicit counter rebuild endpoint. Counters are
// never recomputed implicitly; this is the operator's tool when a backfill
// is needed.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.POST("/leads/:id/engagement/rebuild", m.rebuild)
}

func (m *Module) rebuild(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	counters, err := m.service.Rebuild(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"leadId":         counters.LeadID,
		"sent":           counters.Sent,
		"opened":         counters.Opened,
		"clicked":        counters.Clicked,
		"lastEngagement": counters.LastEngagement,
		"score":          m.service.ScoreCounters(counters, time.Now()),
	})
}

var _ apphttp.Module = (*Module)(nil)

// Package handler exposes the funnel health endpoint.
package handler

import (
	"github.com/gin-gonic/gin"

	"nurture_backend/internal/funnel/service"
	"nurture_backend/platform/httpkit"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// Health returns the aggregated funnel snapshot. The snapshot itself never
// fails; individual metrics degrade to null and are listed under degraded.
func (h *Handler) Health(c *gin.Context) {
	snap, err := h.service.Snapshot(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, snap)
}

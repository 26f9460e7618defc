package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nurture_backend/internal/webhook/service"
	"nurture_backend/platform/httpkit"
	"nurture_backend/platform/validator"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

type emailEventRequest struct {
	EventID   string     `json:"eventId" validate:"required,max=128"`
	MessageID string     `json:"messageId" validate:"required,max=256"`
	Type      string     `json:"type" validate:"required,oneof=delivered opened clicked bounced complained unsubscribed"`
	At        *time.Time `json:"at"`
}

// EmailEvents ingests one provider engagement event. Providers retry on
// non-2xx, so everything already-processed answers 200.
func (h *Handler) EmailEvents(c *gin.Context) {
	var req emailEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	at := time.Now().UTC()
	if req.At != nil {
		at = req.At.UTC()
	}

	err := h.svc.Ingest(c.Request.Context(), service.Event{
		EventID:   req.EventID,
		MessageID: req.MessageID,
		Type:      req.Type,
		At:        at,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "accepted"})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nurture_backend/internal/triggers/service"
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

type triggerEventRequest struct {
	LeadID string `json:"leadId" validate:"required,uuid"`
	Event  string `json:"event" validate:"required,oneof=subscribed guide_downloaded quiz_completed"`
}

// Fire accepts an inbound trigger event and enrolls the lead in the bound
// sequence. Re-firing a trigger while its enrollment is live yields 409.
func (h *Handler) Fire(c *gin.Context) {
	var req triggerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	enrollment, err := h.svc.Fire(c.Request.Context(), leadID, req.Event)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, gin.H{
		"enrollmentId": enrollment.ID,
		"sequenceId":   enrollment.SequenceID,
		"stage":        enrollment.Stage,
		"status":       enrollment.Status,
	})
}

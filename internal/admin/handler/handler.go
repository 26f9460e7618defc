// Package handler exposes the admin query API and the CSV export.
package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nurture_backend/internal/admin/service"
	"nurture_backend/internal/engagement/scoring"
	"nurture_backend/platform/httpkit"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// GetSubscriber returns the full detail projection of one lead.
func (h *Handler) GetSubscriber(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadID"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	sub, err := h.service.Get(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, sub)
}

// ListSubscribers returns a scored, optionally filtered page of leads.
// Query params: score (hot|warm|cold), limit, offset.
func (h *Handler) ListSubscribers(c *gin.Context) {
	params := service.ListParams{
		Score: scoring.Level(strings.TrimSpace(c.Query("score"))),
	}
	var err error
	if params.Limit, err = queryInt(c, "limit", service.DefaultPageSize); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
		return
	}
	if params.Offset, err = queryInt(c, "offset", 0); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid offset", nil)
		return
	}

	page, err := h.service.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{
		"subscribers": page,
		"limit":       params.Limit,
		"offset":      params.Offset,
	})
}

var csvHeader = []string{
	"lead_id", "email", "name", "consent", "source", "created_at",
	"stage", "active_sequences", "sent", "opened", "clicked", "score",
}

// ExportLeadsCSV streams the full subscriber projection as CSV.
func (h *Handler) ExportLeadsCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=leads.csv")

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(csvHeader); err != nil {
		return
	}

	err := h.service.Each(c.Request.Context(), func(row service.SubscriberSummary) error {
		return writer.Write(csvRow(row))
	})
	if err != nil {
		// Headers are already out; all we can do is cut the stream short.
		c.Abort()
		return
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		c.Abort()
	}
}

func csvRow(row service.SubscriberSummary) []string {
	return []string{
		row.LeadID.String(),
		strDeref(row.Email),
		strDeref(row.Name),
		strconv.FormatBool(row.Consent),
		row.Source,
		row.CreatedAt.UTC().Format(time.RFC3339),
		strDeref(row.Stage),
		strings.Join(row.ActiveSequences, ";"),
		strconv.FormatInt(row.Sent, 10),
		strconv.FormatInt(row.Opened, 10),
		strconv.FormatInt(row.Clicked, 10),
		string(row.Score),
	}
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

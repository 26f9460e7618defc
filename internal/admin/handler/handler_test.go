package handler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/admin/service"
	"nurture_backend/internal/engagement/scoring"
)

func TestCSVRowShape(t *testing.T) {
	leadID := uuid.New()
	email := "guest@example.com"
	stage := "engaged"
	created := time.Date(2026, 4, 10, 9, 30, 0, 0, time.UTC)

	row := csvRow(service.SubscriberSummary{
		LeadID:          leadID,
		Email:           &email,
		Consent:         true,
		Source:          "quiz",
		CreatedAt:       created,
		ActiveSequences: []string{"welcome", "quiz-soap-opera"},
		Stage:           &stage,
		Sent:            12,
		Opened:          4,
		Clicked:         1,
		Score:           scoring.LevelWarm,
	})

	if len(row) != len(csvHeader) {
		t.Fatalf("row has %d fields, header has %d", len(row), len(csvHeader))
	}
	want := []string{
		leadID.String(), "guest@example.com", "", "true", "quiz",
		"2026-04-10T09:30:00Z", "engaged", "welcome;quiz-soap-opera",
		"12", "4", "1", "warm",
	}
	for i, field := range want {
		if row[i] != field {
			t.Errorf("field %q = %q, want %q", csvHeader[i], row[i], field)
		}
	}
}

func TestCSVRowNilFields(t *testing.T) {
	row := csvRow(service.SubscriberSummary{
		LeadID: uuid.New(),
		Source: "unknown",
		Score:  scoring.LevelCold,
	})

	if row[1] != "" || row[2] != "" || row[6] != "" || row[7] != "" {
		t.Errorf("nil fields must render empty: %v", row)
	}
}

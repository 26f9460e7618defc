package transport

import (
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/leads/repository"
)

// Request DTOs

type CaptureLeadRequest struct {
	Email   string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Name    string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Consent bool   `json:"consent"`
	Source  string `json:"source,omitempty" validate:"omitempty,min=1,max=50"`
}

type BackfillContactRequest struct {
	Email   string `json:"email" validate:"required,email,max=254"`
	Consent bool   `json:"consent"`
}

// Response DTOs

type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email,omitempty"`
	Name      *string   `json:"name,omitempty"`
	Consent   bool      `json:"consent"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:        lead.ID,
		Email:     lead.Email,
		Name:      lead.Name,
		Consent:   lead.Consent,
		Source:    lead.Source,
		CreatedAt: lead.CreatedAt,
	}
}

// Package adapters holds the thin cross-module glue so modules depend on
// their own interfaces instead of each other's services.
package adapters

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"nurture_backend/internal/dispatch"
	leadssvc "nurture_backend/internal/leads/service"
	"nurture_backend/platform/apperr"
)

// LeadDirectoryAdapter exposes the lead service as the dispatch worker's
// contact directory.
type LeadDirectoryAdapter struct {
	leads *leadssvc.Service
}

func NewLeadDirectoryAdapter(leads *leadssvc.Service) *LeadDirectoryAdapter {
	return &LeadDirectoryAdapter{leads: leads}
}

// Contact resolves a lead to its deliverable address. A deleted lead or one
// whose email was never backfilled returns ok false, which the worker treats
// as a permanently undeliverable step.
func (a *LeadDirectoryAdapter) Contact(ctx context.Context, leadID uuid.UUID) (dispatch.LeadContact, bool, error) {
	lead, err := a.leads.Get(ctx, leadID)
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindNotFound {
			return dispatch.LeadContact{}, false, nil
		}
		return dispatch.LeadContact{}, false, err
	}
	if lead.Email == nil || *lead.Email == "" {
		return dispatch.LeadContact{}, false, nil
	}

	contact := dispatch.LeadContact{Email: *lead.Email}
	if lead.Name != nil {
		contact.Name = *lead.Name
	}
	return contact, true, nil
}

var _ dispatch.LeadDirectory = (*LeadDirectoryAdapter)(nil)

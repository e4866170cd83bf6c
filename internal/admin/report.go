// AngelaMos | 2026
// report.go

package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

const topLoanedLimit = 5

type ReportResponse struct {
	TotalDocuments     int               `json:"total_documents"`
	PhysicalAvailable  int               `json:"physical_available"`
	PhysicalBorrowed   int               `json:"physical_borrowed"`
	DigitalDocuments   int               `json:"digital_documents"`
	ActiveLoans        int               `json:"active_loans"`
	ActiveReservations int               `json:"active_reservations"`
	Members            int               `json:"members"`
	ActiveMembers      int               `json:"active_members"`
	Staff              int               `json:"staff"`
	MostLoaned         []MostLoanedEntry `json:"most_loaned"`
}

type MostLoanedEntry struct {
	DocumentID  string `json:"document_id"`
	Title       string `json:"title"`
	ActiveLoans int    `json:"active_loans"`
}

type counter struct {
	dst   *int
	count func() (int, error)
}

// BuildReport collects the library statistics shown to managers. Counts
// are read outside a transaction and may be a few rows apart.
func BuildReport(ctx context.Context, repos store.Repos) (*ReportResponse, error) {
	physical, digital := true, true

	var (
		rep    ReportResponse
		counts []counter
	)

	add := func(dst *int, count func() (int, error)) {
		counts = append(counts, counter{dst: dst, count: count})
	}

	add(&rep.TotalDocuments, func() (int, error) {
		return repos.Documents.Count(ctx, catalogue.CountFilter{})
	})
	add(&rep.PhysicalAvailable, func() (int, error) {
		return repos.Documents.Count(ctx, catalogue.CountFilter{
			IsPhysical: &physical,
			Status:     catalogue.StatusAvailable,
		})
	})
	add(&rep.PhysicalBorrowed, func() (int, error) {
		return repos.Documents.Count(ctx, catalogue.CountFilter{
			IsPhysical: &physical,
			Status:     catalogue.StatusBorrowed,
		})
	})
	add(&rep.DigitalDocuments, func() (int, error) {
		return repos.Documents.Count(ctx, catalogue.CountFilter{IsDigital: &digital})
	})
	add(&rep.ActiveLoans, func() (int, error) {
		return repos.Loans.CountActive(ctx)
	})
	add(&rep.ActiveReservations, func() (int, error) {
		return repos.Reservations.CountActive(ctx)
	})
	add(&rep.Members, func() (int, error) {
		return repos.Users.Count(ctx, membership.CountFilter{
			Roles: []string{membership.RoleMember},
		})
	})
	add(&rep.ActiveMembers, func() (int, error) {
		return repos.Users.Count(ctx, membership.CountFilter{
			Roles:              []string{membership.RoleMember},
			SubscriptionStatus: membership.StatusActive,
		})
	})
	add(&rep.Staff, func() (int, error) {
		return repos.Users.Count(ctx, membership.CountFilter{
			Roles: []string{
				membership.RoleLibrarian,
				membership.RoleAttendant,
				membership.RoleManager,
			},
		})
	})

	for _, c := range counts {
		n, err := c.count()
		if err != nil {
			return nil, fmt.Errorf("build report: %w", err)
		}
		*c.dst = n
	}

	top, err := repos.Loans.TopActive(ctx, topLoanedLimit)
	if err != nil {
		return nil, fmt.Errorf("build report: top loaned: %w", err)
	}

	rep.MostLoaned = make([]MostLoanedEntry, 0, len(top))
	for _, t := range top {
		entry := MostLoanedEntry{DocumentID: t.DocumentID, ActiveLoans: t.Count}

		doc, err := repos.Documents.GetByID(ctx, t.DocumentID)
		switch {
		case err == nil:
			entry.Title = doc.Title
		case errors.Is(err, core.ErrNotFound):
			entry.Title = "(deleted)"
		default:
			return nil, fmt.Errorf("build report: document title: %w", err)
		}

		rep.MostLoaned = append(rep.MostLoaned, entry)
	}

	return &rep, nil
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Store == nil {
		core.JSONError(w, core.UnavailableError(
			"report store not configured", "REPORT_UNAVAILABLE"))
		return
	}

	rep, err := BuildReport(r.Context(), h.cfg.Store.Repos())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, rep)
}

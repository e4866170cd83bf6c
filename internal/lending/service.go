// AngelaMos | 2026
// service.go

package lending

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
)

type Service struct {
	loans        LoanRepository
	reservations ReservationRepository
	documents    catalogue.Repository
}

func NewService(
	loans LoanRepository,
	reservations ReservationRepository,
	documents catalogue.Repository,
) *Service {
	return &Service{
		loans:        loans,
		reservations: reservations,
		documents:    documents,
	}
}

// ActiveLoans lists a member's active loans, soonest due first. Loans past
// their due date stay listed until the member touches them.
func (s *Service) ActiveLoans(
	ctx context.Context,
	userID string,
) ([]LoanResponse, error) {
	loans, err := s.loans.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		title, err := s.title(ctx, loans[i].DocumentID)
		if err != nil {
			return nil, fmt.Errorf("active loans: %w", err)
		}
		out = append(out, ToLoanResponse(&loans[i], title))
	}

	return out, nil
}

func (s *Service) ActiveReservations(
	ctx context.Context,
	userID string,
) ([]ReservationResponse, error) {
	reservations, err := s.reservations.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]ReservationResponse, 0, len(reservations))
	for i := range reservations {
		title, err := s.title(ctx, reservations[i].DocumentID)
		if err != nil {
			return nil, fmt.Errorf("active reservations: %w", err)
		}
		out = append(out, ToReservationResponse(&reservations[i], title))
	}

	return out, nil
}

func (s *Service) title(ctx context.Context, documentID string) (string, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return doc.Title, nil
}

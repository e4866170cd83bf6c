// AngelaMos | 2026
// dto.go

package lifecycle

import (
	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/lending"
	"github.com/carterperez-dev/bibliotech/internal/membership"
)

type CheckoutRequest struct {
	DocumentID     string `json:"document_id"     validate:"required"`
	MemberUsername string `json:"member_username" validate:"required"`
}

type ReturnRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
}

type ResultResponse struct {
	Outcome               Outcome                      `json:"outcome"`
	Message               string                       `json:"message"`
	CancelledReservations int                          `json:"cancelled_reservations"`
	Document              *catalogue.DocumentResponse  `json:"document,omitempty"`
	Loan                  *lending.LoanResponse        `json:"loan,omitempty"`
	Reservation           *lending.ReservationResponse `json:"reservation,omitempty"`
	User                  *membership.UserResponse     `json:"user,omitempty"`
	Plan                  *membership.PlanDetails      `json:"plan,omitempty"`
}

func ToResultResponse(res Result) ResultResponse {
	out := ResultResponse{
		Outcome:               res.Outcome,
		Message:               res.Message,
		CancelledReservations: res.Cancelled,
	}

	title := ""
	if res.Document != nil {
		doc := catalogue.ToDocumentResponse(res.Document)
		out.Document = &doc
		title = res.Document.Title
	}
	if res.Loan != nil {
		loan := lending.ToLoanResponse(res.Loan, title)
		out.Loan = &loan
	}
	if res.Reservation != nil {
		reservation := lending.ToReservationResponse(res.Reservation, title)
		out.Reservation = &reservation
	}
	if res.User != nil {
		user := membership.ToUserResponse(res.User)
		out.User = &user
	}

	return out
}

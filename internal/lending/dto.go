// AngelaMos | 2026
// dto.go

package lending

import (
	"time"
)

type LoanResponse struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	DocumentTitle string    `json:"document_title,omitempty"`
	LoanDate      time.Time `json:"loan_date"`
	DueDate       time.Time `json:"due_date"`
	Status        string    `json:"status"`
}

type ReservationResponse struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	DocumentTitle   string    `json:"document_title,omitempty"`
	ReservationDate time.Time `json:"reservation_date"`
	Status          string    `json:"status"`
}

func ToLoanResponse(l *Loan, title string) LoanResponse {
	return LoanResponse{
		ID:            l.ID,
		DocumentID:    l.DocumentID,
		DocumentTitle: title,
		LoanDate:      l.LoanDate,
		DueDate:       l.DueDate,
		Status:        l.Status,
	}
}

func ToReservationResponse(r *Reservation, title string) ReservationResponse {
	return ReservationResponse{
		ID:              r.ID,
		DocumentID:      r.DocumentID,
		DocumentTitle:   title,
		ReservationDate: r.ReservationDate,
		Status:          r.Status,
	}
}

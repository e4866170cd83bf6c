// AngelaMos | 2026
// entity.go

package lending

import (
	"time"
)

type Loan struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	DocumentID string    `db:"document_id"`
	LoanDate   time.Time `db:"loan_date"`
	DueDate    time.Time `db:"due_date"`
	Status     string    `db:"status"`
}

const (
	LoanActive   = "active"
	LoanReturned = "returned"
	LoanExpired  = "expired"
)

func (l *Loan) IsActive() bool {
	return l.Status == LoanActive
}

// IsOverdue reports whether an active loan is past its due date at now.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.IsActive() && now.After(l.DueDate)
}

type Reservation struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	DocumentID      string    `db:"document_id"`
	ReservationDate time.Time `db:"reservation_date"`
	Status          string    `db:"status"`
}

// ReservationHonored exists in the schema for a future pickup flow; no
// transition writes it today.
const (
	ReservationActive    = "active"
	ReservationCancelled = "cancelled"
	ReservationHonored   = "honored"
)

func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// DocumentLoanCount is one row of the most-loaned ranking.
type DocumentLoanCount struct {
	DocumentID string `db:"document_id"`
	Count      int    `db:"loan_count"`
}

// AngelaMos | 2026
// repository.go

package lending

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/bibliotech/internal/core"
)

type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) error
	GetByID(ctx context.Context, id string) (*Loan, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Loan, error)
	FindActive(ctx context.Context, userID, documentID string) (*Loan, error)
	UpdateStatus(ctx context.Context, id, status string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
	ListActiveForUser(ctx context.Context, userID string) ([]Loan, error)
	CountActive(ctx context.Context) (int, error)
	TopActive(ctx context.Context, limit int) ([]DocumentLoanCount, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, res *Reservation) error
	GetByID(ctx context.Context, id string) (*Reservation, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Reservation, error)
	FindActive(ctx context.Context, userID, documentID string) (*Reservation, error)
	UpdateStatus(ctx context.Context, id, status string) error
	CancelActiveForDocument(ctx context.Context, documentID string) (int, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
	ListActiveForUser(ctx context.Context, userID string) ([]Reservation, error)
	CountActive(ctx context.Context) (int, error)
}

type loanRepository struct {
	db core.DBTX
}

func NewLoanRepository(db core.DBTX) LoanRepository {
	return &loanRepository{db: db}
}

const loanColumns = `id, user_id, document_id, loan_date, due_date, status`

func (r *loanRepository) Create(ctx context.Context, loan *Loan) error {
	query := `
		INSERT INTO loans (id, user_id, document_id, loan_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.UserID,
		loan.DocumentID,
		loan.LoanDate,
		loan.DueDate,
		loan.Status,
	)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create loan: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create loan: %w", err)
	}

	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id string) (*Loan, error) {
	return r.getOne(ctx, "get loan",
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
}

func (r *loanRepository) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*Loan, error) {
	return r.getOne(ctx, "lock loan",
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id)
}

func (r *loanRepository) FindActive(
	ctx context.Context,
	userID, documentID string,
) (*Loan, error) {
	return r.getOne(ctx, "find active loan", `
		SELECT `+loanColumns+` FROM loans
		WHERE user_id = $1 AND document_id = $2 AND status = 'active'
		FOR UPDATE`, userID, documentID)
}

func (r *loanRepository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Loan, error) {
	var loan Loan
	err := r.db.GetContext(ctx, &loan, query, args...)
	if core.IsNoRows(err) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &loan, nil
}

func (r *loanRepository) UpdateStatus(
	ctx context.Context,
	id, status string,
) error {
	return updateStatus(ctx, r.db, "loans", id, status)
}

func (r *loanRepository) DeleteByUser(
	ctx context.Context,
	userID string,
) (int, error) {
	return execCount(ctx, r.db, "delete user loans",
		`DELETE FROM loans WHERE user_id = $1`, userID)
}

func (r *loanRepository) DeleteByDocument(
	ctx context.Context,
	documentID string,
) (int, error) {
	return execCount(ctx, r.db, "delete document loans",
		`DELETE FROM loans WHERE document_id = $1`, documentID)
}

func (r *loanRepository) ListActiveForUser(
	ctx context.Context,
	userID string,
) ([]Loan, error) {
	query := `
		SELECT ` + loanColumns + ` FROM loans
		WHERE user_id = $1 AND status = 'active'
		ORDER BY due_date ASC`

	var loans []Loan
	if err := r.db.SelectContext(ctx, &loans, query, userID); err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}

	return loans, nil
}

func (r *loanRepository) CountActive(ctx context.Context) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM loans WHERE status = 'active'`)
	if err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}

	return total, nil
}

func (r *loanRepository) TopActive(
	ctx context.Context,
	limit int,
) ([]DocumentLoanCount, error) {
	query := `
		SELECT document_id, COUNT(*) AS loan_count
		FROM loans
		WHERE status = 'active'
		GROUP BY document_id
		ORDER BY loan_count DESC, document_id ASC
		LIMIT $1`

	var rows []DocumentLoanCount
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("rank active loans: %w", err)
	}

	return rows, nil
}

type reservationRepository struct {
	db core.DBTX
}

func NewReservationRepository(db core.DBTX) ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `id, user_id, document_id, reservation_date, status`

func (r *reservationRepository) Create(
	ctx context.Context,
	res *Reservation,
) error {
	query := `
		INSERT INTO reservations (id, user_id, document_id, reservation_date, status)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		res.ID,
		res.UserID,
		res.DocumentID,
		res.ReservationDate,
		res.Status,
	)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create reservation: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create reservation: %w", err)
	}

	return nil
}

func (r *reservationRepository) GetByID(
	ctx context.Context,
	id string,
) (*Reservation, error) {
	return r.getOne(ctx, "get reservation",
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *reservationRepository) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*Reservation, error) {
	return r.getOne(ctx, "lock reservation",
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *reservationRepository) FindActive(
	ctx context.Context,
	userID, documentID string,
) (*Reservation, error) {
	return r.getOne(ctx, "find active reservation", `
		SELECT `+reservationColumns+` FROM reservations
		WHERE user_id = $1 AND document_id = $2 AND status = 'active'
		FOR UPDATE`, userID, documentID)
}

func (r *reservationRepository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Reservation, error) {
	var res Reservation
	err := r.db.GetContext(ctx, &res, query, args...)
	if core.IsNoRows(err) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &res, nil
}

func (r *reservationRepository) UpdateStatus(
	ctx context.Context,
	id, status string,
) error {
	return updateStatus(ctx, r.db, "reservations", id, status)
}

func (r *reservationRepository) CancelActiveForDocument(
	ctx context.Context,
	documentID string,
) (int, error) {
	return execCount(ctx, r.db, "cancel document reservations", `
		UPDATE reservations SET status = 'cancelled'
		WHERE document_id = $1 AND status = 'active'`, documentID)
}

func (r *reservationRepository) DeleteByUser(
	ctx context.Context,
	userID string,
) (int, error) {
	return execCount(ctx, r.db, "delete user reservations",
		`DELETE FROM reservations WHERE user_id = $1`, userID)
}

func (r *reservationRepository) DeleteByDocument(
	ctx context.Context,
	documentID string,
) (int, error) {
	return execCount(ctx, r.db, "delete document reservations",
		`DELETE FROM reservations WHERE document_id = $1`, documentID)
}

func (r *reservationRepository) ListActiveForUser(
	ctx context.Context,
	userID string,
) ([]Reservation, error) {
	query := `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE user_id = $1 AND status = 'active'
		ORDER BY reservation_date DESC`

	var reservations []Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, userID); err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}

	return reservations, nil
}

func (r *reservationRepository) CountActive(ctx context.Context) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM reservations WHERE status = 'active'`)
	if err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}

	return total, nil
}

func updateStatus(
	ctx context.Context,
	db core.DBTX,
	table, id, status string,
) error {
	n, err := execCount(ctx, db, "update "+table+" status",
		`UPDATE `+table+` SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("update %s status: %w", table, core.ErrNotFound)
	}

	return nil
}

func execCount(
	ctx context.Context,
	db core.DBTX,
	op, query string,
	args ...any,
) (int, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(rows), nil
}

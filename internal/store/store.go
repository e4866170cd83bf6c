// AngelaMos | 2026
// store.go

package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/lending"
	"github.com/carterperez-dev/bibliotech/internal/membership"
)

// Repos groups the repositories a lifecycle transition touches. A Repos
// handed to a WithinTx callback is bound to that transaction.
type Repos struct {
	Users        membership.Repository
	Documents    catalogue.Repository
	Loans        lending.LoanRepository
	Reservations lending.ReservationRepository
}

type Store interface {
	Repos() Repos
	// WithinTx runs fn in one unit of work. Every write fn makes is
	// committed together when fn returns nil and discarded otherwise.
	WithinTx(ctx context.Context, fn func(Repos) error) error
}

type SQL struct {
	db *core.Database
}

func NewSQL(db *core.Database) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Repos() Repos {
	return ReposOver(s.db.DB)
}

func (s *SQL) WithinTx(ctx context.Context, fn func(Repos) error) error {
	return s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ReposOver(tx))
	})
}

// ReposOver binds the SQL repositories to db, which may be a pool or a
// transaction.
func ReposOver(db core.DBTX) Repos {
	return Repos{
		Users:        membership.NewRepository(db),
		Documents:    catalogue.NewRepository(db),
		Loans:        lending.NewLoanRepository(db),
		Reservations: lending.NewReservationRepository(db),
	}
}

var _ Store = (*SQL)(nil)

// AngelaMos | 2026
// reservations.go

package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/lending"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

var errReservationNotYours = core.ForbiddenError(
	"you do not have access to this reservation")

// Reserve queues the actor for a physical document that is currently out.
// Asking for a document that is on the shelf is answered with an
// informational result and writes nothing.
func (e *Engine) Reserve(
	ctx context.Context,
	actor Actor,
	documentID string,
) (Result, error) {
	return e.run(ctx, "reserve", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleMember); err != nil {
			return Result{}, err
		}

		var (
			doc         *catalogue.Document
			reservation *lending.Reservation
		)

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			doc, err = repos.Documents.GetByIDForUpdate(ctx, documentID)
			if err != nil {
				return notFound(err, "document")
			}

			if !doc.IsPhysical {
				return core.PreconditionError(
					"reservations are only available for physical documents")
			}

			_, err = repos.Reservations.FindActive(ctx, actor.ID, doc.ID)
			if err == nil {
				return alreadyReserved(doc)
			}
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}

			if !doc.IsBorrowed() {
				return nil
			}

			reservation = &lending.Reservation{
				ID:              uuid.NewString(),
				UserID:          actor.ID,
				DocumentID:      doc.ID,
				ReservationDate: e.clock(),
				Status:          lending.ReservationActive,
			}

			if err := repos.Reservations.Create(ctx, reservation); err != nil {
				if errors.Is(err, core.ErrDuplicateKey) {
					return alreadyReserved(doc)
				}
				return err
			}

			return nil
		})
		if err != nil {
			return Result{}, fmt.Errorf("reserve: %w", err)
		}

		if reservation == nil {
			return Result{
				Outcome:  OutcomeInformational,
				Message:  fmt.Sprintf("Document %q is available, no reservation needed.", doc.Title),
				Document: doc,
			}, nil
		}

		return Result{
			Outcome:     OutcomeApplied,
			Message:     fmt.Sprintf("Document %q reserved.", doc.Title),
			Document:    doc,
			Reservation: reservation,
		}, nil
	})
}

func alreadyReserved(doc *catalogue.Document) error {
	return core.PreconditionError(
		fmt.Sprintf("you already have an active reservation for %q", doc.Title))
}

func (e *Engine) CancelReservation(
	ctx context.Context,
	actor Actor,
	reservationID string,
) (Result, error) {
	return e.run(ctx, "cancel_reservation", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleMember); err != nil {
			return Result{}, err
		}

		var (
			reservation *lending.Reservation
			inactive    bool
		)

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			reservation, err = repos.Reservations.GetByIDForUpdate(ctx, reservationID)
			if errors.Is(err, core.ErrNotFound) {
				return errReservationNotYours
			}
			if err != nil {
				return err
			}

			if reservation.UserID != actor.ID {
				return errReservationNotYours
			}

			if !reservation.IsActive() {
				inactive = true
				return nil
			}

			reservation.Status = lending.ReservationCancelled
			return repos.Reservations.UpdateStatus(
				ctx, reservation.ID, lending.ReservationCancelled)
		})
		if err != nil {
			return Result{}, fmt.Errorf("cancel reservation: %w", err)
		}

		if inactive {
			return Result{
				Outcome:     OutcomeAlreadyInactive,
				Message:     "Reservation is already inactive.",
				Reservation: reservation,
			}, nil
		}

		return Result{
			Outcome:     OutcomeApplied,
			Message:     "Reservation cancelled.",
			Reservation: reservation,
		}, nil
	})
}

// AngelaMos | 2026
// circulation.go

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

// RecordCheckout marks a physical document as lent to a member at the
// desk. No loan row is kept for physical lending.
func (e *Engine) RecordCheckout(
	ctx context.Context,
	actor Actor,
	documentID, memberUsername string,
) (Result, error) {
	return e.run(ctx, "record_checkout", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleAttendant); err != nil {
			return Result{}, err
		}

		memberUsername = strings.TrimSpace(memberUsername)
		if documentID == "" || memberUsername == "" {
			return Result{}, core.BadRequestError(
				"document id and member username are required")
		}

		var doc *catalogue.Document

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			member, err := repos.Users.GetByUsername(ctx, memberUsername)
			if errors.Is(err, core.ErrNotFound) || (err == nil && !member.IsMember()) {
				return core.NotFoundError(fmt.Sprintf("member %q", memberUsername))
			}
			if err != nil {
				return err
			}

			doc, err = repos.Documents.GetByIDForUpdate(ctx, documentID)
			if err != nil {
				return notFound(err, "document")
			}

			if !doc.IsPhysical {
				return core.PreconditionError(
					"only physical documents can be checked out at the desk")
			}
			if doc.Status != catalogue.StatusAvailable {
				return core.PreconditionError(
					fmt.Sprintf("document %q is not available", doc.Title))
			}

			doc.Status = catalogue.StatusBorrowed
			return repos.Documents.Update(ctx, doc)
		})
		if err != nil {
			return Result{}, fmt.Errorf("record checkout: %w", err)
		}

		return Result{
			Outcome:  OutcomeApplied,
			Message:  fmt.Sprintf("Document %q lent to %s.", doc.Title, memberUsername),
			Document: doc,
		}, nil
	})
}

// RecordReturn brings a physical document back to available and clears
// its reservation queue.
func (e *Engine) RecordReturn(
	ctx context.Context,
	actor Actor,
	documentID string,
) (Result, error) {
	return e.run(ctx, "record_return", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleAttendant); err != nil {
			return Result{}, err
		}

		if documentID == "" {
			return Result{}, core.BadRequestError("document id is required")
		}

		var (
			doc       *catalogue.Document
			cancelled int
		)

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			doc, err = repos.Documents.GetByIDForUpdate(ctx, documentID)
			if err != nil {
				return notFound(err, "document")
			}

			if !doc.IsPhysical {
				return core.PreconditionError(
					"only physical documents can be returned at the desk")
			}
			if !doc.IsBorrowed() {
				return core.PreconditionError(
					fmt.Sprintf("document %q is not borrowed", doc.Title))
			}

			doc.Status = catalogue.StatusAvailable
			if err := repos.Documents.Update(ctx, doc); err != nil {
				return err
			}

			cancelled, err = repos.Reservations.CancelActiveForDocument(ctx, doc.ID)
			return err
		})
		if err != nil {
			return Result{}, fmt.Errorf("record return: %w", err)
		}

		return Result{
			Outcome:   OutcomeApplied,
			Message:   withCancelled(fmt.Sprintf("Document %q returned.", doc.Title), cancelled),
			Cancelled: cancelled,
			Document:  doc,
		}, nil
	})
}

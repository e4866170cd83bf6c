// AngelaMos | 2026
// users.go

package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

type StaffInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

func (e *Engine) CreateStaff(
	ctx context.Context,
	actor Actor,
	in StaffInput,
) (Result, error) {
	return e.run(ctx, "create_staff", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleManager); err != nil {
			return Result{}, err
		}

		username := strings.TrimSpace(in.Username)
		if username == "" || in.Password == "" {
			return Result{}, core.BadRequestError("username and password are required")
		}
		if in.Role != membership.RoleLibrarian && in.Role != membership.RoleAttendant {
			return Result{}, core.BadRequestError("role must be librarian or attendant")
		}

		user := &membership.User{
			ID:                 uuid.NewString(),
			Username:           username,
			Email:              optional(in.Email),
			Role:               in.Role,
			SubscriptionStatus: membership.StatusNotApplicable,
			SubscriptionType:   membership.PlanNone,
		}

		if err := e.createAccount(ctx, user, in.Password); err != nil {
			return Result{}, fmt.Errorf("create staff: %w", err)
		}

		return Result{
			Outcome: OutcomeApplied,
			Message: fmt.Sprintf("%s account %q created.", user.Role, user.Username),
			User:    user,
		}, nil
	})
}

// DeleteUser removes an account with its loans and reservations. Managers
// cannot remove themselves or each other.
func (e *Engine) DeleteUser(
	ctx context.Context,
	actor Actor,
	userID string,
) (Result, error) {
	return e.run(ctx, "delete_user", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleManager); err != nil {
			return Result{}, err
		}

		if userID == actor.ID {
			return Result{}, core.PreconditionError("you cannot delete your own account")
		}

		var user *membership.User

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			user, err = repos.Users.GetByIDForUpdate(ctx, userID)
			if err != nil {
				return notFound(err, "user")
			}

			if user.IsManager() {
				return core.PreconditionError("manager accounts cannot be deleted")
			}

			if _, err := repos.Loans.DeleteByUser(ctx, user.ID); err != nil {
				return err
			}
			if _, err := repos.Reservations.DeleteByUser(ctx, user.ID); err != nil {
				return err
			}

			return repos.Users.Delete(ctx, user.ID)
		})
		if err != nil {
			return Result{}, fmt.Errorf("delete user: %w", err)
		}

		e.logger.InfoContext(ctx, "user deleted",
			"user_id", user.ID,
			"role", user.Role,
			"deleted_by", actor.ID,
		)

		return Result{
			Outcome: OutcomeApplied,
			Message: fmt.Sprintf("User %q (%s) deleted.", user.Username, user.Role),
			User:    user,
		}, nil
	})
}

// SimulateFinePayment acknowledges a late-fee payment. Nothing is charged
// or stored.
func (e *Engine) SimulateFinePayment(
	ctx context.Context,
	actor Actor,
	documentID string,
) (Result, error) {
	return e.run(ctx, "simulate_fine_payment", actor, func(ctx context.Context) (Result, error) {
		if actor.ID == "" {
			return Result{}, core.UnauthorizedError("")
		}

		msg := "Simulated fine payment processed."
		if doc, err := e.store.Repos().Documents.GetByID(ctx, documentID); err == nil {
			msg = fmt.Sprintf("Simulated fine payment processed for %q.", doc.Title)
		}

		e.logger.InfoContext(ctx, "simulated fine payment",
			"user_id", actor.ID,
			"document_id", documentID,
		)

		return Result{Outcome: OutcomeInformational, Message: msg}, nil
	})
}

// AngelaMos | 2026
// subscriptions.go

package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

// system is the actor recorded for self-service flows that run before the
// caller has an account.
var system = Actor{ID: "system", Role: "system"}

type RegisterInput struct {
	Username         string
	Email            string
	Password         string
	SubscriptionType string
}

// Register creates a member account waiting for its first payment.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (Result, error) {
	return e.run(ctx, "register", system, func(ctx context.Context) (Result, error) {
		username := strings.TrimSpace(in.Username)
		email := strings.TrimSpace(in.Email)

		if username == "" || in.Password == "" {
			return Result{}, core.BadRequestError("username and password are required")
		}
		if !membership.IsValidPlan(in.SubscriptionType) {
			return Result{}, core.BadRequestError(
				"subscription type must be monthly or annual")
		}

		user := &membership.User{
			ID:                 uuid.NewString(),
			Username:           username,
			Email:              optional(email),
			Role:               membership.RoleMember,
			SubscriptionStatus: membership.StatusPending,
			SubscriptionType:   in.SubscriptionType,
		}

		if err := e.createAccount(ctx, user, in.Password); err != nil {
			return Result{}, fmt.Errorf("register: %w", err)
		}

		return Result{
			Outcome: OutcomeApplied,
			Message: "Account created, awaiting payment.",
			User:    user,
		}, nil
	})
}

// PaymentInput is the simulated checkout form. Card details are accepted
// for form compatibility and never read.
type PaymentInput struct {
	SubscriptionType string
	CardholderName   string
	CardNumber       string
	ExpiryDate       string
	CVC              string
}

// ActivateSubscription moves a pending member to active for the paid
// period. Any other subscription state is refused.
func (e *Engine) ActivateSubscription(
	ctx context.Context,
	userID string,
	in PaymentInput,
) (Result, error) {
	return e.run(ctx, "activate_subscription", system, func(ctx context.Context) (Result, error) {
		period, err := e.period(in.SubscriptionType)
		if err != nil {
			return Result{}, err
		}

		var user *membership.User

		err = e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			user, err = repos.Users.GetByIDForUpdate(ctx, userID)
			if err != nil {
				return notFound(err, "user")
			}

			if !user.IsMember() ||
				user.SubscriptionStatus != membership.StatusPending {
				return core.PreconditionError(
					"only accounts awaiting payment can be activated")
			}

			start := e.clock()
			end := start.Add(period)

			user.SubscriptionStatus = membership.StatusActive
			user.SubscriptionType = in.SubscriptionType
			user.SubscriptionStartDate = &start
			user.SubscriptionEndDate = &end

			return repos.Users.UpdateSubscription(ctx, user)
		})
		if err != nil {
			return Result{}, fmt.Errorf("activate subscription: %w", err)
		}

		e.logger.InfoContext(ctx, "simulated payment accepted",
			"user_id", user.ID,
			"subscription_type", user.SubscriptionType,
		)

		return Result{
			Outcome: OutcomeApplied,
			Message: "Payment accepted, your account is active.",
			User:    user,
		}, nil
	})
}

func (e *Engine) period(plan string) (time.Duration, error) {
	switch plan {
	case membership.PlanMonthly:
		return e.monthly, nil
	case membership.PlanAnnual:
		return e.annual, nil
	default:
		return 0, core.BadRequestError(
			"subscription type must be monthly or annual")
	}
}

// createAccount hashes the password and inserts user, rejecting a taken
// username or email.
func (e *Engine) createAccount(
	ctx context.Context,
	user *membership.User,
	password string,
) error {
	hash, err := e.hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	email := ""
	if user.Email != nil {
		email = *user.Email
	}

	return e.store.WithinTx(ctx, func(repos store.Repos) error {
		taken, err := repos.Users.ExistsByUsernameOrEmail(ctx, user.Username, email)
		if err != nil {
			return err
		}
		if taken {
			return core.DuplicateError("username or email")
		}

		if err := repos.Users.Create(ctx, user); err != nil {
			if core.IsUniqueViolation(err) {
				return core.DuplicateError("username or email")
			}
			return err
		}

		return nil
	})
}

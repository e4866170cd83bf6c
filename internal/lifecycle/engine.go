// AngelaMos | 2026
// engine.go

package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/lending"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

// Actor is the authenticated identity an operation runs as.
type Actor struct {
	ID   string
	Role string
}

// Outcome classifies a request that did not fail. Only OutcomeApplied
// means state changed.
type Outcome string

const (
	// OutcomeApplied means the operation changed persisted state.
	OutcomeApplied         Outcome = "applied"
	// OutcomeAlreadyInactive means the loan or reservation was already
	// closed, so the request was a no-op.
	OutcomeAlreadyInactive Outcome = "already_inactive"
	// OutcomeInformational means nothing was changed and Message says why.
	OutcomeInformational   Outcome = "informational"
)

// Result reports what an operation did. Cancelled is the number of
// reservations swept when a document became available again.
type Result struct {
	Outcome     Outcome
	Message     string
	Cancelled   int
	Document    *catalogue.Document
	Loan        *lending.Loan
	Reservation *lending.Reservation
	User        *membership.User
}

// Files is the storage collaborator the engine reads PDFs from and
// manages covers in.
type Files interface {
	PDFExists(ctx context.Context, name string) (bool, error)
	OpenPDF(ctx context.Context, name string) (io.ReadCloser, error)
	RemovePDF(ctx context.Context, name string) error
	SaveCover(ctx context.Context, filename string, r io.Reader) (string, error)
	RemoveCover(ctx context.Context, name string) error
}

// Engine owns every state change in the library: catalogue edits, loans,
// reservations and accounts. Writes run inside a store transaction, and an
// Engine is safe for concurrent use.
type Engine struct {
	store        store.Store
	files        Files
	logger       *slog.Logger
	now          func() time.Time
	hashPassword func(string) (string, error)
	loanPeriod   time.Duration
	monthly      time.Duration
	annual       time.Duration
}

// Option adjusts an Engine built by New.
type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger for failed operations and notable events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPasswordHasher replaces the argon2id hasher used for new accounts.
func WithPasswordHasher(hash func(string) (string, error)) Option {
	return func(e *Engine) {
		e.hashPassword = hash
	}
}

// WithLendingConfig sets loan and subscription periods. Zero fields keep
// the defaults.
func WithLendingConfig(cfg config.LendingConfig) Option {
	return func(e *Engine) {
		if cfg.DigitalLoanDays > 0 {
			e.loanPeriod = cfg.DigitalLoanDuration()
		}
		if cfg.MonthlyDays > 0 {
			e.monthly = days(cfg.MonthlyDays)
		}
		if cfg.AnnualDays > 0 {
			e.annual = days(cfg.AnnualDays)
		}
	}
}

// New returns an Engine over st and files. Without options it uses the
// default slog logger, the wall clock, argon2id password hashing and the
// default loan and subscription periods.
func New(st store.Store, files Files, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		files:        files,
		logger:       slog.Default(),
		now:          time.Now,
		hashPassword: core.HashPassword,
		loanPeriod:   days(14),
		monthly:      days(30),
		annual:       days(365),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// run wraps one operation in a span and records its outcome.
func (e *Engine) run(
	ctx context.Context,
	op string,
	actor Actor,
	fn func(ctx context.Context) (Result, error),
) (Result, error) {
	ctx, span := core.StartSpan(ctx, "lifecycle."+op,
		attribute.String("actor.id", actor.ID),
		attribute.String("actor.role", actor.Role),
	)
	defer span.End()

	res, err := fn(ctx)
	if err != nil {
		outcome := classify(err)
		core.LifecycleTransitions.WithLabelValues(op, outcome).Inc()
		span.SetAttributes(attribute.String("outcome", outcome))
		if outcome == "failed" {
			core.SetSpanError(ctx, err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.ErrorContext(ctx, "lifecycle operation failed",
				"operation", op,
				"actor_id", actor.ID,
				"error", err,
			)
		}
		return Result{}, err
	}

	core.LifecycleTransitions.WithLabelValues(op, string(res.Outcome)).Inc()
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Cancelled > 0 {
		core.CascadedCancellations.Add(float64(res.Cancelled))
		core.AddSpanEvent(ctx, "reservations.cancelled",
			attribute.Int("count", res.Cancelled))
	}

	return res, nil
}

func classify(err error) string {
	if appErr, ok := core.AsAppError(err); ok &&
		appErr.StatusCode < http.StatusInternalServerError {
		return "rejected"
	}
	return "failed"
}

func requireRole(actor Actor, role string) error {
	if actor.ID == "" {
		return core.UnauthorizedError("")
	}
	if actor.Role != role {
		return core.ForbiddenError(role + " role required")
	}
	return nil
}

// notFound converts a repository miss into a client error and passes any
// other failure through untouched.
func notFound(err error, resource string) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundError(resource)
	}
	return err
}

// AngelaMos | 2026
// loans.go

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/lending"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/storage"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

var errLoanNotYours = core.ForbiddenError("you do not have access to this loan")

func (e *Engine) BorrowDigital(
	ctx context.Context,
	actor Actor,
	documentID string,
) (Result, error) {
	return e.run(ctx, "borrow_digital", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleMember); err != nil {
			return Result{}, err
		}

		var (
			doc  *catalogue.Document
			loan *lending.Loan
		)

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			doc, err = repos.Documents.GetByIDForUpdate(ctx, documentID)
			if err != nil {
				return notFound(err, "document")
			}

			if !doc.IsDigital {
				return core.PreconditionError(
					fmt.Sprintf("document %q has no digital version", doc.Title))
			}
			if !doc.HasFile() {
				return core.PreconditionError(
					fmt.Sprintf("document %q has no file attached", doc.Title))
			}

			_, err = repos.Loans.FindActive(ctx, actor.ID, doc.ID)
			if err == nil {
				return alreadyBorrowed(doc)
			}
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}

			exists, err := e.files.PDFExists(ctx, *doc.FilePath)
			if errors.Is(err, core.ErrUnsafeFileRef) {
				return core.PreconditionError(
					fmt.Sprintf("document %q has an invalid file reference", doc.Title))
			}
			if err != nil {
				return fmt.Errorf("check pdf: %w", err)
			}
			if !exists {
				return core.PreconditionError(
					fmt.Sprintf("file for document %q is missing", doc.Title))
			}

			now := e.clock()
			loan = &lending.Loan{
				ID:         uuid.NewString(),
				UserID:     actor.ID,
				DocumentID: doc.ID,
				LoanDate:   now,
				DueDate:    now.Add(e.loanPeriod),
				Status:     lending.LoanActive,
			}

			if err := repos.Loans.Create(ctx, loan); err != nil {
				if errors.Is(err, core.ErrDuplicateKey) {
					return alreadyBorrowed(doc)
				}
				return err
			}

			return nil
		})
		if err != nil {
			return Result{}, fmt.Errorf("borrow digital: %w", err)
		}

		return Result{
			Outcome: OutcomeApplied,
			Message: fmt.Sprintf("Document %q borrowed until %s.",
				doc.Title, loan.DueDate.Format("2006-01-02")),
			Document: doc,
			Loan:     loan,
		}, nil
	})
}

func alreadyBorrowed(doc *catalogue.Document) error {
	return core.PreconditionError(
		fmt.Sprintf("you already have an active loan for %q", doc.Title))
}

// LoanFile is an open handle on the PDF behind an active loan.
type LoanFile struct {
	Name string
	Body io.ReadCloser
}

// AccessLoan opens the PDF behind one of the actor's loans. A loan found
// past its due date is marked expired and the same call is refused with
// core.ErrLoanExpired; the status change is committed either way.
func (e *Engine) AccessLoan(
	ctx context.Context,
	actor Actor,
	loanID string,
) (*LoanFile, error) {
	var file *LoanFile

	_, err := e.run(ctx, "access_loan", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleMember); err != nil {
			return Result{}, err
		}

		var (
			name    string
			expired bool
		)

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			loan, err := e.ownLoan(ctx, repos, actor, loanID)
			if err != nil {
				return err
			}

			if !loan.IsActive() {
				return core.PreconditionError("loan is no longer active")
			}

			if loan.IsOverdue(e.clock()) {
				expired = true
				return repos.Loans.UpdateStatus(ctx, loan.ID, lending.LoanExpired)
			}

			doc, err := repos.Documents.GetByID(ctx, loan.DocumentID)
			if err != nil {
				return notFound(err, "document")
			}
			if doc.FilePath == nil || *doc.FilePath == "" {
				return core.NotFoundError("file")
			}

			name, err = storage.SanitizeFileRef(*doc.FilePath)
			if err != nil {
				return core.BadRequestError("invalid file reference")
			}

			return nil
		})
		if err != nil {
			return Result{}, fmt.Errorf("access loan: %w", err)
		}

		if expired {
			core.ExpiredOnAccess.Inc()
			return Result{}, core.LoanExpiredError()
		}

		body, err := e.files.OpenPDF(ctx, name)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				e.logger.WarnContext(ctx, "pdf missing for active loan",
					"loan_id", loanID,
					"file", name,
				)
				return Result{}, core.NotFoundError("file")
			}
			return Result{}, fmt.Errorf("open pdf: %w", err)
		}

		file = &LoanFile{Name: name, Body: body}

		return Result{Outcome: OutcomeApplied}, nil
	})
	if err != nil {
		return nil, err
	}

	return file, nil
}

// ReturnLoan ends one of the actor's loans early. Returning a loan that is
// no longer active changes nothing.
func (e *Engine) ReturnLoan(
	ctx context.Context,
	actor Actor,
	loanID string,
) (Result, error) {
	return e.run(ctx, "return_loan", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleMember); err != nil {
			return Result{}, err
		}

		var (
			loan     *lending.Loan
			inactive bool
		)

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			loan, err = e.ownLoan(ctx, repos, actor, loanID)
			if err != nil {
				return err
			}

			if !loan.IsActive() {
				inactive = true
				return nil
			}

			loan.Status = lending.LoanReturned
			return repos.Loans.UpdateStatus(ctx, loan.ID, lending.LoanReturned)
		})
		if err != nil {
			return Result{}, fmt.Errorf("return loan: %w", err)
		}

		if inactive {
			return Result{
				Outcome: OutcomeAlreadyInactive,
				Message: "Loan is already inactive.",
				Loan:    loan,
			}, nil
		}

		return Result{
			Outcome: OutcomeApplied,
			Message: "Loan returned.",
			Loan:    loan,
		}, nil
	})
}

// ownLoan locks a loan for update. A missing loan and someone else's loan
// produce the same error.
func (e *Engine) ownLoan(
	ctx context.Context,
	repos store.Repos,
	actor Actor,
	loanID string,
) (*lending.Loan, error) {
	loan, err := repos.Loans.GetByIDForUpdate(ctx, loanID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, errLoanNotYours
	}
	if err != nil {
		return nil, err
	}

	if loan.UserID != actor.ID {
		return nil, errLoanNotYours
	}

	return loan, nil
}

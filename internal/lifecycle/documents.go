// AngelaMos | 2026
// documents.go

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/storage"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

// DocumentInput carries the editable fields of a document. Status is only
// honoured by EditDocument and only for physical documents; an empty
// Status keeps the current one.
type DocumentInput struct {
	Title       string
	Author      string
	Summary     string
	IsPhysical  bool
	IsDigital   bool
	FilePath    string
	Status      string
	RemoveCover bool
}

type normalizedDocument struct {
	title    string
	author   *string
	summary  *string
	filePath *string
}

func normalizeDocument(in DocumentInput) (normalizedDocument, error) {
	var out normalizedDocument

	out.title = strings.TrimSpace(in.Title)
	if out.title == "" {
		return out, core.BadRequestError("title is required")
	}

	if !in.IsPhysical && !in.IsDigital {
		return out, core.BadRequestError(
			"document must be physical, digital, or both")
	}

	if in.IsDigital {
		name := storage.BaseName(in.FilePath)
		if name == "" {
			return out, core.BadRequestError(
				"a PDF file name is required for digital documents")
		}
		out.filePath = &name
	}

	if in.Status != "" && !catalogue.IsValidStatus(in.Status) {
		return out, core.BadRequestError("status must be available or borrowed")
	}

	out.author = optional(in.Author)
	out.summary = optional(in.Summary)

	return out, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (e *Engine) CreateDocument(
	ctx context.Context,
	actor Actor,
	in DocumentInput,
) (Result, error) {
	return e.run(ctx, "create_document", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleLibrarian); err != nil {
			return Result{}, err
		}

		fields, err := normalizeDocument(in)
		if err != nil {
			return Result{}, err
		}

		doc := &catalogue.Document{
			ID:         uuid.NewString(),
			Title:      fields.title,
			Author:     fields.author,
			Summary:    fields.summary,
			Status:     catalogue.StatusAvailable,
			IsPhysical: in.IsPhysical,
			IsDigital:  in.IsDigital,
			FilePath:   fields.filePath,
		}

		err = e.store.WithinTx(ctx, func(repos store.Repos) error {
			return repos.Documents.Create(ctx, doc)
		})
		if err != nil {
			return Result{}, fmt.Errorf("create document: %w", err)
		}

		return Result{
			Outcome:  OutcomeApplied,
			Message:  fmt.Sprintf("Document %q added.", doc.Title),
			Document: doc,
		}, nil
	})
}

// EditDocument applies a librarian edit. A document leaving the borrowed
// state, by explicit status or by losing its physical format, cancels
// every active reservation on it in the same unit of work.
func (e *Engine) EditDocument(
	ctx context.Context,
	actor Actor,
	documentID string,
	in DocumentInput,
) (Result, error) {
	return e.run(ctx, "edit_document", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleLibrarian); err != nil {
			return Result{}, err
		}

		fields, err := normalizeDocument(in)
		if err != nil {
			return Result{}, err
		}

		var (
			doc        *catalogue.Document
			cancelled  int
			staleCover string
		)

		err = e.store.WithinTx(ctx, func(repos store.Repos) error {
			doc, err = repos.Documents.GetByIDForUpdate(ctx, documentID)
			if err != nil {
				return notFound(err, "document")
			}

			previous := doc.Status

			doc.Title = fields.title
			doc.Author = fields.author
			doc.Summary = fields.summary
			doc.IsPhysical = in.IsPhysical
			doc.IsDigital = in.IsDigital
			doc.FilePath = fields.filePath

			switch {
			case !doc.IsPhysical:
				doc.Status = catalogue.StatusAvailable
			case in.Status != "":
				doc.Status = in.Status
			}

			if in.RemoveCover && doc.CoverImage != nil {
				staleCover = *doc.CoverImage
				doc.CoverImage = nil
			}

			if err := repos.Documents.Update(ctx, doc); err != nil {
				return err
			}

			if previous == catalogue.StatusBorrowed &&
				doc.Status == catalogue.StatusAvailable {
				cancelled, err = repos.Reservations.CancelActiveForDocument(ctx, doc.ID)
				if err != nil {
					return err
				}
			}

			return nil
		})
		if err != nil {
			return Result{}, fmt.Errorf("edit document: %w", err)
		}

		if staleCover != "" {
			e.discard(ctx, "cover", staleCover, e.files.RemoveCover)
		}

		return Result{
			Outcome:   OutcomeApplied,
			Message:   withCancelled(fmt.Sprintf("Document %q updated.", doc.Title), cancelled),
			Cancelled: cancelled,
			Document:  doc,
		}, nil
	})
}

// SetCover stores a new cover image and points the document at it. The
// previous cover is removed once the change is committed; the new file is
// removed again if the commit fails.
func (e *Engine) SetCover(
	ctx context.Context,
	actor Actor,
	documentID, filename string,
	body io.Reader,
) (Result, error) {
	return e.run(ctx, "set_cover", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleLibrarian); err != nil {
			return Result{}, err
		}

		if _, ok := storage.CoverExtension(filename); !ok {
			return Result{}, core.BadRequestError(
				"cover must be a png, jpg, jpeg, gif or webp image")
		}

		if _, err := e.store.Repos().Documents.GetByID(ctx, documentID); err != nil {
			return Result{}, notFound(err, "document")
		}

		name, err := e.files.SaveCover(ctx, filename, body)
		if err != nil {
			if errors.Is(err, core.ErrInvalidInput) {
				return Result{}, core.BadRequestError("cover image rejected")
			}
			return Result{}, fmt.Errorf("set cover: %w", err)
		}

		var (
			doc        *catalogue.Document
			staleCover string
		)

		err = e.store.WithinTx(ctx, func(repos store.Repos) error {
			doc, err = repos.Documents.GetByIDForUpdate(ctx, documentID)
			if err != nil {
				return notFound(err, "document")
			}

			if doc.CoverImage != nil {
				staleCover = *doc.CoverImage
			}
			doc.CoverImage = &name

			return repos.Documents.Update(ctx, doc)
		})
		if err != nil {
			e.discard(ctx, "cover", name, e.files.RemoveCover)
			return Result{}, fmt.Errorf("set cover: %w", err)
		}

		if staleCover != "" {
			e.discard(ctx, "cover", staleCover, e.files.RemoveCover)
		}

		return Result{
			Outcome:  OutcomeApplied,
			Message:  "Cover image updated.",
			Document: doc,
		}, nil
	})
}

// DeleteDocument removes a document together with every loan and
// reservation that references it. Stored files go after the commit.
func (e *Engine) DeleteDocument(
	ctx context.Context,
	actor Actor,
	documentID string,
) (Result, error) {
	return e.run(ctx, "delete_document", actor, func(ctx context.Context) (Result, error) {
		if err := requireRole(actor, membership.RoleLibrarian); err != nil {
			return Result{}, err
		}

		var doc *catalogue.Document

		err := e.store.WithinTx(ctx, func(repos store.Repos) error {
			var err error
			doc, err = repos.Documents.GetByIDForUpdate(ctx, documentID)
			if err != nil {
				return notFound(err, "document")
			}

			if _, err := repos.Loans.DeleteByDocument(ctx, doc.ID); err != nil {
				return err
			}
			if _, err := repos.Reservations.DeleteByDocument(ctx, doc.ID); err != nil {
				return err
			}

			return repos.Documents.Delete(ctx, doc.ID)
		})
		if err != nil {
			return Result{}, fmt.Errorf("delete document: %w", err)
		}

		if doc.CoverImage != nil {
			e.discard(ctx, "cover", *doc.CoverImage, e.files.RemoveCover)
		}
		if doc.FilePath != nil {
			e.discard(ctx, "pdf", *doc.FilePath, e.files.RemovePDF)
		}

		return Result{
			Outcome:  OutcomeApplied,
			Message:  fmt.Sprintf("Document %q deleted.", doc.Title),
			Document: doc,
		}, nil
	})
}

func (e *Engine) discard(
	ctx context.Context,
	kind, name string,
	remove func(context.Context, string) error,
) {
	if err := remove(ctx, name); err != nil {
		e.logger.WarnContext(ctx, "failed to remove stored file",
			"kind", kind,
			"name", name,
			"error", err,
		)
	}
}

func withCancelled(msg string, cancelled int) string {
	switch cancelled {
	case 0:
		return msg
	case 1:
		return msg + " 1 active reservation cancelled."
	default:
		return fmt.Sprintf("%s %d active reservations cancelled.", msg, cancelled)
	}
}

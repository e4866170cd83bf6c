// AngelaMos | 2026
// repository.go

package catalogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/bibliotech/internal/core"
)

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Document, error)
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params ListDocumentsParams) ([]Document, int, error)
	Count(ctx context.Context, filter CountFilter) (int, error)
}

// CountFilter narrows Count; nil pointers and empty strings match all rows.
type CountFilter struct {
	IsPhysical *bool
	IsDigital  *bool
	Status     string
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const documentColumns = `id, title, author, summary, status, is_physical,
		       is_digital, file_path, cover_image, created_at, updated_at`

func (r *repository) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, title, author, summary, status,
			is_physical, is_digital, file_path, cover_image
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Author,
		doc.Summary,
		doc.Status,
		doc.IsPhysical,
		doc.IsDigital,
		doc.FilePath,
		doc.CoverImage,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Document, error) {
	return r.getOne(ctx, "get document",
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

func (r *repository) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*Document, error) {
	return r.getOne(ctx, "lock document",
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query, id string,
) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, query, id)
	if core.IsNoRows(err) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &doc, nil
}

func (r *repository) Update(ctx context.Context, doc *Document) error {
	query := `
		UPDATE documents
		SET title = $2, author = $3, summary = $4, status = $5,
		    is_physical = $6, is_digital = $7, file_path = $8,
		    cover_image = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &doc.UpdatedAt, query,
		doc.ID,
		doc.Title,
		doc.Author,
		doc.Summary,
		doc.Status,
		doc.IsPhysical,
		doc.IsDigital,
		doc.FilePath,
		doc.CoverImage,
	)
	if core.IsNoRows(err) {
		return fmt.Errorf("update document: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete document: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListDocumentsParams,
) ([]Document, int, error) {
	params.Normalize()

	whereClause := "TRUE"
	var args []any

	if q := strings.TrimSpace(params.Query); q != "" {
		whereClause = "(title ILIKE $1 OR author ILIKE $1)"
		args = append(args, "%"+core.EscapeLike(q)+"%")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM documents WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+documentColumns+`
		FROM documents
		WHERE %s
		ORDER BY title ASC, id ASC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var docs []Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	return docs, total, nil
}

func (r *repository) Count(ctx context.Context, filter CountFilter) (int, error) {
	conditions := []string{"TRUE"}
	var args []any

	if filter.IsPhysical != nil {
		args = append(args, *filter.IsPhysical)
		conditions = append(conditions, fmt.Sprintf("is_physical = $%d", len(args)))
	}
	if filter.IsDigital != nil {
		args = append(args, *filter.IsDigital)
		conditions = append(conditions, fmt.Sprintf("is_digital = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	var total int
	query := "SELECT COUNT(*) FROM documents WHERE " + strings.Join(conditions, " AND ")
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}

	return total, nil
}

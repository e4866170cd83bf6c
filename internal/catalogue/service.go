// AngelaMos | 2026
// service.go

package catalogue

import (
	"context"
	"fmt"
	"io"

	"github.com/carterperez-dev/bibliotech/internal/core"
)

// CoverOpener reads cover images from the file storage collaborator.
type CoverOpener interface {
	OpenCover(ctx context.Context, name string) (io.ReadCloser, error)
}

type Service struct {
	repo   Repository
	covers CoverOpener
}

func NewService(repo Repository, covers CoverOpener) *Service {
	return &Service{repo: repo, covers: covers}
}

func (s *Service) List(
	ctx context.Context,
	params ListDocumentsParams,
) ([]Document, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.GetByID(ctx, id)
}

// OpenCover returns the cover image of a document and its stored name.
func (s *Service) OpenCover(
	ctx context.Context,
	id string,
) (io.ReadCloser, string, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if doc.CoverImage == nil {
		return nil, "", fmt.Errorf("open cover: %w", core.ErrNotFound)
	}

	rc, err := s.covers.OpenCover(ctx, *doc.CoverImage)
	if err != nil {
		return nil, "", fmt.Errorf("open cover: %w", err)
	}

	return rc, *doc.CoverImage, nil
}

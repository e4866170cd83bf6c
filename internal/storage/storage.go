// AngelaMos | 2026
// storage.go

package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
)

type Kind string

const (
	KindCover Kind = "covers"
	KindPDF   Kind = "pdfs"
)

// Backend stores opaque blobs grouped by kind. Open returns an error
// wrapping core.ErrNotFound for a missing name; Remove of a missing name
// is not an error.
type Backend interface {
	Exists(ctx context.Context, kind Kind, name string) (bool, error)
	Open(ctx context.Context, kind Kind, name string) (io.ReadCloser, error)
	Save(ctx context.Context, kind Kind, name string, r io.Reader) error
	Remove(ctx context.Context, kind Kind, name string) error
	Ping(ctx context.Context) error
}

var allowedCoverExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"webp": {},
}

// Files is the file collaborator used by the catalogue and the lifecycle
// engine. Every name it hands to the backend has been sanitized.
type Files struct {
	backend        Backend
	maxUploadBytes int64
}

func New(backend Backend, maxUploadBytes int64) *Files {
	return &Files{backend: backend, maxUploadBytes: maxUploadBytes}
}

// FromConfig builds Files over the configured backend. The returned close
// func releases backend resources.
func FromConfig(
	ctx context.Context,
	cfg config.StorageConfig,
) (*Files, func() error, error) {
	switch cfg.Backend {
	case "gcs":
		backend, err := NewGCS(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return New(backend, cfg.MaxUploadBytes), backend.Close, nil
	default:
		backend, err := NewLocal(cfg.CoversDir, cfg.PDFsDir)
		if err != nil {
			return nil, nil, err
		}
		return New(backend, cfg.MaxUploadBytes), func() error { return nil }, nil
	}
}

// SaveCover stores an uploaded cover under a fresh random name that keeps
// the original extension, and returns that name.
func (f *Files) SaveCover(
	ctx context.Context,
	filename string,
	r io.Reader,
) (string, error) {
	ext, ok := CoverExtension(filename)
	if !ok {
		return "", fmt.Errorf("save cover %q: %w", filename, core.ErrInvalidInput)
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext

	if f.maxUploadBytes > 0 {
		r = &limitedReader{r: r, limit: f.maxUploadBytes}
	}

	if err := f.backend.Save(ctx, KindCover, name, r); err != nil {
		return "", fmt.Errorf("save cover: %w", err)
	}

	return name, nil
}

func (f *Files) OpenCover(ctx context.Context, name string) (io.ReadCloser, error) {
	return f.open(ctx, KindCover, name)
}

func (f *Files) RemoveCover(ctx context.Context, name string) error {
	return f.remove(ctx, KindCover, name)
}

func (f *Files) PDFExists(ctx context.Context, name string) (bool, error) {
	clean, err := SanitizeFileRef(name)
	if err != nil {
		return false, err
	}
	return f.backend.Exists(ctx, KindPDF, clean)
}

func (f *Files) OpenPDF(ctx context.Context, name string) (io.ReadCloser, error) {
	return f.open(ctx, KindPDF, name)
}

func (f *Files) RemovePDF(ctx context.Context, name string) error {
	return f.remove(ctx, KindPDF, name)
}

// Ping reports whether the backend can currently serve files.
func (f *Files) Ping(ctx context.Context) error {
	return f.backend.Ping(ctx)
}

func (f *Files) open(
	ctx context.Context,
	kind Kind,
	name string,
) (io.ReadCloser, error) {
	clean, err := SanitizeFileRef(name)
	if err != nil {
		return nil, err
	}
	return f.backend.Open(ctx, kind, clean)
}

func (f *Files) remove(ctx context.Context, kind Kind, name string) error {
	clean, err := SanitizeFileRef(name)
	if err != nil {
		return err
	}
	return f.backend.Remove(ctx, kind, clean)
}

// SanitizeFileRef rejects stored references that could escape the storage
// root: absolute paths and any ".." segment.
func SanitizeFileRef(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty file reference: %w", core.ErrUnsafeFileRef)
	}

	slashed := filepath.ToSlash(ref)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(ref) {
		return "", fmt.Errorf("absolute file reference %q: %w", ref, core.ErrUnsafeFileRef)
	}

	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", fmt.Errorf("file reference %q leaves root: %w", ref, core.ErrUnsafeFileRef)
		}
	}

	clean := path.Clean(slashed)
	if clean == "." {
		return "", fmt.Errorf("file reference %q names the root: %w", ref, core.ErrUnsafeFileRef)
	}

	return clean, nil
}

// BaseName reduces a client supplied PDF reference to its final path
// element. It returns "" when nothing usable is left.
func BaseName(ref string) string {
	ref = strings.TrimSpace(filepath.ToSlash(ref))
	if ref == "" {
		return ""
	}

	base := path.Base(ref)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// CoverExtension returns the lowercased extension of an allowed cover
// image name.
func CoverExtension(filename string) (string, bool) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", false
	}

	ext := strings.ToLower(filename[idx+1:])
	_, ok := allowedCoverExtensions[ext]
	return ext, ok
}

type limitedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, fmt.Errorf("upload exceeds %d bytes: %w", l.limit, core.ErrInvalidInput)
	}
	return n, err
}

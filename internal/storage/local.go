// AngelaMos | 2026
// local.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/carterperez-dev/bibliotech/internal/core"
)

// Local keeps each kind in its own directory on the host filesystem.
type Local struct {
	dirs map[Kind]string
}

func NewLocal(coversDir, pdfsDir string) (*Local, error) {
	dirs := map[Kind]string{
		KindCover: coversDir,
		KindPDF:   pdfsDir,
	}

	for kind, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", kind, err)
		}
	}

	return &Local{dirs: dirs}, nil
}

func (l *Local) path(kind Kind, name string) (string, error) {
	dir, ok := l.dirs[kind]
	if !ok {
		return "", fmt.Errorf("unknown storage kind %q", kind)
	}
	return filepath.Join(dir, filepath.FromSlash(name)), nil
}

func (l *Local) Exists(_ context.Context, kind Kind, name string) (bool, error) {
	p, err := l.path(kind, name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}

	return info.Mode().IsRegular(), nil
}

func (l *Local) Open(
	_ context.Context,
	kind Kind,
	name string,
) (io.ReadCloser, error) {
	p, err := l.path(kind, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p) //nolint:gosec // name sanitized by Files
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	return f, nil
}

func (l *Local) Save(
	_ context.Context,
	kind Kind,
	name string,
	r io.Reader,
) error {
	p, err := l.path(kind, name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()           //nolint:errcheck
		_ = os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("rename %s: %w", name, err)
	}

	return nil
}

func (l *Local) Remove(_ context.Context, kind Kind, name string) error {
	p, err := l.path(kind, name)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}

	return nil
}

// Ping checks that every kind directory is still present.
func (l *Local) Ping(_ context.Context) error {
	for kind, dir := range l.dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat %s dir: %w", kind, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s dir %s is not a directory", kind, dir)
		}
	}
	return nil
}

var _ Backend = (*Local)(nil)

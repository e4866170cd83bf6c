// AngelaMos | 2026
// gcs.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
)

// GCS stores each kind under its own object prefix in one bucket.
type GCS struct {
	client   *gcs.Client
	bucket   string
	prefixes map[Kind]string
}

func NewGCS(ctx context.Context, cfg config.StorageConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentials))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCS{
		client: client,
		bucket: cfg.GCSBucket,
		prefixes: map[Kind]string{
			KindCover: cfg.GCSCoversPrefix,
			KindPDF:   cfg.GCSPDFsPrefix,
		},
	}, nil
}

func (g *GCS) object(kind Kind, name string) (*gcs.ObjectHandle, error) {
	prefix, ok := g.prefixes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
	return g.client.Bucket(g.bucket).Object(path.Join(prefix, name)), nil
}

func (g *GCS) Exists(ctx context.Context, kind Kind, name string) (bool, error) {
	obj, err := g.object(kind, name)
	if err != nil {
		return false, err
	}

	_, err = obj.Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat gs://%s/%s: %w", g.bucket, obj.ObjectName(), err)
	}

	return true, nil
}

func (g *GCS) Open(
	ctx context.Context,
	kind Kind,
	name string,
) (io.ReadCloser, error) {
	obj, err := g.object(kind, name)
	if err != nil {
		return nil, err
	}

	rc, err := obj.NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("open %s: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", g.bucket, obj.ObjectName(), err)
	}

	return rc, nil
}

func (g *GCS) Save(
	ctx context.Context,
	kind Kind,
	name string,
	r io.Reader,
) error {
	obj, err := g.object(kind, name)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(writeCtx)
	w.ContentType = contentType(kind, name)
	w.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close() //nolint:errcheck // upload aborted by cancel
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, obj.ObjectName(), err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", g.bucket, obj.ObjectName(), err)
	}

	return nil
}

func (g *GCS) Remove(ctx context.Context, kind Kind, name string) error {
	obj, err := g.object(kind, name)
	if err != nil {
		return err
	}

	err = obj.Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", g.bucket, obj.ObjectName(), err)
	}

	return nil
}

func (g *GCS) Ping(ctx context.Context) error {
	if _, err := g.client.Bucket(g.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", g.bucket, err)
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func contentType(kind Kind, name string) string {
	if kind == KindPDF {
		return "application/pdf"
	}
	switch path.Ext(name) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

var _ Backend = (*GCS)(nil)

// AngelaMos | 2026
// storage_test.go

package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/core"
)

func newLocalFiles(t *testing.T, maxUpload int64) (*Files, string, string) {
	t.Helper()

	root := t.TempDir()
	covers := filepath.Join(root, "covers")
	pdfs := filepath.Join(root, "pdfs")

	backend, err := NewLocal(covers, pdfs)
	require.NoError(t, err)

	return New(backend, maxUpload), covers, pdfs
}

func TestSanitizeFileRef(t *testing.T) {
	t.Run("accepts plain and nested names", func(t *testing.T) {
		for ref, want := range map[string]string{
			"book.pdf":      "book.pdf",
			"sub/book.pdf":  "sub/book.pdf",
			"./book.pdf":    "book.pdf",
			"sub//book.pdf": "sub/book.pdf",
			"sub/./a.pdf":   "sub/a.pdf",
		} {
			got, err := SanitizeFileRef(ref)
			require.NoError(t, err, ref)
			assert.Equal(t, want, got, ref)
		}
	})

	t.Run("rejects escaping references", func(t *testing.T) {
		for _, ref := range []string{
			"",
			".",
			"./",
			"/etc/passwd",
			"../secret.pdf",
			"sub/../../secret.pdf",
			"..",
		} {
			_, err := SanitizeFileRef(ref)
			assert.ErrorIs(t, err, core.ErrUnsafeFileRef, "ref %q", ref)
		}
	})
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "book.pdf", BaseName("book.pdf"))
	assert.Equal(t, "book.pdf", BaseName("  uploads/pdfs/book.pdf "))
	assert.Equal(t, "book.pdf", BaseName("../../book.pdf"))
	assert.Equal(t, "", BaseName(""))
	assert.Equal(t, "", BaseName("   "))
	assert.Equal(t, "", BaseName(".."))
	assert.Equal(t, "", BaseName("/"))
}

func TestCoverExtension(t *testing.T) {
	for name, want := range map[string]string{
		"cover.png":   "png",
		"cover.JPG":   "jpg",
		"a.b.jpeg":    "jpeg",
		"anim.gif":    "gif",
		"modern.WebP": "webp",
	} {
		ext, ok := CoverExtension(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, ext, name)
	}

	for _, name := range []string{"cover", "cover.", "cover.svg", "cover.pdf", ""} {
		_, ok := CoverExtension(name)
		assert.False(t, ok, name)
	}
}

func TestFiles_Covers(t *testing.T) {
	ctx := context.Background()

	t.Run("save open remove round trip", func(t *testing.T) {
		files, coversDir, _ := newLocalFiles(t, 1024)

		name, err := files.SaveCover(ctx, "Front.PNG", strings.NewReader("image-bytes"))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, ".png"))
		assert.NotContains(t, name, "Front")
		assert.NotContains(t, name, "-")

		rc, err := files.OpenCover(ctx, name)
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		assert.Equal(t, "image-bytes", string(body))

		require.NoError(t, files.RemoveCover(ctx, name))
		_, err = os.Stat(filepath.Join(coversDir, name))
		assert.True(t, os.IsNotExist(err))

		require.NoError(t, files.RemoveCover(ctx, name), "second remove is a no-op")
	})

	t.Run("rejects disallowed extension", func(t *testing.T) {
		files, _, _ := newLocalFiles(t, 1024)

		_, err := files.SaveCover(ctx, "cover.svg", strings.NewReader("<svg/>"))
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("enforces upload limit", func(t *testing.T) {
		files, coversDir, _ := newLocalFiles(t, 8)

		_, err := files.SaveCover(ctx, "big.png", bytes.NewReader(make([]byte, 9)))
		assert.ErrorIs(t, err, core.ErrInvalidInput)

		entries, err := os.ReadDir(coversDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "partial upload must not be left behind")

		_, err = files.SaveCover(ctx, "exact.png", bytes.NewReader(make([]byte, 8)))
		assert.NoError(t, err)
	})

	t.Run("missing cover is not found", func(t *testing.T) {
		files, _, _ := newLocalFiles(t, 0)

		_, err := files.OpenCover(ctx, "nope.png")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestFiles_PDFs(t *testing.T) {
	ctx := context.Background()
	files, _, pdfsDir := newLocalFiles(t, 0)

	require.NoError(t, os.WriteFile(filepath.Join(pdfsDir, "book.pdf"), []byte("%PDF"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(pdfsDir, "folder.pdf"), 0o750))

	exists, err := files.PDFExists(ctx, "book.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = files.PDFExists(ctx, "missing.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = files.PDFExists(ctx, "folder.pdf")
	require.NoError(t, err)
	assert.False(t, exists, "directories are not files")

	_, err = files.PDFExists(ctx, "../book.pdf")
	assert.ErrorIs(t, err, core.ErrUnsafeFileRef)

	_, err = files.OpenPDF(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, core.ErrUnsafeFileRef)

	rc, err := files.OpenPDF(ctx, "book.pdf")
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, files.RemovePDF(ctx, "book.pdf"))
	_, err = files.OpenPDF(ctx, "book.pdf")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

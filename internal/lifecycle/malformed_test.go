// AngelaMos | 2026
// malformed_test.go

package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/storage"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

// uuidColumnDB fails every lookup the way Postgres does when a uuid column
// is compared against text that does not parse.
type uuidColumnDB struct {
	core.DBTX
}

func (uuidColumnDB) GetContext(context.Context, any, string, ...any) error {
	return &pgconn.PgError{
		Code:    "22P02",
		Message: `invalid input syntax for type uuid: "abc"`,
	}
}

type sqlReposStore struct {
	db core.DBTX
}

func (s sqlReposStore) Repos() store.Repos {
	return store.ReposOver(s.db)
}

func (s sqlReposStore) WithinTx(_ context.Context, fn func(store.Repos) error) error {
	return fn(store.ReposOver(s.db))
}

func TestHandler_MalformedIDs(t *testing.T) {
	backend, err := storage.NewLocal(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	engine := New(
		sqlReposStore{db: uuidColumnDB{}},
		storage.New(backend, 1<<20),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	r := chi.NewRouter()
	NewHandler(engine, 1<<20).RegisterRoutes(r, headerAuth)

	tests := []struct {
		name   string
		method string
		path   string
		actor  Actor
		status int
	}{
		{"return loan", http.MethodPost, "/loans/abc/return", member, http.StatusForbidden},
		{"access loan", http.MethodGet, "/loans/abc/file", member, http.StatusForbidden},
		{"cancel reservation", http.MethodPost, "/reservations/x/cancel", member, http.StatusForbidden},
		{"borrow", http.MethodPost, "/documents/abc/borrow", member, http.StatusNotFound},
		{"reserve", http.MethodPost, "/documents/abc/reserve", member, http.StatusNotFound},
		{"delete document", http.MethodDelete, "/documents/abc", librarian, http.StatusNotFound},
		{"delete user", http.MethodDelete, "/staff/users/abc", manager, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := call(t, r, tt.method, tt.path, tt.actor, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.NotEqual(t, "INTERNAL_ERROR", env.Error.Code)
		})
	}
}

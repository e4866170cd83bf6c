// AngelaMos | 2026
// handler_test.go

package membership_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
)

// asUser stands in for token verification: the caller named in X-User
// is treated as signed in.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-User"); id != "" {
			r = r.WithContext(middleware.WithIdentity(r.Context(),
				&middleware.AccessTokenClaims{UserID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

func passThrough(next http.Handler) http.Handler { return next }

func serveMembership(t *testing.T, userID, path string) (int, core.Response, []membership.UserResponse) {
	t.Helper()

	r := chi.NewRouter()
	h := membership.NewHandler(newMembership(t))
	h.RegisterRoutes(r, asUser)
	h.RegisterManagerRoutes(r, asUser, passThrough)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != "" {
		req.Header.Set("X-User", userID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var users []membership.UserResponse
	if raw, ok := env.Data.([]any); ok {
		b, err := json.Marshal(raw)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &users))
	}
	return rec.Code, env, users
}

func TestHandler_GetMe(t *testing.T) {
	code, env, _ := serveMembership(t, "u1", "/users/me")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", env.Data.(map[string]any)["username"])
	assert.NotContains(t, env.Data.(map[string]any), "password_hash")

	code, env, _ = serveMembership(t, "", "/users/me")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, env, _ = serveMembership(t, "gone", "/users/me")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestHandler_StaffUsers(t *testing.T) {
	t.Run("pages a role filter", func(t *testing.T) {
		code, env, users := serveMembership(t, "u3", "/staff/users?role=member&page_size=1")
		require.Equal(t, http.StatusOK, code)
		require.Len(t, users, 1)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 2, env.Meta.Total)
		assert.Equal(t, 2, env.Meta.TotalPages)
		assert.Equal(t, 1, env.Meta.PageSize)
	})

	t.Run("clamps page size", func(t *testing.T) {
		code, env, users := serveMembership(t, "u3", "/staff/users?page_size=500")
		require.Equal(t, http.StatusOK, code)
		assert.Len(t, users, 3)
		assert.Equal(t, 100, env.Meta.PageSize)
	})

	t.Run("unknown role", func(t *testing.T) {
		code, env, _ := serveMembership(t, "u3", "/staff/users?role=janitor")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "BAD_REQUEST", env.Error.Code)
	})

	t.Run("single account", func(t *testing.T) {
		code, env, _ := serveMembership(t, "u3", "/staff/users/u2")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "bob", env.Data.(map[string]any)["username"])

		code, _, _ = serveMembership(t, "u3", "/staff/users/missing")
		assert.Equal(t, http.StatusNotFound, code)
	})
}

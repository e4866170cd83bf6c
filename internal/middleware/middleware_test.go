// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body core.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

type fakeVerifier struct {
	claims *AccessTokenClaims
	err    error
	seen   string
}

func (f *fakeVerifier) VerifyAccessToken(
	_ context.Context,
	token string,
) (*AccessTokenClaims, error) {
	f.seen = token
	return f.claims, f.err
}

func TestAuthenticator(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		h := Authenticator(&fakeVerifier{})(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	})

	t.Run("maps verifier errors", func(t *testing.T) {
		for sentinel, code := range map[error]string{
			core.ErrTokenExpired:   "TOKEN_EXPIRED",
			core.ErrTokenRevoked:   "TOKEN_REVOKED",
			core.ErrTokenInvalid:   "TOKEN_INVALID",
			fmt.Errorf("whatever"): "TOKEN_INVALID",
		} {
			v := &fakeVerifier{err: fmt.Errorf("verify: %w", sentinel)}
			h := Authenticator(v)(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer abc")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, code, errorCode(t, rec))
		}
	})

	t.Run("stores claims in context", func(t *testing.T) {
		claims := &AccessTokenClaims{UserID: "u1", Role: RoleAttendant, JTI: "j1"}
		v := &fakeVerifier{claims: claims}

		var gotID, gotRole string
		var gotClaims *AccessTokenClaims
		h := Authenticator(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = GetUserID(r.Context())
			gotRole = GetUserRole(r.Context())
			gotClaims = GetClaims(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer  tok-123 ")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "tok-123", v.seen)
		assert.Equal(t, "u1", gotID)
		assert.Equal(t, RoleAttendant, gotRole)
		assert.Same(t, claims, gotClaims)
	})
}

func TestExtractToken(t *testing.T) {
	for header, want := range map[string]string{
		"":              "",
		"Bearer":        "",
		"Basic abc":     "",
		"Bearer abc":    "abc",
		"BEARER abc":    "abc",
		"Bearer  abc  ": "abc",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, ExtractToken(req), "header %q", header)
	}
}

func TestRequireRole(t *testing.T) {
	withRole := func(role string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role == "" {
			return req
		}
		return req.WithContext(WithIdentity(req.Context(), &AccessTokenClaims{UserID: "u1", Role: role}))
	}

	for _, tc := range []struct {
		name   string
		mw     func(http.Handler) http.Handler
		role   string
		status int
	}{
		{"anonymous", RequireMember, "", http.StatusUnauthorized},
		{"member ok", RequireMember, RoleMember, http.StatusOK},
		{"staff is not member", RequireMember, RoleLibrarian, http.StatusForbidden},
		{"manager ok", RequireManager, RoleManager, http.StatusOK},
		{"attendant is not manager", RequireManager, RoleAttendant, http.StatusForbidden},
		{"staff role list", RequireRole(RoleLibrarian, RoleAttendant), RoleAttendant, http.StatusOK},
		{"member is not staff", RequireRole(RoleLibrarian, RoleAttendant), RoleMember, http.StatusForbidden},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.mw(okHandler).ServeHTTP(rec, withRole(tc.role))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("reuses a sane inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("replaces unusable ids", func(t *testing.T) {
		for _, inbound := range []string{"", "has space", strings.Repeat("x", 65)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if inbound != "" {
				req.Header.Set(RequestIDHeader, inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.NotEqual(t, inbound, seen)
			assert.Len(t, seen, 36)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{
		AllowedOrigins:   []string{"https://library.example"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	h := CORS(cfg)(okHandler)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/documents", nil)
		req.Header.Set("Origin", "https://library.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://library.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Authorization, Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
		req.Header.Set("Origin", "https://library.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://library.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Values("Vary"), "Origin")
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard", func(t *testing.T) {
		wild := CORS(config.CORSConfig{AllowedOrigins: []string{"*"}})(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		rec := httptest.NewRecorder()
		wild.ServeHTTP(rec, req)

		assert.Equal(t, "https://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	for _, production := range []bool{false, true} {
		rec := httptest.NewRecorder()
		SecurityHeaders(production)(okHandler).ServeHTTP(
			rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, production, rec.Header().Get("Strict-Transport-Security") != "")
	}
}

func TestLogger_RecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Logger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func TestRateLimiter_LocalFallback(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{Limit: PerMinute(60, 2)})
	h := rl.Handler(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other callers keep their own bucket")
}

func TestRoleRateLimiter(t *testing.T) {
	limits := map[string]RoleLimit{
		RoleMember:    {RequestsPerMinute: 60, BurstSize: 1},
		RoleAttendant: {RequestsPerMinute: 600, BurstSize: 5},
	}
	h := RoleRateLimiter(nil, limits)(okHandler)

	send := func(userID, role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		ctx := WithIdentity(req.Context(), &AccessTokenClaims{UserID: userID, Role: role})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	rec := send("m1", RoleMember)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RoleMember, rec.Header().Get("X-RateLimit-Role"))
	assert.Equal(t, http.StatusTooManyRequests, send("m1", RoleMember).Code)

	for range 5 {
		assert.Equal(t, http.StatusOK, send("a1", RoleAttendant).Code)
	}

	rec = send("x1", "librarian")
	assert.Equal(t, RoleMember, rec.Header().Get("X-RateLimit-Role"),
		"roles without an entry get the member limit")
}

func TestKeyByUserAndEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost,
		"/v1/documents/0b6a3f0e-7c1a-4d3e-9d55-2f7f1b8c9a10/borrow", nil)
	req = req.WithContext(WithIdentity(req.Context(), &AccessTokenClaims{UserID: "u1"}))

	assert.Equal(t,
		"ratelimit:user:u1:endpoint:/v1/documents/{id}/borrow",
		KeyByUserAndEndpoint(req))

	anon := httptest.NewRequest(http.MethodGet, "/v1/loans/42/file", nil)
	anon.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t,
		"ratelimit:ip:192.0.2.7:endpoint:/v1/loans/{id}/file",
		KeyByUserAndEndpoint(anon))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"last proxy hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.3"}, "10.0.0.1:80", "10.0.0.3"},
		{"real ip header", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.1:80", "198.51.100.4"},
		{"socket address", nil, "192.0.2.7:1234", "192.0.2.7"},
		{"address without port", nil, "192.0.2.8", "192.0.2.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

// AngelaMos | 2026
// auth_test.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/config"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
)

func newJWTManager(t *testing.T, mutate ...func(*config.JWTConfig)) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	cfg := config.JWTConfig{
		PrivateKeyPath:     filepath.Join(dir, "private.pem"),
		PublicKeyPath:      filepath.Join(dir, "public.pem"),
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: time.Hour,
		Issuer:             "bibliotech",
		Audience:           "bibliotech-api",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	require.NoError(t, GenerateKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath))

	mgr, err := NewJWTManager(cfg)
	require.NoError(t, err)
	return mgr
}

func TestJWTManager_RoundTrip(t *testing.T) {
	mgr := newJWTManager(t)
	ctx := context.Background()

	token, err := mgr.CreateAccessToken(&UserInfo{
		ID:           "u1",
		Role:         "librarian",
		TokenVersion: 3,
	})
	require.NoError(t, err)

	claims, err := mgr.VerifyAccessToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "librarian", claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, time.Minute)
	assert.NotEmpty(t, mgr.KeyID())
}

func TestJWTManager_Rejects(t *testing.T) {
	ctx := context.Background()
	mgr := newJWTManager(t)

	token, err := mgr.CreateAccessToken(&UserInfo{ID: "u1", Role: "member"})
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		sig := []byte(parts[2])
		if sig[0] == 'A' {
			sig[0] = 'B'
		} else {
			sig[0] = 'A'
		}
		_, err := mgr.VerifyAccessToken(ctx, parts[0]+"."+parts[1]+"."+string(sig))
		assert.ErrorIs(t, err, core.ErrTokenInvalid)
	})

	t.Run("other key", func(t *testing.T) {
		_, err := newJWTManager(t).VerifyAccessToken(ctx, token)
		assert.ErrorIs(t, err, core.ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := mgr.VerifyAccessToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, core.ErrTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		short := newJWTManager(t, func(c *config.JWTConfig) {
			c.AccessTokenExpire = -time.Minute
		})
		expired, err := short.CreateAccessToken(&UserInfo{ID: "u1", Role: "member"})
		require.NoError(t, err)

		_, err = short.VerifyAccessToken(ctx, expired)
		require.Error(t, err)
		assert.True(t,
			errors.Is(err, core.ErrTokenExpired) || errors.Is(err, core.ErrTokenInvalid),
			"unexpected error %v", err)
	})
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func newFakeUsers(users ...*UserInfo) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*UserInfo)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) IncrementTokenVersion(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].TokenVersion++
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].PasswordHash = hash
	return nil
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: make(map[string]*RefreshToken)}
}

func (f *fakeTokens) Create(_ context.Context, token *RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.CreatedAt = time.Now()
	cp := *token
	f.tokens[token.ID] = &cp
	return nil
}

func (f *fakeTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeTokens) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTokens) MarkAsUsed(_ context.Context, id, replacedByID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.tokens[id].IsUsed = true
	f.tokens[id].UsedAt = &now
	f.tokens[id].ReplacedByID = &replacedByID
	return nil
}

func (f *fakeTokens) RevokeByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok {
		return core.ErrNotFound
	}
	revoke(t)
	return nil
}

func revoke(t *RefreshToken) {
	now := time.Now()
	t.RevokedAt = &now
}

func (f *fakeTokens) RevokeByFamilyID(_ context.Context, familyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.FamilyID == familyID {
			revoke(t)
		}
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.UserID == userID {
			revoke(t)
		}
	}
	return nil
}

func (f *fakeTokens) GetActiveSessionsForUser(
	_ context.Context,
	userID string,
) ([]RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RefreshToken
	for _, t := range f.tokens {
		if t.UserID == userID && t.Check(time.Now()) == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, t := range f.tokens {
		if t.ExpiresAt.Before(before) || (t.RevokedAt != nil && t.RevokedAt.Before(before)) {
			delete(f.tokens, id)
			n++
		}
	}
	return n, nil
}

var client = ClientInfo{UserAgent: "ua", IPAddress: "127.0.0.1"}

type fakeRevocations map[string]time.Duration

func (f fakeRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	f[jti] = ttl
	return nil
}

func (f fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := f[jti]
	return ok, nil
}

func newTestService(t *testing.T) (*Service, *fakeUsers, *fakeTokens) {
	t.Helper()

	hash, err := core.HashPassword("password")
	require.NoError(t, err)

	users := newFakeUsers(&UserInfo{
		ID:           "u1",
		Username:     "librarian",
		PasswordHash: hash,
		Role:         "librarian",
	})
	tokens := newFakeTokens()

	return NewService(tokens, newJWTManager(t), users, nil), users, tokens
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newTestService(t)

	_, err := svc.Login(ctx, LoginRequest{Username: "librarian", Password: "wrong"}, client)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Username: "nobody", Password: "password"}, client)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := svc.Login(ctx, LoginRequest{Username: "librarian", Password: "password"}, client)
	require.NoError(t, err)
	assert.Equal(t, "librarian", resp.User.Role)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)
	assert.Equal(t, 900, resp.Tokens.ExpiresIn)

	claims, err := svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	sessions, err := svc.GetActiveSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Len(t, tokens.tokens, 1)
}

func TestService_RefreshRotation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	first, err := svc.Login(ctx, LoginRequest{Username: "librarian", Password: "password"}, client)
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.Tokens.RefreshToken, client)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = svc.Refresh(ctx, first.Tokens.RefreshToken, client)
	assert.ErrorIs(t, err, ErrTokenReuse)

	_, err = svc.Refresh(ctx, second.Tokens.RefreshToken, client)
	assert.ErrorIs(t, err, core.ErrTokenRevoked, "reuse revokes the whole family")

	_, err = svc.Refresh(ctx, "unknown", client)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestService_VerifyAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("logout all invalidates earlier tokens", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		resp, err := svc.Login(ctx, LoginRequest{Username: "librarian", Password: "password"}, client)
		require.NoError(t, err)

		require.NoError(t, svc.LogoutAll(ctx, "u1"))

		_, err = svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
		assert.ErrorIs(t, err, core.ErrTokenRevoked)

		fresh, err := svc.Login(ctx, LoginRequest{Username: "librarian", Password: "password"}, client)
		require.NoError(t, err)
		_, err = svc.VerifyAccessToken(ctx, fresh.Tokens.AccessToken)
		assert.NoError(t, err)
	})

	t.Run("deleted account", func(t *testing.T) {
		svc, users, _ := newTestService(t)

		resp, err := svc.Login(ctx, LoginRequest{Username: "librarian", Password: "password"}, client)
		require.NoError(t, err)

		users.mu.Lock()
		delete(users.users, "u1")
		users.mu.Unlock()

		_, err = svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
		assert.ErrorIs(t, err, core.ErrTokenInvalid)
	})

	t.Run("revocation without a store is a no-op", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.NoError(t, svc.RevokeAccessToken(ctx, &middleware.AccessTokenClaims{
			JTI:       "jti",
			ExpiresAt: time.Now().Add(time.Minute),
		}))
	})

	t.Run("revoked access token is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		revs := fakeRevocations{}
		svc.revocations = revs

		resp, err := svc.Login(ctx, LoginRequest{Username: "librarian", Password: "password"}, client)
		require.NoError(t, err)
		claims, err := svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
		require.NoError(t, err)

		require.NoError(t, svc.RevokeAccessToken(ctx, claims))
		require.Contains(t, revs, claims.JTI)
		assert.InDelta(t, (15 * time.Minute).Seconds(), revs[claims.JTI].Seconds(), 60)

		_, err = svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
		assert.ErrorIs(t, err, core.ErrTokenRevoked)
	})

	t.Run("already expired tokens are not stored", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		revs := fakeRevocations{}
		svc.revocations = revs

		require.NoError(t, svc.RevokeAccessToken(ctx, &middleware.AccessTokenClaims{
			JTI:       "old",
			ExpiresAt: time.Now().Add(-time.Minute),
		}))
		assert.Empty(t, revs)
	})
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService(t)

	err := svc.ChangePassword(ctx, "u1", ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newsecret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, "u1", ChangePasswordRequest{CurrentPassword: "password", NewPassword: "newsecret"}))

	u, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.TokenVersion)

	_, err = svc.Login(ctx, LoginRequest{Username: "librarian", Password: "newsecret"}, client)
	assert.NoError(t, err)
}

func TestPruneExpired(t *testing.T) {
	ctx := context.Background()
	repo := newFakeTokens()
	now := time.Now()
	longAgo := now.Add(-48 * time.Hour)
	justNow := now.Add(-time.Minute)

	for _, tok := range []*RefreshToken{
		{ID: "expired-long-ago", ExpiresAt: longAgo},
		{ID: "live", ExpiresAt: now.Add(time.Hour)},
		{ID: "revoked-long-ago", ExpiresAt: now.Add(time.Hour), RevokedAt: &longAgo},
		{ID: "revoked-just-now", ExpiresAt: now.Add(time.Hour), RevokedAt: &justNow},
	} {
		require.NoError(t, repo.Create(ctx, tok))
	}

	n, err := PruneExpired(ctx, repo, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, repo.tokens, "live")
	assert.Contains(t, repo.tokens, "revoked-just-now")
	assert.NotContains(t, repo.tokens, "expired-long-ago")

	_, err = PruneExpired(ctx, repo, -time.Hour)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRefreshToken_Check(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	tests := []struct {
		name  string
		token RefreshToken
		want  error
	}{
		{"usable", RefreshToken{ExpiresAt: now.Add(time.Hour)}, nil},
		{"expired", RefreshToken{ExpiresAt: past}, core.ErrTokenExpired},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &past}, core.ErrTokenRevoked},
		{"used wins over revoked", RefreshToken{ExpiresAt: past, RevokedAt: &past, IsUsed: true}, ErrTokenReuse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.token.Check(now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type failingLookupDB struct {
	core.DBTX
	err error
}

func (db failingLookupDB) GetContext(context.Context, any, string, ...any) error {
	return db.err
}

func TestRepository_FindByIDMalformed(t *testing.T) {
	repo := NewRepository(failingLookupDB{err: &pgconn.PgError{Code: "22P02"}})

	_, err := repo.FindByID(context.Background(), "not-a-session")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = NewRepository(failingLookupDB{err: sql.ErrNoRows}).FindByHash(context.Background(), "h")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
)

type UserInfo struct {
	ID           string
	Username     string
	Email        *string
	PasswordHash string
	Role         string
	TokenVersion int
}

// UserProvider is the account store the auth flows read from. Accounts
// are created elsewhere; auth only reads them and rotates credentials.
type UserProvider interface {
	GetByUsername(ctx context.Context, username string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Revocations remembers access tokens revoked before they expire, keyed
// by jti.
type Revocations interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type redisRevocations struct {
	rdb *redis.Client
}

// NewRedisRevocations keeps revoked jtis in redis until the token would
// have expired anyway. A nil client yields nil, which disables the check.
func NewRedisRevocations(rdb *redis.Client) Revocations {
	if rdb == nil {
		return nil
	}
	return redisRevocations{rdb: rdb}
}

func (r redisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, "blacklist:"+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (r redisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, "blacklist:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

type Service struct {
	repo        Repository
	jwt         *JWTManager
	users       UserProvider
	revocations Revocations
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	users UserProvider,
	revocations Revocations,
) *Service {
	return &Service{
		repo:        repo,
		jwt:         jwt,
		users:       users,
		revocations: revocations,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	client ClientInfo,
) (*AuthResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, core.ErrNotFound):
		//nolint:errcheck // same argon2 work as a real account
		_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, upgraded, err := core.VerifyPasswordTimingSafe(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if upgraded != "" {
		//nolint:errcheck // the upgrade is retried on the next login
		_ = s.users.UpdatePassword(ctx, user.ID, upgraded)
	}

	return s.issue(ctx, user, client, "")
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes its whole family.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
	client ClientInfo,
) (*AuthResponse, error) {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
	case err != nil:
		return nil, fmt.Errorf("find token: %w", err)
	}

	switch err := stored.Check(time.Now()); {
	case errors.Is(err, ErrTokenReuse):
		//nolint:errcheck // the reuse is reported regardless
		_ = s.repo.RevokeByFamilyID(ctx, stored.FamilyID)
		return nil, ErrTokenReuse
	case err != nil:
		return nil, fmt.Errorf("refresh: %w", err)
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	resp, err := s.issue(ctx, user, client, stored.FamilyID)
	if err != nil {
		return nil, err
	}

	//nolint:errcheck // the chain link is bookkeeping; reuse is caught by Check
	_ = s.repo.MarkAsUsed(ctx, stored.ID, resp.sessionID)

	return resp, nil
}

// Logout revokes one refresh token of the caller. Unknown tokens are
// ignored; another account's token is forbidden.
func (s *Service) Logout(ctx context.Context, refreshToken, userID string) error {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find token: %w", err)
	case stored.UserID != userID:
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, stored.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// LogoutAll revokes every refresh token and bumps the token version so
// outstanding access tokens fail verification too.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}
	return nil
}

// RevokeAccessToken blacklists one access token until it expires.
func (s *Service) RevokeAccessToken(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
) error {
	if s.revocations == nil || claims == nil || claims.JTI == "" {
		return nil
	}

	ttl := s.jwt.config.AccessTokenExpire
	if !claims.ExpiresAt.IsZero() {
		ttl = time.Until(claims.ExpiresAt)
	}
	if ttl <= 0 {
		return nil
	}

	return s.revocations.Revoke(ctx, claims.JTI, ttl)
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, t.session())
	}
	return sessions, nil
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// ChangePassword replaces the password after checking the current one and
// signs the account out everywhere.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	hash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// VerifyAccessToken checks the signature, then rejects tokens that were
// blacklisted on logout or minted before the last token version bump.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.revocations != nil && claims.JTI != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.JTI)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	case claims.TokenVersion < user.TokenVersion:
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

func toUserResponse(user *UserInfo) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}

// issue signs an access token and stores the next refresh token of
// familyID, starting a new family when it is empty.
func (s *Service) issue(
	ctx context.Context,
	user *UserInfo,
	client ClientInfo,
	familyID string,
) (*AuthResponse, error) {
	access, err := s.jwt.CreateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	grant, err := s.jwt.newRefreshGrant(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	stored := &RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: grant.Hash,
		FamilyID:  grant.FamilyID,
		ExpiresAt: grant.ExpiresAt,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
	}
	if err := s.repo.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	ttl := s.jwt.config.AccessTokenExpire
	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  access,
			RefreshToken: grant.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl / time.Second),
			ExpiresAt:    time.Now().Add(ttl),
		},
		sessionID: stored.ID,
	}, nil
}

// PruneExpired deletes refresh tokens that stopped being usable more than
// retention ago.
func PruneExpired(
	ctx context.Context,
	repo Repository,
	retention time.Duration,
) (int64, error) {
	if retention < 0 {
		return 0, fmt.Errorf(
			"prune tokens: negative retention %s: %w",
			retention,
			core.ErrInvalidInput,
		)
	}

	n, err := repo.DeleteExpired(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune tokens: %w", err)
	}
	return n, nil
}

// AngelaMos | 2026
// service.go

package membership

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/bibliotech/internal/auth"
	"github.com/carterperez-dev/bibliotech/internal/core"
)

// Service is the read side of member and staff accounts. It also serves
// as the account store behind login and token verification; accounts are
// created, paid for and deleted through the lifecycle engine.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var _ auth.UserProvider = (*Service)(nil)

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	return credentials(s.repo.GetByID(ctx, id))
}

// GetByUsername ignores surrounding whitespace typed at the login form.
func (s *Service) GetByUsername(ctx context.Context, username string) (*auth.UserInfo, error) {
	return credentials(s.repo.GetByUsername(ctx, strings.TrimSpace(username)))
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func credentials(u *User, err error) (*auth.UserInfo, error) {
	if err != nil {
		return nil, err
	}
	return &auth.UserInfo{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
	}, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.GetUser(ctx, userID)
}

// ListUsers pages through accounts. An unknown role filter is rejected
// rather than matching nothing.
func (s *Service) ListUsers(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	if params.Role != "" && !IsValidRole(params.Role) {
		return nil, 0, fmt.Errorf("list users: invalid role %q: %w",
			params.Role, core.ErrInvalidInput)
	}
	return s.repo.List(ctx, params)
}

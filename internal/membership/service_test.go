// AngelaMos | 2026
// service_test.go

package membership_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/store/storetest"
)

func strPtr(s string) *string { return &s }

func newMembership(t *testing.T) *membership.Service {
	t.Helper()

	ctx := context.Background()
	repo := storetest.NewMemory().Repos().Users

	users := []membership.User{
		{ID: "u1", Username: "alice", Email: strPtr("alice@example.com"), PasswordHash: "h1", Role: membership.RoleMember},
		{ID: "u2", Username: "bob", Email: strPtr("bob@example.com"), PasswordHash: "h2", Role: membership.RoleMember},
		{ID: "u3", Username: "carol", PasswordHash: "h3", Role: membership.RoleLibrarian},
	}
	for i := range users {
		require.NoError(t, repo.Create(ctx, &users[i]))
	}

	return membership.NewService(repo)
}

func TestService_ListUsers(t *testing.T) {
	ctx := context.Background()
	svc := newMembership(t)

	t.Run("filters by role", func(t *testing.T) {
		users, total, err := svc.ListUsers(ctx, membership.ListUsersParams{Role: membership.RoleMember})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Username)
	})

	t.Run("searches email", func(t *testing.T) {
		users, total, err := svc.ListUsers(ctx, membership.ListUsersParams{Search: "BOB@"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, users, 1)
		assert.Equal(t, "u2", users[0].ID)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, _, err := svc.ListUsers(ctx, membership.ListUsersParams{Role: "janitor"})
		assert.True(t, errors.Is(err, core.ErrInvalidInput))
	})
}

func TestService_UserProvider(t *testing.T) {
	ctx := context.Background()
	svc := newMembership(t)

	info, err := svc.GetByUsername(ctx, "  alice ")
	require.NoError(t, err)
	assert.Equal(t, "u1", info.ID)
	assert.Equal(t, "h1", info.PasswordHash)
	assert.Equal(t, membership.RoleMember, info.Role)

	require.NoError(t, svc.IncrementTokenVersion(ctx, "u1"))
	info, err = svc.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.TokenVersion)

	require.NoError(t, svc.UpdatePassword(ctx, "u1", "h1-new"))
	user, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "h1-new", user.PasswordHash)

	_, err = svc.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = svc.GetMe(ctx, "")
	assert.True(t, errors.Is(err, core.ErrUnauthorized))
}

package services

import (
	"context"
	"testing"
	"time"

	"snaplink/internal/models"
	"snaplink/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.Create(ctx, "  Someone@Example.com ", false)
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperuser)
	assert.Len(t, user.APIKey, 36)

	_, err = env.users.Create(ctx, "someone@example.com", false)
	assert.True(t, IsValidation(err))

	_, err = env.users.Create(ctx, "not-an-email", false)
	assert.True(t, IsValidation(err))

	found, err := env.users.FindByAPIKey(ctx, user.APIKey)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = env.users.FindByAPIKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, created, err := env.users.EnsureAdmin(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsSuperuser)

	again, created, err := env.users.EnsureAdmin(ctx, "root@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	plain := env.createUser(t, "plain@example.com", false)
	promoted, created, err := env.users.EnsureAdmin(ctx, plain.Email)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, promoted.IsSuperuser)

	stored, err := env.users.Get(ctx, plain.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsSuperuser)
}

func TestUserService_SetActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@example.com", true)
	user := env.createUser(t, "user@example.com", false)

	_, err := env.users.SetActive(ctx, PrincipalFromUser(user), admin.ID, false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = env.users.SetActive(ctx, PrincipalFromUser(admin), admin.ID, false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = env.users.SetActive(ctx, PrincipalFromUser(admin), 9999, false)
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := env.users.SetActive(ctx, PrincipalFromUser(admin), user.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	stored, err := env.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	users, err := env.users.List(ctx, PrincipalFromUser(admin))
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUserService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin@example.com", true)
	victim := env.createUser(t, "victim@example.com", false)
	bystander := env.createUser(t, "bystander@example.com", false)

	l1 := env.createLink(t, victim.ID, "https://example.com/1")
	l2 := env.createLink(t, victim.ID, "https://example.com/2")
	kept := env.createLink(t, bystander.ID, "https://example.com/3")
	env.insertClick(t, l1.ID, env.clock.Now(), "Chrome")
	env.insertClick(t, l2.ID, env.clock.Now(), "Chrome")
	env.insertClick(t, kept.ID, env.clock.Now(), "Chrome")

	t.Run("Guards", func(t *testing.T) {
		assert.ErrorIs(t, env.users.Delete(ctx, PrincipalFromUser(admin), admin.ID), ErrPermissionDenied)
		assert.ErrorIs(t, env.users.Delete(ctx, PrincipalFromUser(bystander), victim.ID), ErrPermissionDenied)
		assert.ErrorIs(t, env.users.Delete(ctx, PrincipalFromUser(admin), 9999), ErrNotFound)
	})

	t.Run("Cascades links and clicks", func(t *testing.T) {
		require.NoError(t, env.users.Delete(ctx, PrincipalFromUser(admin), victim.ID))

		_, err := env.users.Get(ctx, victim.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		var links int64
		env.db.Model(&models.Link{}).Where("owner_id = ?", victim.ID).Count(&links)
		assert.Zero(t, links)
		assert.Zero(t, env.clickCount(t, l1.ID))
		assert.Zero(t, env.clickCount(t, l2.ID))
		assert.EqualValues(t, 1, env.clickCount(t, kept.ID))
	})

	t.Run("Self delete", func(t *testing.T) {
		require.NoError(t, env.users.Delete(ctx, PrincipalFromUser(bystander), bystander.ID))
		assert.Zero(t, env.clickCount(t, kept.ID))
	})
}

func TestIdentityProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tokens := token.NewManager("test-secret", time.Hour)
	idp := NewIdentityProvider(env.users, tokens)
	user := env.createUser(t, "user@example.com", false)

	t.Run("Bearer token", func(t *testing.T) {
		tok, err := idp.IssueToken(user.ID)
		require.NoError(t, err)

		p, err := idp.Authenticate(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, Principal{ID: user.ID, IsActive: true}, p)
	})

	t.Run("API key", func(t *testing.T) {
		p, err := idp.AuthenticateAPIKey(ctx, user.APIKey)
		require.NoError(t, err)
		assert.Equal(t, user.ID, p.ID)
	})

	t.Run("Rejects bad credentials", func(t *testing.T) {
		_, err := idp.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrUnauthenticated)
		_, err = idp.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, ErrUnauthenticated)
		_, err = idp.AuthenticateAPIKey(ctx, "unknown-key")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("Token for deleted user", func(t *testing.T) {
		gone := env.createUser(t, "gone@example.com", false)
		tok, err := idp.IssueToken(gone.ID)
		require.NoError(t, err)
		require.NoError(t, env.users.Delete(ctx, PrincipalFromUser(gone), gone.ID))

		_, err = idp.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("Reports inactive accounts", func(t *testing.T) {
		admin := env.createUser(t, "admin@example.com", true)
		_, err := env.users.SetActive(ctx, PrincipalFromUser(admin), user.ID, false)
		require.NoError(t, err)

		p, err := idp.AuthenticateAPIKey(ctx, user.APIKey)
		require.NoError(t, err)
		assert.False(t, p.IsActive)
	})
}

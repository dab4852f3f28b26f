//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAdmin(ctx context.Context, t *testing.T, adminRepo *AdminUserRepository, email string) *domain.AdminUser {
	admin := domain.NewAdminUser(uuid.NewString(), email, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, adminRepo.Create(ctx, admin))
	return admin
}

func TestAdminUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAdminUserRepository(pool)
	admin := setupAdmin(ctx, t, repo, "ops@example.com")

	byID, err := repo.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", byID.Email)
	assert.Nil(t, byID.LastSignIn)

	byEmail, err := repo.GetByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, byEmail.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrAdminUserNotFound)

	dup := domain.NewAdminUser(uuid.NewString(), "ops@example.com", time.Now().UTC())
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrAdminUserAlreadyExists)
}

func TestAdminUserRepository_ListAndTouch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAdminUserRepository(pool)
	first := setupAdmin(ctx, t, repo, "a@example.com")
	setupAdmin(ctx, t, repo, "b@example.com")

	admins, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.TouchLastSignIn(ctx, first.ID, at))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSignIn)
	assert.True(t, at.Equal(*got.LastSignIn))

	assert.ErrorIs(t, repo.TouchLastSignIn(ctx, uuid.NewString(), at), domain.ErrAdminUserNotFound)
}

func TestAPIKeyRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	adminRepo := NewAdminUserRepository(pool)
	keyRepo := NewAPIKeyRepository(pool)
	admin := setupAdmin(ctx, t, adminRepo, "keys@example.com")

	key := &domain.APIKey{
		ID:        uuid.NewString(),
		AdminID:   admin.ID,
		Name:      "ci",
		KeyHash:   "hashed_key_value",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, keyRepo.Create(ctx, key))

	byHash, err := keyRepo.GetByHash(ctx, "hashed_key_value")
	require.NoError(t, err)
	assert.Equal(t, key.ID, byHash.ID)
	assert.Equal(t, admin.ID, byHash.AdminID)
	assert.False(t, byHash.IsRevoked())

	keys, err := keyRepo.GetByAdminID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, keyRepo.Revoke(ctx, key.ID))
	revoked, err := keyRepo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, revoked.IsRevoked())

	assert.ErrorIs(t, keyRepo.Revoke(ctx, key.ID), domain.ErrAPIKeyNotFound)

	_, err = keyRepo.GetByHash(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
}

func TestAPIKeyRepository_Create_UnknownAdmin(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	keyRepo := NewAPIKeyRepository(pool)
	err := keyRepo.Create(ctx, &domain.APIKey{
		ID:        uuid.NewString(),
		AdminID:   uuid.NewString(),
		Name:      "orphan",
		KeyHash:   "orphan_hash",
		CreatedAt: time.Now().UTC(),
	})
	assert.Error(t, err)
}

package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbee/internal/models"
)

func openTestDB(t *testing.T) *UserRepo {
	t.Helper()
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "data", "budgetbee.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db)
}

func TestOpen_CreatesSchemaAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "budgetbee.db")

	db, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'users'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "users", name)
	require.NoError(t, db.Close())

	db, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	applied, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, applied, "second run must not re-apply migrations")
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	u := &models.User{Username: "alice", PasswordHash: "$2a$04$hash"}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotZero(t, u.ID)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "$2a$04$hash", got.PasswordHash)
	assert.False(t, got.CreatedAt.IsZero())

	exists, err := repo.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepo_GetByUsername_NotFound(t *testing.T) {
	repo := openTestDB(t)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	exists, err := repo.ExistsByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepo_Create_DuplicateUsername(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "alice", PasswordHash: "h1"}))

	err := repo.Create(ctx, &models.User{Username: "alice", PasswordHash: "h2"})
	require.ErrorIs(t, err, ErrUserAlreadyExists)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.PasswordHash)
}

func TestUserRepo_Create_ConcurrentSameUsername(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, &models.User{Username: "racer", PasswordHash: "h"})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrUserAlreadyExists):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

package users

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/dmitrijs2005/citygate/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.Create(ctx, &models.User{UserName: "alice", PasswordHash: "h", Roles: []string{"USER"}})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := repo.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []string{"USER"}, got.Roles)

	got.Roles[0] = "ADMIN"
	again, _ := repo.GetUserByLogin(ctx, "alice")
	assert.Equal(t, "USER", again.Roles[0], "returned records must be copies")

	_, err = repo.GetUserByLogin(ctx, "bob")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Create(ctx, &models.User{UserName: "alice", PasswordHash: "h", Email: "a@city.io"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.User{UserName: "alice", PasswordHash: "other", Email: "z@city.io"})
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	_, err = repo.Create(ctx, &models.User{UserName: "bob", PasswordHash: "h", Email: "a@city.io"})
	assert.ErrorIs(t, err, common.ErrEmailTaken)

	bob, err := repo.Create(ctx, &models.User{UserName: "bob", PasswordHash: "h"})
	require.NoError(t, err)

	bob.Email = "a@city.io"
	_, err = repo.Update(ctx, bob)
	assert.ErrorIs(t, err, common.ErrEmailTaken)
}

func TestMemoryRepository_ConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, &models.User{UserName: "alice", PasswordHash: fmt.Sprint(i)})
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, common.ErrDuplicateIdentity):
				dup.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 31, dup.Load())
}

func TestMemoryRepository_UpdateAndSave(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.Save(ctx, &models.User{UserName: "alice", PasswordHash: "h1"})
	require.NoError(t, err)

	u.PasswordHash = "h2"
	u.Email = "alice@city.io"
	_, err = repo.Save(ctx, u)
	require.NoError(t, err)

	got, err := repo.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.Equal(t, "alice@city.io", got.Email)

	_, err = repo.Update(ctx, &models.User{ID: "missing"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

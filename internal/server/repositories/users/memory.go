package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/dmitrijs2005/citygate/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps identity records in process memory. It is used when
// no database is configured; uniqueness checks and writes happen under one
// lock.
type MemoryRepository struct {
	mu     sync.RWMutex
	byName map[string]*models.User
	byID   map[string]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byName: make(map[string]*models.User),
		byID:   make(map[string]*models.User),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[user.UserName]; ok {
		return nil, common.ErrDuplicateIdentity
	}
	if r.emailTaken(user.Email, "") {
		return nil, common.ErrEmailTaken
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	stored := user.Clone()
	r.byName[stored.UserName] = stored
	r.byID[stored.ID] = stored
	return user, nil
}

func (r *MemoryRepository) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return nil, common.ErrEmailTaken
	}

	stored.PasswordHash = user.PasswordHash
	stored.Email = user.Email
	return user, nil
}

func (r *MemoryRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	return save(ctx, r, user)
}

// emailTaken must be called with mu held.
func (r *MemoryRepository) emailTaken(email, exceptID string) bool {
	if email == "" {
		return false
	}
	for id, u := range r.byID {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

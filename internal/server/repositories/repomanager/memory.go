package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/citygate/internal/dbx"
	"github.com/dmitrijs2005/citygate/internal/server/repositories/users"
)

// MemoryRepositoryManager serves one shared in-memory users repository and
// ignores the handle it is given.
type MemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.users
}

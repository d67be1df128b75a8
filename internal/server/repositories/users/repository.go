// Package users is the credential store: persistence of identity records
// with username uniqueness enforced at insert time.
package users

import (
	"context"

	"github.com/dmitrijs2005/citygate/internal/server/models"
)

type Repository interface {
	// Create inserts a new record and assigns its ID. It fails with
	// common.ErrDuplicateIdentity when the username exists and with
	// common.ErrEmailTaken when the email belongs to another record.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByLogin returns common.ErrorNotFound for unknown usernames.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	// Update persists the mutable fields (password hash, email) of an
	// existing record.
	Update(ctx context.Context, user *models.User) (*models.User, error)
	// Save inserts user when it has no ID and updates it otherwise.
	Save(ctx context.Context, user *models.User) (*models.User, error)
}

func save(ctx context.Context, r Repository, user *models.User) (*models.User, error) {
	if user.ID == "" {
		return r.Create(ctx, user)
	}
	return r.Update(ctx, user)
}

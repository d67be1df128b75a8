// Package services contains the auth service business logic: registration,
// login, profile reads and updates, and password changes over the
// credential store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/dmitrijs2005/citygate/internal/cryptox"
	"github.com/dmitrijs2005/citygate/internal/dbx"
	"github.com/dmitrijs2005/citygate/internal/logging"
	"github.com/dmitrijs2005/citygate/internal/server/models"
	"github.com/dmitrijs2005/citygate/internal/server/repositories/repomanager"
)

// TokenIssuer signs tokens for authenticated users.
type TokenIssuer interface {
	Issue(subject string, roles []string) (string, error)
}

type RegisterInput struct {
	UserName string
	Password string
	Email    string
	Roles    []string
}

// ProfileUpdate lists the mutable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	Email *string
}

type LoginResult struct {
	UserName string
	Roles    []string
	Token    string
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	issuer      TokenIssuer
	log         logging.Logger

	// dummyHash is checked for unknown usernames so that a failed login costs
	// the same whether or not the user exists.
	dummyHash string
}

// NewUserService wires the service. db may be nil when m is an in-memory
// manager.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher, issuer TokenIssuer, log logging.Logger) (*UserService, error) {
	if log == nil {
		log = logging.Nop{}
	}

	filler, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(filler)
	if err != nil {
		return nil, err
	}

	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		issuer:      issuer,
		log:         log,
		dummyHash:   dummy,
	}, nil
}

// Register creates an identity. Roles default to USER when none are given.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.UserName = normalizeUserName(in.UserName)
	if in.UserName == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return nil, err
		}
		return nil, s.internal(ctx, "hash password", err)
	}

	user := &models.User{
		UserName:     in.UserName,
		PasswordHash: hash,
		Email:        strings.TrimSpace(in.Email),
		Roles:        normalizeRoles(in.Roles),
	}

	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.GetUserByLogin(ctx, user.UserName)
		switch {
		case err == nil:
			return common.ErrDuplicateIdentity
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		user, err = repo.Save(ctx, user)
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, s.internal(ctx, "error creating user", err)
	}

	s.log.Info(ctx, "user registered", "username", user.UserName)
	return user, nil
}

// Login returns a signed token for valid credentials. Unknown usernames and
// wrong passwords both yield common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, userName, password string) (*LoginResult, error) {
	userName = normalizeUserName(userName)
	user, err := s.repomanager.Users(s.handle()).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "error loading user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.UserName, user.Roles)
	if err != nil {
		return nil, s.internal(ctx, "error issuing token", err)
	}

	return &LoginResult{UserName: user.UserName, Roles: user.Roles, Token: token}, nil
}

// GetProfile returns the record for userName or common.ErrorNotFound.
func (s *UserService) GetProfile(ctx context.Context, userName string) (*models.User, error) {
	userName = normalizeUserName(userName)
	user, err := s.repomanager.Users(s.handle()).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.internal(ctx, "error loading user", err)
	}
	return user, nil
}

// UpdateProfile applies the mutable fields of upd.
func (s *UserService) UpdateProfile(ctx context.Context, userName string, upd ProfileUpdate) (*models.User, error) {
	userName = normalizeUserName(userName)
	var user *models.User

	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		var err error
		if user, err = repo.GetUserByLogin(ctx, userName); err != nil {
			return err
		}
		if upd.Email != nil {
			user.Email = strings.TrimSpace(*upd.Email)
		}
		user, err = repo.Save(ctx, user)
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, s.internal(ctx, "error updating profile", err)
	}
	return user, nil
}

// ChangePassword replaces the password when oldPassword matches the stored
// hash. It reports false, with a nil error, for unknown users and wrong old
// passwords.
func (s *UserService) ChangePassword(ctx context.Context, userName, oldPassword, newPassword string) (bool, error) {
	userName = normalizeUserName(userName)
	if newPassword == "" {
		return false, fmt.Errorf("%w: new password is required", common.ErrValidation)
	}

	changed := false
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetUserByLogin(ctx, userName)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.hasher.Verify(oldPassword, s.dummyHash)
				return nil
			}
			return err
		}
		if !s.hasher.Verify(oldPassword, user.PasswordHash) {
			return nil
		}

		if user.PasswordHash, err = s.hasher.Hash(newPassword); err != nil {
			return err
		}
		if _, err = repo.Save(ctx, user); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return false, err
		}
		return false, s.internal(ctx, "error changing password", err)
	}
	if changed {
		s.log.Info(ctx, "password changed", "username", userName)
	}
	return changed, nil
}

// --- helpers below ---

func (s *UserService) handle() dbx.DBTX {
	if s.db == nil {
		return nil
	}
	return s.db
}

func (s *UserService) inTx(ctx context.Context, fn dbx.TxFunc) error {
	return dbx.InTx(ctx, s.db, fn)
}

// internal logs err and hides it behind common.ErrorInternal.
func (s *UserService) internal(ctx context.Context, msg string, err error) error {
	s.log.Error(ctx, msg, "error", err)
	return common.ErrorInternal
}

func isDomainError(err error) bool {
	return errors.Is(err, common.ErrDuplicateIdentity) ||
		errors.Is(err, common.ErrEmailTaken) ||
		errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, common.ErrValidation)
}

// normalizeUserName is applied to every incoming username so that lookups
// match what Register stored.
func normalizeUserName(name string) string {
	return strings.TrimSpace(name)
}

// normalizeRoles trims and de-duplicates roles, keeping the first occurrence
// order, and falls back to the default role.
func normalizeRoles(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return []string{common.DefaultRole}
	}
	return out
}

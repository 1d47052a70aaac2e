package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
)

// Store is the gorm implementation of repository.Store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() repository.UserRepository   { return NewUserRepository(s.db) }
func (s *Store) Roles() repository.RoleRepository   { return NewRoleRepository(s.db) }
func (s *Store) Tokens() repository.TokenRepository { return NewTokenRepository(s.db) }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// mapErr converts gorm errors into repository sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrDuplicate
	default:
		return err
	}
}

var _ repository.Store = (*Store)(nil)

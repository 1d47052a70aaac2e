package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateAccount(ctx context.Context, u *entity.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Profile != nil {
		if err := u.Profile.Validate(); err != nil {
			return err
		}
	}
	return mapErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(u).Error
	}))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func detailed(db *gorm.DB) *gorm.DB {
	return db.Preload("Profile").
		Preload("EmailStatus").
		Preload("UserRoles", func(db *gorm.DB) *gorm.DB { return db.Order("user_roles.created_at ASC") }).
		Preload("UserRoles.Role")
}

func (r *UserRepository) GetDetailed(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := detailed(r.db.WithContext(ctx)).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) ListDetailed(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := detailed(r.db.WithContext(ctx)).Order("created_at ASC").Order("id ASC").Find(&users).Error
	return users, mapErr(err)
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Count(&n).Error
	return n, mapErr(err)
}

func (r *UserRepository) UpdateName(ctx context.Context, id, name string) error {
	return r.updateColumn(ctx, id, "name", name)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.updateColumn(ctx, id, "password", hash)
}

func (r *UserRepository) updateColumn(ctx context.Context, id, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpsertProfile creates the profile or overwrites phone and avatar of the existing one.
func (r *UserRepository) UpsertProfile(ctx context.Context, p *entity.UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phone", "avatar_path"}),
	}).Create(p).Error
	return mapErr(err)
}

var _ repository.UserRepository = (*UserRepository)(nil)

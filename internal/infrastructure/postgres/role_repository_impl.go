package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) FindOrCreate(ctx context.Context, name string) (*entity.Role, bool, error) {
	name = entity.NormalizeRoleName(name)
	if role, err := r.FindByName(ctx, name); err == nil {
		return role, false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	role := &entity.Role{Name: name}
	err := mapErr(r.db.WithContext(ctx).Create(role).Error)
	if errors.Is(err, repository.ErrDuplicate) {
		// lost a race against another seeder
		existing, ferr := r.FindByName(ctx, name)
		return existing, false, ferr
	}
	if err != nil {
		return nil, false, err
	}
	return role, true, nil
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*entity.Role, error) {
	var role entity.Role
	err := r.db.WithContext(ctx).Where("name = ?", entity.NormalizeRoleName(name)).First(&role).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]entity.Role, error) {
	var roles []entity.Role
	err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error
	return roles, mapErr(err)
}

func (r *RoleRepository) AddToUser(ctx context.Context, userID, roleID string) (bool, error) {
	n, err := r.CountAssignments(ctx, userID, roleID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	err = mapErr(r.db.WithContext(ctx).Create(&entity.UserRole{UserID: userID, RoleID: roleID}).Error)
	if errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RoleRepository) ReplaceForUser(ctx context.Context, userID, roleID string) error {
	return mapErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND role_id <> ?", userID, roleID).Delete(&entity.UserRole{}).Error; err != nil {
			return err
		}
		_, err := NewRoleRepository(tx).AddToUser(ctx, userID, roleID)
		return err
	}))
}

func (r *RoleRepository) ListForUser(ctx context.Context, userID string) ([]entity.Role, error) {
	var roles []entity.Role
	err := r.db.WithContext(ctx).
		Model(&entity.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("user_roles.created_at ASC").
		Find(&roles).Error
	return roles, mapErr(err)
}

func (r *RoleRepository) ListUsers(ctx context.Context, roleID string) ([]entity.User, error) {
	var users []entity.User
	err := detailed(r.db.WithContext(ctx)).
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("user_roles.role_id = ?", roleID).
		Order("users.created_at ASC").
		Find(&users).Error
	return users, mapErr(err)
}

func (r *RoleRepository) CountAssignments(ctx context.Context, userID, roleID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&n).Error
	return n, mapErr(err)
}

var _ repository.RoleRepository = (*RoleRepository)(nil)

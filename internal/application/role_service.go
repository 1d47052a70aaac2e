package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	repo "github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

// RoleService attaches roles from the closed {ADMIN, USER} vocabulary to users.
type RoleService struct {
	Store  repo.Store
	Logger *logrus.Logger
}

func NewRoleService(store repo.Store, logger *logrus.Logger) *RoleService {
	return &RoleService{Store: store, Logger: logger}
}

// AssignRole adds roleName to the user. Assigning a held role is a no-op.
func (s *RoleService) AssignRole(ctx context.Context, userID, roleName string) error {
	role, err := s.resolve(ctx, userID, roleName)
	if err != nil {
		return err
	}
	created, err := s.Store.Roles().AddToUser(ctx, userID, role.ID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	if created {
		helpers.LogInfo(s.Logger, "role assigned", logrus.Fields{"user_id": userID, "role": role.Name})
	}
	return nil
}

// SetRole leaves roleName as the only role of the user.
func (s *RoleService) SetRole(ctx context.Context, userID, roleName string) error {
	role, err := s.resolve(ctx, userID, roleName)
	if err != nil {
		return err
	}
	if err := s.Store.Roles().ReplaceForUser(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	helpers.LogInfo(s.Logger, "role replaced", logrus.Fields{"user_id": userID, "role": role.Name})
	return nil
}

// ListRolesForUser returns the role names of a user, highest privilege first.
func (s *RoleService) ListRolesForUser(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.Store.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	roles, err := s.Store.Roles().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return rankRoles(names), nil
}

// ListUsersByRole returns the holders of roleName with profile and roles loaded.
func (s *RoleService) ListUsersByRole(ctx context.Context, roleName string) ([]entity.User, error) {
	role, err := s.findRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	users, err := s.Store.Roles().ListUsers(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// HasRole reports whether the user currently holds roleName.
func (s *RoleService) HasRole(ctx context.Context, userID, roleName string) (bool, error) {
	want := entity.NormalizeRoleName(roleName)
	roles, err := s.Store.Roles().ListForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list roles: %w", err)
	}
	for _, r := range roles {
		if r.Name == want {
			return true, nil
		}
	}
	return false, nil
}

func (s *RoleService) PrimaryRole(u *entity.User) string { return PrimaryRole(u) }

// PrimaryRole picks the display role of a user: highest privilege, ties by
// name, USER when the user holds none.
func PrimaryRole(u *entity.User) string {
	if u == nil {
		return entity.RoleUser
	}
	ranked := rankRoles(u.RoleNames())
	if len(ranked) == 0 {
		return entity.RoleUser
	}
	return ranked[0]
}

func rankRoles(names []string) []string {
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := entity.RolePrivilege(out[i]), entity.RolePrivilege(out[j])
		if pi != pj {
			return pi > pj
		}
		return out[i] < out[j]
	})
	return out
}

func (s *RoleService) resolve(ctx context.Context, userID, roleName string) (*entity.Role, error) {
	role, err := s.findRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.Users().GetByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return role, nil
}

func (s *RoleService) findRole(ctx context.Context, roleName string) (*entity.Role, error) {
	role, err := s.Store.Roles().FindByName(ctx, entity.NormalizeRoleName(roleName))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return role, nil
}

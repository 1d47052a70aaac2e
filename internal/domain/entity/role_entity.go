package entity

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

// Closed role vocabulary.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// DefaultRoles are ensured by the seeder on every startup.
var DefaultRoles = []string{RoleAdmin, RoleUser}

var rolePrivilege = map[string]int{
	RoleAdmin: 100,
	RoleUser:  10,
}

// NormalizeRoleName upper-cases and trims a role name.
func NormalizeRoleName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// RolePrivilege ranks a role; unknown names rank 0.
func RolePrivilege(name string) int {
	return rolePrivilege[NormalizeRoleName(name)]
}

// Role represents an authorization role
// Many-to-many with User via user_roles
type Role struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:32;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Role) TableName() string { return "roles" }

func (r *Role) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = helpers.NewID()
	}
	return nil
}

// UserRole is the user<->role association row.
type UserRole struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:ux_user_roles_user_role" json:"user_id"`
	RoleID    string    `gorm:"size:36;not null;uniqueIndex:ux_user_roles_user_role;index" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (UserRole) TableName() string { return "user_roles" }

func (ur *UserRole) BeforeCreate(*gorm.DB) error {
	if ur.ID == "" {
		ur.ID = helpers.NewID()
	}
	return nil
}

package entity

import (
	"time"

	"gorm.io/gorm"

	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/validation"
)

// User is the aggregate root for the account domain.
// Password always holds a bcrypt hash, never the plain text.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" validate:"required,max=100"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email" validate:"required,email"`
	Password  string    `gorm:"size:255;not null" json:"-" validate:"required"`
	IsActive  bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile       *UserProfile       `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	EmailStatus   *UserEmail         `gorm:"foreignKey:UserID" json:"email_status,omitempty"`
	PasswordReset *UserPasswordReset `gorm:"foreignKey:UserID" json:"-"`
	UserRoles     []UserRole         `gorm:"foreignKey:UserID" json:"user_roles,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = helpers.NewID()
	}
	return nil
}

func (u *User) Validate() error { return validation.Struct(u) }

// RoleNames lists the names of the preloaded roles in association order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.UserRoles))
	for _, ur := range u.UserRoles {
		if ur.Role != nil {
			names = append(names, ur.Role.Name)
		}
	}
	return names
}

// EmailVerified reports the preloaded verification flag.
func (u *User) EmailVerified() bool {
	return u.EmailStatus != nil && u.EmailStatus.EmailVerified
}

// UserProfile holds the 1:1 profile data of a user.
type UserProfile struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	UserID     string  `gorm:"size:36;not null;uniqueIndex" json:"user_id"`
	AvatarPath *string `gorm:"size:512" json:"avatar_path"`
	Phone      string  `gorm:"size:8;not null" json:"phone" validate:"required,phone8"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (p *UserProfile) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = helpers.NewID()
	}
	return nil
}

func (p *UserProfile) Validate() error { return validation.Struct(p) }

// UserEmail tracks email ownership verification. Token and expiry are set
// together and cleared together.
type UserEmail struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        string     `gorm:"size:36;not null;uniqueIndex" json:"user_id"`
	EmailVerified bool       `gorm:"not null;default:false" json:"email_verified"`
	Token         *string    `gorm:"column:email_verification_token;size:256;uniqueIndex" json:"-"`
	TokenExpiry   *time.Time `gorm:"column:email_verification_token_expiry" json:"-"`
}

func (UserEmail) TableName() string { return "user_emails" }

func (e *UserEmail) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = helpers.NewID()
	}
	return nil
}

// UserPasswordReset holds the pending reset token of a user, if any.
type UserPasswordReset struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"size:36;not null;uniqueIndex" json:"user_id"`
	Token       *string    `gorm:"column:password_reset_token;size:256;uniqueIndex" json:"-"`
	TokenExpiry *time.Time `gorm:"column:password_reset_token_expiry" json:"-"`
}

func (UserPasswordReset) TableName() string { return "user_password_resets" }

func (r *UserPasswordReset) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = helpers.NewID()
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
)

var (
	// ErrNotFound is returned for any lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleToken is returned when a compare-and-swap on a token column
	// matched no row because the token changed or was already consumed.
	ErrStaleToken = errors.New("token no longer current")
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	// CreateAccount inserts the user and any attached profile, email status
	// and password reset rows in one transaction.
	CreateAccount(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// GetDetailed loads the user with profile, email status and roles.
	GetDetailed(ctx context.Context, id string) (*entity.User, error)
	ListDetailed(ctx context.Context) ([]entity.User, error)
	Count(ctx context.Context) (int64, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	UpsertProfile(ctx context.Context, p *entity.UserProfile) error
}

// RoleRepository manages roles and user<->role associations.
type RoleRepository interface {
	// FindOrCreate returns the role with the given name, creating it if
	// needed. created reports whether a row was inserted.
	FindOrCreate(ctx context.Context, name string) (role *entity.Role, created bool, err error)
	FindByName(ctx context.Context, name string) (*entity.Role, error)
	List(ctx context.Context) ([]entity.Role, error)
	// AddToUser creates the association unless it already exists.
	AddToUser(ctx context.Context, userID, roleID string) (created bool, err error)
	// ReplaceForUser leaves exactly the given role attached to the user.
	ReplaceForUser(ctx context.Context, userID, roleID string) error
	ListForUser(ctx context.Context, userID string) ([]entity.Role, error)
	ListUsers(ctx context.Context, roleID string) ([]entity.User, error)
	CountAssignments(ctx context.Context, userID, roleID string) (int64, error)
}

// TokenRepository persists verification and reset tokens. Every write that
// clears or consumes a token matches on the current token value so that two
// concurrent consumers cannot both succeed.
type TokenRepository interface {
	GetEmailStatus(ctx context.Context, userID string) (*entity.UserEmail, error)
	// SetVerificationToken overwrites the token pair, creating the row if absent.
	SetVerificationToken(ctx context.Context, userID, token string, expiry time.Time) error
	FindByVerificationToken(ctx context.Context, token string) (*entity.UserEmail, error)
	// MarkEmailVerified sets email_verified and clears the pair if token is still current.
	MarkEmailVerified(ctx context.Context, userID, token string) error
	ClearVerificationToken(ctx context.Context, userID, token string) error

	SetPasswordResetToken(ctx context.Context, userID, token string, expiry time.Time) error
	FindByPasswordResetToken(ctx context.Context, token string) (*entity.UserPasswordReset, error)
	ClearPasswordResetToken(ctx context.Context, userID, token string) error
	// ConsumePasswordReset clears the reset token and stores the new password
	// hash in one transaction.
	ConsumePasswordReset(ctx context.Context, userID, token, passwordHash string) error
}

// Store groups the repositories and runs multi-repository transactions.
type Store interface {
	Users() UserRepository
	Roles() RoleRepository
	Tokens() TokenRepository
	// WithinTx runs fn against repositories bound to one transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

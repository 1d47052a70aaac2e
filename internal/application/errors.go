package application

import (
	"errors"

	"github.com/oksasatya/go-account-lifecycle/pkg/mailer"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenExpired         = errors.New("token expired")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInactiveUser         = errors.New("user is inactive")
	ErrEmailAlreadyVerified = errors.New("email already verified")
	ErrEmailTaken           = errors.New("email already registered")
	ErrStorageUnavailable   = errors.New("avatar storage not configured")

	// ErrTransportUnavailable is returned by awaited sends when no mail
	// transport is configured.
	ErrTransportUnavailable = mailer.ErrTransportUnavailable
)

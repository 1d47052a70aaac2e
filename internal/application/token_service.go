package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	repo "github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/validation"
)

// Purpose selects which token family a value belongs to.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposePasswordReset Purpose = "password_reset"
)

const (
	DefaultVerifyTokenTTL = 24 * time.Hour
	DefaultResetTokenTTL  = time.Hour

	tokenBytes = 32
)

// Consumption is the outcome of a successful token check or consume.
type Consumption struct {
	UserID  string
	Purpose Purpose
}

// TokenService owns issuance, validation, expiry and consumption of
// verification and password reset tokens.
type TokenService struct {
	Store     repo.Store
	Notifier  Notifier
	Notify    *BestEffort
	Logger    *logrus.Logger
	VerifyTTL time.Duration
	ResetTTL  time.Duration
	Now       func() time.Time
}

func NewTokenService(store repo.Store, notifier Notifier, notify *BestEffort, logger *logrus.Logger, verifyTTL, resetTTL time.Duration) *TokenService {
	if verifyTTL <= 0 {
		verifyTTL = DefaultVerifyTokenTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	return &TokenService{
		Store:     store,
		Notifier:  notifier,
		Notify:    notify,
		Logger:    logger,
		VerifyTTL: verifyTTL,
		ResetTTL:  resetTTL,
		Now:       time.Now,
	}
}

func (s *TokenService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// IssueVerificationToken stores a fresh verification token for the user and
// mails it. A send failure is returned; the token stays persisted.
func (s *TokenService) IssueVerificationToken(ctx context.Context, userID string) (string, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	status, err := s.Store.Tokens().GetEmailStatus(ctx, userID)
	switch {
	case err == nil && status.EmailVerified:
		return "", ErrEmailAlreadyVerified
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return "", fmt.Errorf("load email status: %w", err)
	}

	token, err := helpers.RandomToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.Store.Tokens().SetVerificationToken(ctx, userID, token, s.now().Add(s.VerifyTTL)); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}

	err = s.send(ctx, NotifyVerification, func(ctx context.Context) error {
		return s.Notifier.SendVerificationEmail(ctx, u.Email, u.Name, token)
	})
	if err != nil {
		helpers.LogError(s.Logger, "verification token stored but email not sent", err, logrus.Fields{"user_id": userID})
		return "", fmt.Errorf("send verification email: %w", err)
	}
	return token, nil
}

// IssuePasswordResetToken stores a fresh reset token for the user and mails it.
func (s *TokenService) IssuePasswordResetToken(ctx context.Context, userID string) (string, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	token, err := helpers.RandomToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.Store.Tokens().SetPasswordResetToken(ctx, userID, token, s.now().Add(s.ResetTTL)); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	err = s.send(ctx, NotifyPasswordReset, func(ctx context.Context) error {
		return s.Notifier.SendPasswordResetEmail(ctx, u.Email, u.Name, token)
	})
	if err != nil {
		helpers.LogError(s.Logger, "reset token stored but email not sent", err, logrus.Fields{"user_id": userID})
		return "", fmt.Errorf("send password reset email: %w", err)
	}
	return token, nil
}

// RequestPasswordReset resolves the account by email and issues a reset token.
func (s *TokenService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return ErrInactiveUser
	}
	_, err = s.IssuePasswordResetToken(ctx, u.ID)
	return err
}

// ValidateAndConsume checks token for purpose and consumes it. Expired tokens
// are cleared before ErrTokenExpired is returned.
func (s *TokenService) ValidateAndConsume(ctx context.Context, token string, purpose Purpose) (*Consumption, error) {
	switch purpose {
	case PurposeVerifyEmail:
		return s.consumeVerification(ctx, token)
	case PurposePasswordReset:
		userID, err := s.checkReset(ctx, token)
		if err != nil {
			return nil, err
		}
		if err := s.Store.Tokens().ClearPasswordResetToken(ctx, userID, token); err != nil {
			return nil, staleAsNotFound(err)
		}
		return &Consumption{UserID: userID, Purpose: purpose}, nil
	default:
		return nil, fmt.Errorf("unknown token purpose %q", purpose)
	}
}

// CheckPasswordResetToken validates a reset token without consuming it.
func (s *TokenService) CheckPasswordResetToken(ctx context.Context, token string) (*Consumption, error) {
	userID, err := s.checkReset(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Consumption{UserID: userID, Purpose: PurposePasswordReset}, nil
}

// ResetPassword consumes the reset token and stores the new password in one
// transaction, then sends a best-effort confirmation.
func (s *TokenService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return validation.NewError("password", "min length 8")
	}
	userID, err := s.checkReset(ctx, token)
	if err != nil {
		return err
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Tokens().ConsumePasswordReset(ctx, userID, token, hash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return staleAsNotFound(err)
	}

	if u, err := s.Store.Users().GetByID(ctx, userID); err == nil && s.Notifier != nil {
		s.Notify.Go(ctx, NotifyPasswordChanged, u.ID, func(ctx context.Context) error {
			return s.Notifier.SendPasswordChangedEmail(ctx, u.Email, u.Name)
		})
	}
	helpers.LogInfo(s.Logger, "password reset", logrus.Fields{"user_id": userID})
	return nil
}

func (s *TokenService) consumeVerification(ctx context.Context, token string) (*Consumption, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}
	row, err := s.Store.Tokens().FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("find verification token: %w", err)
	}
	if s.expired(row.TokenExpiry) {
		if err := s.Store.Tokens().ClearVerificationToken(ctx, row.UserID, token); err != nil && !errors.Is(err, repo.ErrStaleToken) {
			return nil, fmt.Errorf("clear expired token: %w", err)
		}
		return nil, ErrTokenExpired
	}
	if err := s.Store.Tokens().MarkEmailVerified(ctx, row.UserID, token); err != nil {
		return nil, staleAsNotFound(err)
	}

	if u, err := s.Store.Users().GetByID(ctx, row.UserID); err == nil && s.Notifier != nil {
		s.Notify.Go(ctx, NotifyWelcome, u.ID, func(ctx context.Context) error {
			return s.Notifier.SendWelcomeEmail(ctx, u.Email, u.Name)
		})
	}
	helpers.LogInfo(s.Logger, "email verified", logrus.Fields{"user_id": row.UserID})
	return &Consumption{UserID: row.UserID, Purpose: PurposeVerifyEmail}, nil
}

// checkReset returns the owner of a live reset token, clearing it when expired.
func (s *TokenService) checkReset(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrTokenNotFound
	}
	row, err := s.Store.Tokens().FindByPasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("find reset token: %w", err)
	}
	if s.expired(row.TokenExpiry) {
		if err := s.Store.Tokens().ClearPasswordResetToken(ctx, row.UserID, token); err != nil && !errors.Is(err, repo.ErrStaleToken) {
			return "", fmt.Errorf("clear expired token: %w", err)
		}
		return "", ErrTokenExpired
	}
	return row.UserID, nil
}

// expired treats a token without expiry as expired.
func (s *TokenService) expired(expiry *time.Time) bool {
	return expiry == nil || s.now().After(*expiry)
}

func (s *TokenService) loadUser(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// send runs an awaited notification and records the outcome.
func (s *TokenService) send(ctx context.Context, kind string, fn func(context.Context) error) error {
	if s.Notifier == nil {
		countNotification(kind, ErrTransportUnavailable)
		return ErrTransportUnavailable
	}
	err := fn(ctx)
	countNotification(kind, err)
	return err
}

// staleAsNotFound reports a lost compare-and-swap as an unknown token.
func staleAsNotFound(err error) error {
	if errors.Is(err, repo.ErrStaleToken) {
		return ErrTokenNotFound
	}
	return err
}

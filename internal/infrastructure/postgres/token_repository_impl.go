package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
)

const (
	colVerifyToken  = "email_verification_token"
	colVerifyExpiry = "email_verification_token_expiry"
	colResetToken   = "password_reset_token"
	colResetExpiry  = "password_reset_token_expiry"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) GetEmailStatus(ctx context.Context, userID string) (*entity.UserEmail, error) {
	var e entity.UserEmail
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&e).Error; err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *TokenRepository) SetVerificationToken(ctx context.Context, userID, token string, expiry time.Time) error {
	row := &entity.UserEmail{UserID: userID, Token: &token, TokenExpiry: &expiry}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{colVerifyToken, colVerifyExpiry}),
	}).Create(row).Error
	return mapErr(err)
}

func (r *TokenRepository) FindByVerificationToken(ctx context.Context, token string) (*entity.UserEmail, error) {
	var e entity.UserEmail
	if err := r.db.WithContext(ctx).Where(colVerifyToken+" = ?", token).First(&e).Error; err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *TokenRepository) MarkEmailVerified(ctx context.Context, userID, token string) error {
	return casUpdate(r.db.WithContext(ctx), &entity.UserEmail{}, colVerifyToken, userID, token, map[string]any{
		"email_verified": true,
		colVerifyToken:   nil,
		colVerifyExpiry:  nil,
	})
}

func (r *TokenRepository) ClearVerificationToken(ctx context.Context, userID, token string) error {
	return casUpdate(r.db.WithContext(ctx), &entity.UserEmail{}, colVerifyToken, userID, token, map[string]any{
		colVerifyToken:  nil,
		colVerifyExpiry: nil,
	})
}

func (r *TokenRepository) SetPasswordResetToken(ctx context.Context, userID, token string, expiry time.Time) error {
	row := &entity.UserPasswordReset{UserID: userID, Token: &token, TokenExpiry: &expiry}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{colResetToken, colResetExpiry}),
	}).Create(row).Error
	return mapErr(err)
}

func (r *TokenRepository) FindByPasswordResetToken(ctx context.Context, token string) (*entity.UserPasswordReset, error) {
	var pr entity.UserPasswordReset
	if err := r.db.WithContext(ctx).Where(colResetToken+" = ?", token).First(&pr).Error; err != nil {
		return nil, mapErr(err)
	}
	return &pr, nil
}

func (r *TokenRepository) ClearPasswordResetToken(ctx context.Context, userID, token string) error {
	return casUpdate(r.db.WithContext(ctx), &entity.UserPasswordReset{}, colResetToken, userID, token, map[string]any{
		colResetToken:  nil,
		colResetExpiry: nil,
	})
}

func (r *TokenRepository) ConsumePasswordReset(ctx context.Context, userID, token, passwordHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := casUpdate(tx, &entity.UserPasswordReset{}, colResetToken, userID, token, map[string]any{
			colResetToken:  nil,
			colResetExpiry: nil,
		})
		if err != nil {
			return err
		}
		return NewUserRepository(tx).UpdatePassword(ctx, userID, passwordHash)
	})
}

// casUpdate applies values only while tokenCol still holds token.
func casUpdate(db *gorm.DB, model any, tokenCol, userID, token string, values map[string]any) error {
	res := db.Model(model).
		Where("user_id = ? AND "+tokenCol+" = ?", userID, token).
		Updates(values)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrStaleToken
	}
	return nil
}

var _ repository.TokenRepository = (*TokenRepository)(nil)

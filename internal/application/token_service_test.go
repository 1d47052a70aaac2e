package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	repo "github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/validation"
)

func TestVerificationTokenConsumesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "ana@example.com", "password1")

	var mailed string
	f.notifier.EXPECT().SendVerificationEmail(gomock.Any(), "ana@example.com", "Ana", gomock.Any()).DoAndReturn(captureToken(&mailed))
	f.notifier.EXPECT().SendWelcomeEmail(gomock.Any(), "ana@example.com", "Ana").Return(nil)

	token, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, token, mailed)
	require.Len(t, token, 43)

	status, err := f.store.Tokens().GetEmailStatus(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Token)
	require.True(t, f.clock.now.Add(24*time.Hour).Equal(*status.TokenExpiry))

	got, err := f.tokens.ValidateAndConsume(ctx, token, PurposeVerifyEmail)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)

	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposeVerifyEmail)
	require.ErrorIs(t, err, ErrTokenNotFound)

	status, err = f.store.Tokens().GetEmailStatus(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, status.EmailVerified)
	require.Nil(t, status.Token)
	require.Nil(t, status.TokenExpiry)
}

func TestExpiredVerificationTokenIsCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "late@example.com", "password1")
	f.notifier.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	token, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour + time.Second)
	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposeVerifyEmail)
	require.ErrorIs(t, err, ErrTokenExpired)

	status, err := f.store.Tokens().GetEmailStatus(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, status.EmailVerified)
	require.Nil(t, status.Token)
	require.Nil(t, status.TokenExpiry)

	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposeVerifyEmail)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestReissueInvalidatesPreviousToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "twice@example.com", "password1")
	f.notifier.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.notifier.EXPECT().SendWelcomeEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	first, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)
	second, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = f.tokens.ValidateAndConsume(ctx, first, PurposeVerifyEmail)
	require.ErrorIs(t, err, ErrTokenNotFound)
	_, err = f.tokens.ValidateAndConsume(ctx, second, PurposeVerifyEmail)
	require.NoError(t, err)
}

func TestIssueVerificationRejectsVerifiedAndUnknownUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "done@example.com", "password1")
	f.notifier.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	f.notifier.EXPECT().SendWelcomeEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	token, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)
	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposeVerifyEmail)
	require.NoError(t, err)

	_, err = f.tokens.IssueVerificationToken(ctx, u.ID)
	require.ErrorIs(t, err, ErrEmailAlreadyVerified)

	_, err = f.tokens.IssueVerificationToken(ctx, "no-such-user")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestIssueVerificationSurfacesTransportFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "nomail@example.com", "password1")
	failed := statDelta(t, NotifyVerification+"_failed")
	f.notifier.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(ErrTransportUnavailable)

	_, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.ErrorIs(t, err, ErrTransportUnavailable)
	require.EqualValues(t, 1, failed())

	// the token stays persisted even though it was never delivered
	status, err := f.store.Tokens().GetEmailStatus(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Token)
}

func TestWelcomeFailureDoesNotFailVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "welcome@example.com", "password1")
	failed := statDelta(t, NotifyWelcome+"_failed")
	f.notifier.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	f.notifier.EXPECT().SendWelcomeEmail(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	token, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)
	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposeVerifyEmail)
	require.NoError(t, err)
	require.EqualValues(t, 1, failed())
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "reset@example.com", "old-password")

	var mailed string
	f.notifier.EXPECT().SendPasswordResetEmail(gomock.Any(), "reset@example.com", "Ana", gomock.Any()).DoAndReturn(captureToken(&mailed))
	f.notifier.EXPECT().SendPasswordChangedEmail(gomock.Any(), "reset@example.com", "Ana").Return(errors.New("smtp down"))

	require.NoError(t, f.tokens.RequestPasswordReset(ctx, "RESET@example.com"))
	require.NotEmpty(t, mailed)

	// peeking does not consume
	got, err := f.tokens.CheckPasswordResetToken(ctx, mailed)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)

	require.NoError(t, f.tokens.ResetPassword(ctx, mailed, "new-password"))

	stored, err := f.store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, helpers.CompareHashAndPassword(stored.Password, "new-password"))

	err = f.tokens.ResetPassword(ctx, mailed, "another-password")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestResetTokenExpiresAfterOneHour(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "slow@example.com", "password1")
	f.notifier.EXPECT().SendPasswordResetEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	token, err := f.tokens.IssuePasswordResetToken(ctx, u.ID)
	require.NoError(t, err)

	f.clock.Advance(61 * time.Minute)
	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposePasswordReset)
	require.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.store.Tokens().FindByPasswordResetToken(ctx, token)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestResetConsumeReturnsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "owner@example.com", "password1")
	f.notifier.EXPECT().SendPasswordResetEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	token, err := f.tokens.IssuePasswordResetToken(ctx, u.ID)
	require.NoError(t, err)

	f.clock.Advance(59 * time.Minute)
	got, err := f.tokens.ValidateAndConsume(ctx, token, PurposePasswordReset)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)
	require.Equal(t, PurposePasswordReset, got.Purpose)

	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposePasswordReset)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestResetPasswordValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.tokens.ResetPassword(ctx, "whatever", "short")
	require.ErrorIs(t, err, validation.ErrInvalid)

	err = f.tokens.ResetPassword(ctx, "", "long-enough")
	require.ErrorIs(t, err, ErrTokenNotFound)

	require.ErrorIs(t, f.tokens.RequestPasswordReset(ctx, "ghost@example.com"), ErrUserNotFound)

	_, err = f.tokens.ValidateAndConsume(ctx, "x", Purpose("bogus"))
	require.Error(t, err)
}

// racingTokens lets another consumer win between lookup and compare-and-swap.
type racingTokens struct {
	repo.TokenRepository
}

func (r racingTokens) FindByVerificationToken(ctx context.Context, token string) (*entity.UserEmail, error) {
	row, err := r.TokenRepository.FindByVerificationToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := r.TokenRepository.MarkEmailVerified(ctx, row.UserID, token); err != nil {
		return nil, err
	}
	return row, nil
}

type racingStore struct {
	repo.Store
}

func (s racingStore) Tokens() repo.TokenRepository {
	return racingTokens{TokenRepository: s.Store.Tokens()}
}

func TestConcurrentConsumeLoserGetsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "race@example.com", "password1")
	f.notifier.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	token, err := f.tokens.IssueVerificationToken(ctx, u.ID)
	require.NoError(t, err)

	f.tokens.Store = racingStore{Store: f.store}
	_, err = f.tokens.ValidateAndConsume(ctx, token, PurposeVerifyEmail)
	require.ErrorIs(t, err, ErrTokenNotFound)

	status, err := f.store.Tokens().GetEmailStatus(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, status.EmailVerified)
}

func TestBestEffortAsyncIgnoresCancellation(t *testing.T) {
	b := NewBestEffort(helpers.NewDiscardLogger(), true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	b.Go(ctx, NotifyWelcome, "u1", func(ctx context.Context) error {
		done <- ctx.Err()
		return nil
	})
	b.Wait()
	require.NoError(t, <-done)
}

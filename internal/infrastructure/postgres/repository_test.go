package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/internal/infrastructure/postgres/pgtest"
	"github.com/oksasatya/go-account-lifecycle/pkg/validation"
)

func newAccount(email string) *entity.User {
	return &entity.User{
		Name:          "Ana",
		Email:         email,
		Password:      "hash",
		IsActive:      true,
		Profile:       &entity.UserProfile{Phone: "12345678"},
		EmailStatus:   &entity.UserEmail{},
		PasswordReset: &entity.UserPasswordReset{},
	}
}

func TestCreateAccountPersistsAggregate(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()

	u := newAccount("  Ana@Example.com ")
	require.NoError(t, store.Users().CreateAccount(ctx, u))
	require.Len(t, u.ID, 36)
	require.Equal(t, "ana@example.com", u.Email)

	got, err := store.Users().GetDetailed(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Profile)
	require.Equal(t, "12345678", got.Profile.Phone)
	require.NotNil(t, got.EmailStatus)
	require.False(t, got.EmailStatus.EmailVerified)
	require.True(t, got.IsActive)

	byEmail, err := store.Users().GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCreateAccountRejectsDuplicateEmailAndBadPhone(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Users().CreateAccount(ctx, newAccount("dup@example.com")))
	err := store.Users().CreateAccount(ctx, newAccount("dup@example.com"))
	require.ErrorIs(t, err, repository.ErrDuplicate)

	bad := newAccount("phone@example.com")
	bad.Profile.Phone = "123"
	err = store.Users().CreateAccount(ctx, bad)
	require.True(t, errors.Is(err, validation.ErrInvalid), "got %v", err)
}

func TestUserLookupsMissReturnNotFound(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()

	_, err := store.Users().GetByID(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Users().GetByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, store.Users().UpdatePassword(ctx, "missing", "x"), repository.ErrNotFound)
}

func TestUpsertProfile(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()
	u := newAccount("p@example.com")
	u.Profile = nil
	require.NoError(t, store.Users().CreateAccount(ctx, u))

	path := "avatars/u/a.png"
	require.NoError(t, store.Users().UpsertProfile(ctx, &entity.UserProfile{UserID: u.ID, Phone: "11112222"}))
	require.NoError(t, store.Users().UpsertProfile(ctx, &entity.UserProfile{UserID: u.ID, Phone: "33334444", AvatarPath: &path}))

	got, err := store.Users().GetDetailed(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "33334444", got.Profile.Phone)
	require.Equal(t, path, *got.Profile.AvatarPath)
}

func TestRoleFindOrCreateIsIdempotent(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()

	first, created, err := store.Roles().FindOrCreate(ctx, "admin")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, entity.RoleAdmin, first.Name)

	again, created, err := store.Roles().FindOrCreate(ctx, "ADMIN")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	roles, err := store.Roles().List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 1)
}

func TestRoleAssignmentsAreUniqueAndReplaceable(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()
	u := newAccount("r@example.com")
	require.NoError(t, store.Users().CreateAccount(ctx, u))
	admin, _, err := store.Roles().FindOrCreate(ctx, entity.RoleAdmin)
	require.NoError(t, err)
	user, _, err := store.Roles().FindOrCreate(ctx, entity.RoleUser)
	require.NoError(t, err)

	created, err := store.Roles().AddToUser(ctx, u.ID, admin.ID)
	require.NoError(t, err)
	require.True(t, created)
	created, err = store.Roles().AddToUser(ctx, u.ID, admin.ID)
	require.NoError(t, err)
	require.False(t, created)

	n, err := store.Roles().CountAssignments(ctx, u.ID, admin.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	users, err := store.Roles().ListUsers(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, []string{entity.RoleAdmin}, users[0].RoleNames())

	require.NoError(t, store.Roles().ReplaceForUser(ctx, u.ID, user.ID))
	roles, err := store.Roles().ListForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, entity.RoleUser, roles[0].Name)
}

func TestVerificationTokenCompareAndSwap(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()
	u := newAccount("t@example.com")
	u.EmailStatus = nil
	require.NoError(t, store.Users().CreateAccount(ctx, u))
	tokens := store.Tokens()

	exp := time.Now().Add(time.Hour).UTC()
	// creates the row lazily
	require.NoError(t, tokens.SetVerificationToken(ctx, u.ID, "tok-1", exp))
	// overwrites on reissue
	require.NoError(t, tokens.SetVerificationToken(ctx, u.ID, "tok-2", exp))

	_, err := tokens.FindByVerificationToken(ctx, "tok-1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	row, err := tokens.FindByVerificationToken(ctx, "tok-2")
	require.NoError(t, err)
	require.Equal(t, u.ID, row.UserID)
	require.NotNil(t, row.TokenExpiry)

	require.ErrorIs(t, tokens.MarkEmailVerified(ctx, u.ID, "tok-1"), repository.ErrStaleToken)
	require.NoError(t, tokens.MarkEmailVerified(ctx, u.ID, "tok-2"))
	require.ErrorIs(t, tokens.MarkEmailVerified(ctx, u.ID, "tok-2"), repository.ErrStaleToken)

	status, err := tokens.GetEmailStatus(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, status.EmailVerified)
	require.Nil(t, status.Token)
	require.Nil(t, status.TokenExpiry)
}

func TestConsumePasswordResetIsAtomic(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()
	u := newAccount("reset@example.com")
	require.NoError(t, store.Users().CreateAccount(ctx, u))
	tokens := store.Tokens()

	require.NoError(t, tokens.SetPasswordResetToken(ctx, u.ID, "reset-1", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.ConsumePasswordReset(ctx, u.ID, "reset-1", "new-hash"))
	require.ErrorIs(t, tokens.ConsumePasswordReset(ctx, u.ID, "reset-1", "other-hash"), repository.ErrStaleToken)

	got, err := store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.Password)

	_, err = tokens.FindByPasswordResetToken(ctx, "reset-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTxRollsBack(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().CreateAccount(ctx, newAccount("tx@example.com")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

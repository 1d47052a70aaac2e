package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/go-account-lifecycle/internal/infrastructure/postgres/pgtest"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

var testAdmin = SeedAdmin{
	Name:     "Admin",
	Email:    "admin@gestor.local",
	Password: "Admin1234!",
	Phone:    "39539423",
}

func TestSeederFreshStore(t *testing.T) {
	store, db := pgtest.NewStore(t)
	ctx := context.Background()
	seeder := NewSeeder(store, testAdmin, helpers.NewDiscardLogger())

	report, err := seeder.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, SeedReport{CreatedRoles: 2, CreatedAdmin: true}, report)

	roles, err := store.Roles().List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)

	users, err := store.Users().ListDetailed(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	admin := users[0]
	require.Equal(t, "Admin", admin.Name)
	require.Equal(t, "admin@gestor.local", admin.Email)
	require.True(t, admin.IsActive)
	require.True(t, admin.EmailVerified())
	require.Nil(t, admin.EmailStatus.Token)
	require.Equal(t, []string{entity.RoleAdmin}, admin.RoleNames())
	require.Equal(t, "39539423", admin.Profile.Phone)
	require.True(t, helpers.CompareHashAndPassword(admin.Password, "Admin1234!"))

	var reset entity.UserPasswordReset
	require.NoError(t, db.Where("user_id = ?", admin.ID).First(&reset).Error)
	require.Nil(t, reset.Token)
	require.Nil(t, reset.TokenExpiry)
}

func TestSeederIsIdempotent(t *testing.T) {
	store, _ := pgtest.NewStore(t)
	ctx := context.Background()
	seeder := NewSeeder(store, testAdmin, helpers.NewDiscardLogger())

	_, err := seeder.Run(ctx)
	require.NoError(t, err)
	report, err := seeder.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, SeedReport{Noop: true}, report)

	roles, err := store.Roles().List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestSeederSkipsAdminWhenUsersExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "first@example.com", "password1")

	report, err := NewSeeder(f.store, testAdmin, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, SeedReport{Noop: true}, report)

	_, err = f.store.Users().GetByEmail(ctx, testAdmin.Email)
	require.Error(t, err)
}

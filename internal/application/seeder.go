package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	repo "github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

// SeedAdmin describes the bootstrap administrator.
type SeedAdmin struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// SeedReport summarises what a seeder run changed.
type SeedReport struct {
	CreatedRoles int  `json:"created_roles"`
	CreatedAdmin bool `json:"created_admin"`
	Noop         bool `json:"noop"`
}

// Seeder ensures the default roles exist and, on an empty store, creates the
// first administrator. Running it again changes nothing.
type Seeder struct {
	Store  repo.Store
	Admin  SeedAdmin
	Logger *logrus.Logger
}

func NewSeeder(store repo.Store, admin SeedAdmin, logger *logrus.Logger) *Seeder {
	if admin.Name == "" {
		admin.Name = "Admin"
	}
	return &Seeder{Store: store, Admin: admin, Logger: logger}
}

func (s *Seeder) Run(ctx context.Context) (SeedReport, error) {
	var report SeedReport

	for _, name := range entity.DefaultRoles {
		_, created, err := s.Store.Roles().FindOrCreate(ctx, name)
		if err != nil {
			return report, fmt.Errorf("seed role %s: %w", name, err)
		}
		if created {
			report.CreatedRoles++
		}
	}

	n, err := s.Store.Users().Count(ctx)
	if err != nil {
		return report, fmt.Errorf("count users: %w", err)
	}
	if n == 0 {
		created, err := s.createAdmin(ctx)
		if err != nil {
			return report, err
		}
		report.CreatedAdmin = created
	}

	report.Noop = report.CreatedRoles == 0 && !report.CreatedAdmin
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"created_roles": report.CreatedRoles,
			"created_admin": report.CreatedAdmin,
			"noop":          report.Noop,
		}).Info("seed completed")
	}
	return report, nil
}

func (s *Seeder) createAdmin(ctx context.Context) (bool, error) {
	hash, err := helpers.HashPassword(s.Admin.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	err = s.Store.WithinTx(ctx, func(tx repo.Store) error {
		admin, err := tx.Roles().FindByName(ctx, entity.RoleAdmin)
		if err != nil {
			return fmt.Errorf("load admin role: %w", err)
		}
		u := &entity.User{
			Name:          s.Admin.Name,
			Email:         s.Admin.Email,
			Password:      hash,
			IsActive:      true,
			Profile:       &entity.UserProfile{Phone: s.Admin.Phone},
			EmailStatus:   &entity.UserEmail{EmailVerified: true},
			PasswordReset: &entity.UserPasswordReset{},
		}
		if err := tx.Users().CreateAccount(ctx, u); err != nil {
			return err
		}
		_, err = tx.Roles().AddToUser(ctx, u.ID, admin.ID)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// another instance seeded the admin concurrently
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}

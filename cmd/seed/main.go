package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-account-lifecycle/config"
	"github.com/oksasatya/go-account-lifecycle/internal/application"
	pginfra "github.com/oksasatya/go-account-lifecycle/internal/infrastructure/postgres"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	db, err := pginfra.OpenGorm(pool)
	if err != nil {
		log.Fatalf("failed to open gorm: %v", err)
	}

	seeder := application.NewSeeder(pginfra.NewStore(db), application.SeedAdmin{
		Name:     cfg.SeedAdminName,
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
		Phone:    cfg.SeedAdminPhone,
	}, logger)
	report, err := seeder.Run(ctx)
	if err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	out, _ := json.Marshal(report)
	fmt.Println(string(out))
}

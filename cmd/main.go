package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/oksasatya/go-account-lifecycle/config"
	"github.com/oksasatya/go-account-lifecycle/internal/application"
	"github.com/oksasatya/go-account-lifecycle/internal/container"
	pginfra "github.com/oksasatya/go-account-lifecycle/internal/infrastructure/postgres"
	"github.com/oksasatya/go-account-lifecycle/internal/router"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/mailer"
	"github.com/oksasatya/go-account-lifecycle/pkg/mailer/templates"
	"github.com/oksasatya/go-account-lifecycle/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Postgres pool shared by gorm
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}

	db, err := pginfra.OpenGorm(pool)
	if err != nil {
		log.Fatalf("failed to open gorm: %v", err)
	}

	// Redis sessions and rate limits
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	// GCS only when avatars have a bucket
	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init GCS client: %v", err)
		}
		defer func() { _ = gcsClient.Close() }()
		container.SetGCS(gcsClient)
	}

	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		logger.WithError(err).Warn("elasticsearch disabled")
	}

	transport, closeTransport, err := mailer.NewTransport(cfg, logger)
	if err != nil {
		log.Fatalf("failed to init mail transport: %v", err)
	}
	defer closeTransport()
	notifier := mailer.NewAccountNotifier(transport,
		templates.Brand{AppName: cfg.AppName, CompanyName: cfg.CompanyName, SupportURL: cfg.SupportURL},
		cfg.FrontendURL, cfg.VerifyTokenTTL, cfg.ResetTokenTTL)
	notify := application.NewBestEffort(logger, cfg.MailAsync)

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetDB(db)
	container.SetRedis(rdb)
	container.SetES(es)
	container.SetJWT(helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL))
	container.SetNotifier(notifier)
	container.SetBestEffort(notify)

	r := router.NewEngine(cfg)
	reg := router.NewRegistry(r)
	deps := router.InitModules(reg)
	reg.RegisterAll()

	if cfg.SeedOnStartup {
		seeder := application.NewSeeder(deps.Store, application.SeedAdmin{
			Name:     cfg.SeedAdminName,
			Email:    cfg.SeedAdminEmail,
			Password: cfg.SeedAdminPassword,
			Phone:    cfg.SeedAdminPhone,
		}, logger)
		if _, err := seeder.Run(ctx); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	notify.Wait()
	logger.Info("server exited properly")
}

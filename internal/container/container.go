package container

import (
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/oksasatya/go-account-lifecycle/config"
	"github.com/oksasatya/go-account-lifecycle/internal/application"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

// app-level container to share constructed components across packages.
// The router wires its modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	gormDB      *gorm.DB
	redisClient *redis.Client
	gcsClient   *storage.Client
	esClient    *elasticsearch.Client

	jwtManager *helpers.JWTManager

	notifier application.Notifier
	notify   *application.BestEffort
)

func SetConfig(c *config.Config)    { cfg = c }
func GetConfig() *config.Config     { return cfg }
func SetLogger(l *logrus.Logger)    { logger = l }
func GetLogger() *logrus.Logger     { return logger }
func SetPGPool(p *pgxpool.Pool)     { pgPool = p }
func GetPGPool() *pgxpool.Pool      { return pgPool }
func SetDB(db *gorm.DB)             { gormDB = db }
func GetDB() *gorm.DB               { return gormDB }
func SetRedis(r *redis.Client)      { redisClient = r }
func GetRedis() *redis.Client       { return redisClient }
func SetGCS(s *storage.Client)      { gcsClient = s }
func GetGCS() *storage.Client       { return gcsClient }
func SetES(c *elasticsearch.Client) { esClient = c }
func GetES() *elasticsearch.Client  { return esClient }
func SetJWT(m *helpers.JWTManager)  { jwtManager = m }
func GetJWT() *helpers.JWTManager {
	if jwtManager != nil {
		return jwtManager
	}
	if cfg != nil {
		jwtManager = helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	}
	return jwtManager
}

// SetNotifier stores the mail port. A nil Notifier leaves awaited sends
// failing with ErrTransportUnavailable.
func SetNotifier(n application.Notifier) { notifier = n }
func GetNotifier() application.Notifier  { return notifier }

func SetBestEffort(b *application.BestEffort) { notify = b }
func GetBestEffort() *application.BestEffort {
	if notify == nil {
		notify = application.NewBestEffort(logger, false)
	}
	return notify
}

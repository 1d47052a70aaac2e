package router

import (
	"github.com/oksasatya/go-account-lifecycle/internal/application"
	"github.com/oksasatya/go-account-lifecycle/internal/container"
	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	pginfra "github.com/oksasatya/go-account-lifecycle/internal/infrastructure/postgres"
	handlers "github.com/oksasatya/go-account-lifecycle/internal/interface/http"
	"github.com/oksasatya/go-account-lifecycle/internal/interface/middleware"
	"github.com/oksasatya/go-account-lifecycle/internal/router/modules"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

// Deps is everything the HTTP modules are built from.
type Deps struct {
	Store  *pginfra.Store
	Roles  *application.RoleService
	Tokens *application.TokenService
	Users  *application.Service

	Auth  *handlers.AuthHandler
	User  *handlers.UserHandler
	Role  *handlers.RoleHandler
	Guard modules.Guard
}

// BuildDeps wires services and handlers from the container singletons.
func BuildDeps() Deps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	jwt := container.GetJWT()
	store := pginfra.NewStore(container.GetDB())

	roles := application.NewRoleService(store, logger)
	tokens := application.NewTokenService(store, container.GetNotifier(), container.GetBestEffort(), logger, cfg.VerifyTokenTTL, cfg.ResetTokenTTL)

	users := application.NewService(store, roles, tokens, jwt, container.GetNotifier(), container.GetBestEffort(), logger)
	users.Redis = container.GetRedis()
	if cfg.RefreshTTL > 0 {
		users.SessionTTL = cfg.RefreshTTL
	}
	users.GCS = container.GetGCS()
	users.GCSBucket = cfg.GCSBucket
	users.AvatarBaseURL = cfg.AvatarBaseURL
	users.DefaultAvatarPath = cfg.DefaultAvatarPath
	users.ES = container.GetES()
	users.ESUsersIndex = cfg.ESUsersIndex

	cookies := helpers.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure)

	return Deps{
		Store:  store,
		Roles:  roles,
		Tokens: tokens,
		Users:  users,
		Auth:   handlers.NewAuthHandler(users, tokens, jwt, cookies, logger),
		User:   handlers.NewUserHandler(users, logger),
		Role:   handlers.NewRoleHandler(roles, users, logger),
		Guard: modules.Guard{
			Auth:  middleware.Auth(jwt, users),
			Admin: middleware.RequireRole(roles, entity.RoleAdmin),
		},
	}
}

// InitModules initializes all application modules and registers them with the router registry.
// This function should be called once during application startup to wire up all modules.
func InitModules(r *Registry) Deps {
	deps := BuildDeps()
	rdb := container.GetRedis()

	r.Add(modules.NewAuthModule(deps.Auth, deps.Guard, rdb))
	r.Add(modules.NewUserModule(deps.User, deps.Guard, rdb))
	r.Add(modules.NewRoleModule(deps.Role, deps.Guard, rdb))
	if cfg := container.GetConfig(); cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(rdb))
	}
	return deps
}

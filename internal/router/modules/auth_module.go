package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-account-lifecycle/internal/interface/http"
	"github.com/oksasatya/go-account-lifecycle/internal/interface/middleware"
)

// AuthModule routes registration, sessions, email verification and password
// reset.
// Public: register, login, refresh, logout, verify/confirm, reset/*
// Protected: verify/init
type AuthModule struct {
	Handler *handlers.AuthHandler
	Guard   Guard
	Redis   *redis.Client
}

func NewAuthModule(h *handlers.AuthHandler, g Guard, rdb *redis.Client) *AuthModule {
	return &AuthModule{Handler: h, Guard: g, Redis: rdb}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	limit := func(max int, key middleware.KeyFunc) gin.HandlerFunc {
		return middleware.RateLimit(m.Redis, max, time.Minute, key, nil)
	}

	rg.POST("/auth/register", limit(10, middleware.KeyByIPAndPath()), m.Handler.Register)
	rg.POST("/auth/login", limit(10, middleware.KeyByIPAndPath()), m.Handler.Login)
	rg.POST("/auth/refresh", limit(60, middleware.KeyByIPAndPath()), m.Handler.Refresh)
	rg.POST("/auth/logout", m.Handler.Logout)

	rg.POST("/auth/verify/confirm", limit(30, middleware.KeyByIPAndPath()), m.Handler.VerifyConfirm)
	rg.POST("/auth/reset/init", limit(5, middleware.KeyByIPAndPath()), m.Handler.ResetInit)
	rg.GET("/auth/reset/validate", limit(30, middleware.KeyByIPAndPath()), m.Handler.ResetValidate)
	rg.POST("/auth/reset/confirm", limit(30, middleware.KeyByIPAndPath()), m.Handler.ResetConfirm)

	auth := m.Guard.authed(rg, m.Redis)
	{
		auth.POST("/auth/verify/init", limit(5, middleware.KeyByUserID()), m.Handler.VerifyInit)
	}
}

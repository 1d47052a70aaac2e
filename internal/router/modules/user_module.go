package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-account-lifecycle/internal/interface/http"
)

// UserModule wires profile and user listing routes.
// Protected: GET|PUT /profile, POST /profile/avatar, PUT /profile/password
// Admin: GET /users/all, GET /users/search
type UserModule struct {
	Handler *handlers.UserHandler
	Guard   Guard
	Redis   *redis.Client
}

func NewUserModule(h *handlers.UserHandler, g Guard, rdb *redis.Client) *UserModule {
	return &UserModule{Handler: h, Guard: g, Redis: rdb}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := m.Guard.authed(rg, m.Redis)
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
		auth.PUT("/profile/password", m.Handler.ChangePassword)
	}

	admin := m.Guard.admin(rg, m.Redis)
	{
		admin.GET("/users/all", m.Handler.ListAll)
		admin.GET("/users/search", m.Handler.Search)
	}
}

package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-account-lifecycle/internal/interface/http"
)

// RoleModule wires role assignment and role queries.
type RoleModule struct {
	Handler *handlers.RoleHandler
	Guard   Guard
	Redis   *redis.Client
}

func NewRoleModule(h *handlers.RoleHandler, g Guard, rdb *redis.Client) *RoleModule {
	return &RoleModule{Handler: h, Guard: g, Redis: rdb}
}

func (m *RoleModule) Register(rg *gin.RouterGroup) {
	auth := m.Guard.authed(rg, m.Redis)
	{
		auth.GET("/users/:userId/roles", m.Handler.ListRoles)
	}

	admin := m.Guard.admin(rg, m.Redis)
	{
		admin.PUT("/users/:userId/role", m.Handler.SetRole)
		admin.POST("/users/:userId/roles", m.Handler.AddRole)
		admin.GET("/users/by-role/:roleName", m.Handler.ListUsersByRole)
	}
}

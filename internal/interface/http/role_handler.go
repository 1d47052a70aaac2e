package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/application"
	"github.com/oksasatya/go-account-lifecycle/internal/domain/entity"
	"github.com/oksasatya/go-account-lifecycle/pkg/response"
)

// RoleHandler exposes role assignment and role queries.
type RoleHandler struct {
	Roles  *application.RoleService
	Users  *application.Service
	Logger *logrus.Logger
}

func NewRoleHandler(roles *application.RoleService, users *application.Service, logger *logrus.Logger) *RoleHandler {
	return &RoleHandler{Roles: roles, Users: users, Logger: logger}
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SetRole PUT /api/users/:userId/role (admin) replaces every role of the user.
func (h *RoleHandler) SetRole(c *gin.Context) {
	h.change(c, h.Roles.SetRole, "role set")
}

// AddRole POST /api/users/:userId/roles (admin). Adding a held role is a no-op.
func (h *RoleHandler) AddRole(c *gin.Context) {
	h.change(c, h.Roles.AssignRole, "role assigned")
}

func (h *RoleHandler) change(c *gin.Context, apply func(context.Context, string, string) error, msg string) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	uid := c.Param("userId")
	if err := apply(c.Request.Context(), uid, req.Role); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.respondRoles(c, uid, msg)
}

// ListRoles GET /api/users/:userId/roles. Users may read their own roles;
// anyone else needs ADMIN.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	uid := c.Param("userId")
	if caller := currentUserID(c); caller != uid {
		ok, err := h.Roles.HasRole(c.Request.Context(), caller, entity.RoleAdmin)
		if err != nil {
			writeError(c, h.Logger, err)
			return
		}
		if !ok {
			writeError(c, h.Logger, application.ErrForbidden)
			return
		}
	}
	h.respondRoles(c, uid, "roles")
}

// ListUsersByRole GET /api/users/by-role/:roleName (admin)
func (h *RoleHandler) ListUsersByRole(c *gin.Context) {
	users, err := h.Roles.ListUsersByRole(c.Request.Context(), c.Param("roleName"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	views := h.Users.Views(users)
	r := response.Success(c, http.StatusOK, views, "users", map[string]any{"count": len(views)})
	c.JSON(r.Status, r)
}

func (h *RoleHandler) respondRoles(c *gin.Context, uid, msg string) {
	names, err := h.Roles.ListRolesForUser(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	primary := entity.RoleUser
	if len(names) > 0 {
		primary = names[0]
	}
	response.OK(c, http.StatusOK, gin.H{"user_id": uid, "roles": names, "primary_role": primary}, msg)
}

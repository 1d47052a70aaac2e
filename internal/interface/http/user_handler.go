package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/application"
	"github.com/oksasatya/go-account-lifecycle/pkg/response"
)

const maxAvatarBytes = 5 << 20

type UserHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *application.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type updateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=255"`
	Phone *string `json:"phone" binding:"omitempty,phone8"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	v, err := h.Svc.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, v, "profile")
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	v, err := h.Svc.UpdateProfile(c.Request.Context(), currentUserID(c), application.UpdateProfileInput{Name: req.Name, Phone: req.Phone})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, v, "profile updated")
}

// UploadAvatar POST /api/profile/avatar (multipart field "avatar", images up to 5 MiB)
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes+1<<10)
	fh, err := c.FormFile("avatar")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", gin.H{"avatar": "is required"})
		return
	}
	if fh.Size > maxAvatarBytes {
		response.Fail(c, http.StatusBadRequest, "invalid payload", gin.H{"avatar": "must be at most 5MB"})
		return
	}
	ct := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		response.Fail(c, http.StatusBadRequest, "invalid payload", gin.H{"avatar": "must be an image"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	defer func() { _ = f.Close() }()

	v, err := h.Svc.UploadAvatar(c.Request.Context(), currentUserID(c), f, fh.Filename, ct)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, v, "avatar updated")
}

// ChangePassword PUT /api/profile/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"changed": true}, "password changed")
}

// ListAll GET /api/users/all (admin)
func (h *UserHandler) ListAll(c *gin.Context) {
	users, err := h.Svc.ListAllUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	r := response.Success(c, http.StatusOK, users, "users", map[string]any{"count": len(users)})
	c.JSON(r.Status, r)
}

// Search GET /api/users/search?q=&size= (admin)
func (h *UserHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Fail(c, http.StatusBadRequest, "invalid payload", gin.H{"q": "is required"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	r := response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
	c.JSON(r.Status, r)
}

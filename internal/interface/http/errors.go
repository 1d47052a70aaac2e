package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/application"
	repo "github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/internal/interface/middleware"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/response"
	"github.com/oksasatya/go-account-lifecycle/pkg/validation"
)

// writeError maps application errors onto HTTP statuses. Anything unknown is
// logged and answered with 500.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		response.Fail(c, http.StatusBadRequest, "validation failed", ve.Fields)
	case errors.Is(err, application.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, application.ErrRoleNotFound):
		response.Fail(c, http.StatusNotFound, "role not found", nil)
	case errors.Is(err, application.ErrTokenNotFound), errors.Is(err, application.ErrTokenExpired):
		response.Fail(c, http.StatusBadRequest, "invalid or expired token", gin.H{"token": err.Error()})
	case errors.Is(err, application.ErrUnauthorized), errors.Is(err, application.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, application.ErrInactiveUser), errors.Is(err, application.ErrForbidden):
		response.Fail(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, application.ErrEmailTaken), errors.Is(err, repo.ErrDuplicate):
		response.Fail(c, http.StatusConflict, application.ErrEmailTaken.Error(), nil)
	case errors.Is(err, application.ErrEmailAlreadyVerified):
		response.Fail(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, application.ErrTransportUnavailable), errors.Is(err, application.ErrStorageUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, err.Error(), nil)
	default:
		helpers.LogError(logger, "request failed", err, logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		})
		response.Fail(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func badPayload(c *gin.Context, err error) {
	response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.CtxUserIDKey)
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-lifecycle/internal/application"
	repo "github.com/oksasatya/go-account-lifecycle/internal/domain/repository"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/validation"
)

func TestWriteErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{validation.NewError("phone", "must be exactly 8 digits"), http.StatusBadRequest},
		{fmt.Errorf("load: %w", application.ErrUserNotFound), http.StatusNotFound},
		{application.ErrRoleNotFound, http.StatusNotFound},
		{application.ErrTokenNotFound, http.StatusBadRequest},
		{application.ErrTokenExpired, http.StatusBadRequest},
		{application.ErrUnauthorized, http.StatusUnauthorized},
		{application.ErrInvalidCredentials, http.StatusUnauthorized},
		{application.ErrForbidden, http.StatusForbidden},
		{application.ErrInactiveUser, http.StatusForbidden},
		{application.ErrEmailTaken, http.StatusConflict},
		{repo.ErrDuplicate, http.StatusConflict},
		{fmt.Errorf("send: %w", application.ErrTransportUnavailable), http.StatusServiceUnavailable},
		{application.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			writeError(c, helpers.NewDiscardLogger(), tc.err)
			require.Equal(t, tc.want, w.Code)
			require.True(t, c.IsAborted())
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, nil, errors.New("pq: password authentication failed"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "password authentication")
}

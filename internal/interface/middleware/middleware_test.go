package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
)

func init() { gin.SetMode(gin.TestMode) }

type stubSessions struct{ err error }

func (s stubSessions) ValidateSession(context.Context, string, string) error { return s.err }

type stubRoles struct {
	has bool
	err error
}

func (s stubRoles) HasRole(context.Context, string, string) (bool, error) { return s.has, s.err }

func echoUser(c *gin.Context) {
	c.String(http.StatusOK, c.GetString(CtxUserIDKey)+"/"+c.GetString(CtxSessionIDKey))
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	jwt := helpers.NewJWTManager("a", "r", time.Minute, time.Hour)
	access, _, err := jwt.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ok", Auth(jwt, stubSessions{}), echoUser)
	r.GET("/gone", Auth(jwt, stubSessions{err: errors.New("no session")}), echoUser)

	w := do(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessCookie, Value: access})
	w = do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1/s1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	require.Equal(t, http.StatusOK, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/gone", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	require.Equal(t, http.StatusUnauthorized, do(r, req).Code)
}

func TestRequireRole(t *testing.T) {
	withUser := func(c *gin.Context) { c.Set(CtxUserIDKey, "u1") }
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	r := gin.New()
	r.GET("/anon", RequireRole(stubRoles{has: true}, "ADMIN"), ok)
	r.GET("/user", withUser, RequireRole(stubRoles{}, "ADMIN"), ok)
	r.GET("/admin", withUser, RequireRole(stubRoles{has: true}, "ADMIN"), ok)
	r.GET("/broken", withUser, RequireRole(stubRoles{err: errors.New("db down")}, "ADMIN"), ok)

	require.Equal(t, http.StatusUnauthorized, do(r, httptest.NewRequest(http.MethodGet, "/anon", nil)).Code)
	w := do(r, httptest.NewRequest(http.MethodGet, "/user", nil))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "ADMIN")
	require.Equal(t, http.StatusNoContent, do(r, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	require.Equal(t, http.StatusInternalServerError, do(r, httptest.NewRequest(http.MethodGet, "/broken", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RealIP())
	r.POST("/login", RateLimit(rdb, 2, time.Minute, KeyByIPAndPath(), nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/internal", RateLimit(rdb, 1, time.Minute, KeyByIP(), AllowPrivateIP()), func(c *gin.Context) { c.Status(http.StatusOK) })

	login := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		return do(r, req)
	}
	w := login()
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, http.StatusOK, login().Code)

	w = login()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	m.FastForward(time.Minute)
	require.Equal(t, http.StatusOK, login().Code, "window expired")

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		req.RemoteAddr = "10.1.2.3:5000"
		require.Equal(t, http.StatusOK, do(r, req).Code, "private clients bypass")
	}
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(nil, 1, time.Minute, KeyByIP(), nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestRealIP(t *testing.T) {
	r := gin.New()
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRealIPKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-Connecting-IP", "198.51.100.4")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "198.51.100.4", do(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", do(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	require.Equal(t, "192.0.2.10", do(r, req).Body.String())
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Body.String())
	require.NoError(t, err)
	require.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	require.Equal(t, inbound, do(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	require.NotEqual(t, "not-a-uuid", do(r, req).Body.String())
}

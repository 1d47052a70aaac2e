package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-lifecycle/internal/application"
	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/response"
)

// AuthHandler serves registration, sessions, email verification and
// password reset.
type AuthHandler struct {
	Users   *application.Service
	Tokens  *application.TokenService
	JWT     *helpers.JWTManager
	Cookies *helpers.CookieManager
	Logger  *logrus.Logger
}

func NewAuthHandler(users *application.Service, tokens *application.TokenService, jwt *helpers.JWTManager, cookies *helpers.CookieManager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens, JWT: jwt, Cookies: cookies, Logger: logger}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,pwd"`
	Phone    string `json:"phone" binding:"required,phone8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetInitRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	res, err := h.Users.Register(c.Request.Context(), application.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusCreated, gin.H{"user": res.User, "verification_sent": res.VerificationSent}, "registered")
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	view, pair, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	r := response.Success(c, http.StatusOK, gin.H{"user": view, "access_token": pair.AccessToken}, "login successful",
		map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
	c.JSON(r.Status, r)
}

// Refresh POST /api/auth/refresh, reading the refresh_token cookie or body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, _ := c.Cookie(helpers.RefreshCookie)
	if refresh == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&body)
		refresh = body.RefreshToken
	}
	if refresh == "" {
		response.Fail(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Users.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	r := response.Success(c, http.StatusOK, gin.H{"refreshed": true, "access_token": pair.AccessToken}, "token refreshed",
		map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
	c.JSON(r.Status, r)
}

// Logout POST /api/auth/logout drops the server session when the caller still
// holds a valid token and always clears the cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	if uid := h.sessionOwner(c); uid != "" {
		if err := h.Users.Logout(c.Request.Context(), uid); err != nil {
			helpers.LogError(h.Logger, "logout failed", err, logrus.Fields{"user_id": uid})
		}
	}
	h.Cookies.Clear(c)
	response.OK(c, http.StatusOK, gin.H{"logged_out": true}, "logged out")
}

func (h *AuthHandler) sessionOwner(c *gin.Context) string {
	if tok, err := c.Cookie(helpers.AccessCookie); err == nil && tok != "" {
		if claims, err := h.JWT.ParseAccessToken(tok); err == nil {
			return claims.UserID
		}
	}
	if tok, err := c.Cookie(helpers.RefreshCookie); err == nil && tok != "" {
		if claims, err := h.JWT.ParseRefreshToken(tok); err == nil {
			return claims.UserID
		}
	}
	return ""
}

// VerifyInit POST /api/auth/verify/init (auth required) mails a fresh
// verification link. An already verified account is answered with 200.
func (h *AuthHandler) VerifyInit(c *gin.Context) {
	uid := currentUserID(c)
	if uid == "" {
		response.Fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	_, err := h.Tokens.IssueVerificationToken(c.Request.Context(), uid)
	if errors.Is(err, application.ErrEmailAlreadyVerified) {
		response.OK(c, http.StatusOK, gin.H{"already_verified": true}, "already verified")
		return
	}
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"sent": true}, "verification email sent")
}

// VerifyConfirm POST /api/auth/verify/confirm {token}
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	res, err := h.Tokens.ValidateAndConsume(c.Request.Context(), req.Token, application.PurposeVerifyEmail)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"verified": true, "user_id": res.UserID}, "email verified")
}

// ResetInit POST /api/auth/reset/init {email}. Unknown and inactive accounts
// get the same answer as real ones.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req resetInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	err := h.Tokens.RequestPasswordReset(c.Request.Context(), req.Email)
	switch {
	case err == nil:
	case errors.Is(err, application.ErrUserNotFound), errors.Is(err, application.ErrInactiveUser):
		helpers.LogInfo(h.Logger, "password reset requested for unknown account", logrus.Fields{"ip": clientIP(c)})
	default:
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"requested": true}, "if the account exists a reset link was sent")
}

// ResetValidate GET /api/auth/reset/validate?token=
func (h *AuthHandler) ResetValidate(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Fail(c, http.StatusBadRequest, "invalid payload", gin.H{"token": "is required"})
		return
	}
	if _, err := h.Tokens.CheckPasswordResetToken(c.Request.Context(), token); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"valid": true}, "token valid")
}

// ResetConfirm POST /api/auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}
	if err := h.Tokens.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"reset": true}, "password updated")
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

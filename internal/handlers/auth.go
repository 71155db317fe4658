package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftfolio/craftfolio/internal/middleware"
	"github.com/craftfolio/craftfolio/internal/services"
	appErrors "github.com/craftfolio/craftfolio/pkg/errors"
	"github.com/craftfolio/craftfolio/pkg/response"
)

// CookieOptions controls the session token cookie written on login and registration.
type CookieOptions struct {
	Name   string
	Domain string
	Secure bool
}

// AuthHandler manages credential flows (register/verify/login/reset/logout/me).
type AuthHandler struct {
	accounts *services.AccountService
	cookie   CookieOptions
}

func NewAuthHandler(accounts *services.AccountService, cookie CookieOptions) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = middleware.DefaultTokenCookie
	}
	return &AuthHandler{accounts: accounts, cookie: cookie}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.BeginRegistration(c.Request.Context(), req.Email); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Verification code sent to your email",
	})
}

type verifyOTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=6"`
}

// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, token, err := h.accounts.CompleteRegistration(c.Request.Context(), services.CompleteRegistrationInput{
		Name:     req.Name,
		Email:    req.Email,
		Code:     req.OTP,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	h.setSessionCookie(c, token)
	response.Success(c, http.StatusCreated, gin.H{
		"token": token,
		"user":  user,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	h.setSessionCookie(c, token)
	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.BeginPasswordReset(c.Request.Context(), req.Email); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Password reset code sent to your email",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.accounts.CompletePasswordReset(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Password reset successfully",
	})
}

// POST /api/auth/logout
//
// Tokens are stateless, so logout only clears the client cookie. A token
// captured elsewhere remains valid until its natural expiry.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
	response.Success(c, http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	maxAge := int(h.accounts.TokenTTL().Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}

// mapServiceError translates account service sentinels into client-facing errors.
// Authentication-adjacent failures collapse into uniform messages.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		return appErrors.ErrEmailTaken
	case errors.Is(err, services.ErrInvalidLogin):
		return appErrors.ErrInvalidCredentials
	case errors.Is(err, services.ErrCodeRejected):
		return appErrors.ErrInvalidCode
	case errors.Is(err, services.ErrAccountNotFound):
		return appErrors.ErrNotFound
	default:
		return appErrors.ErrInternalServer
	}
}

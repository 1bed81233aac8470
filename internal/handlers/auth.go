package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/models"
	"hikeclub/internal/services"
)

const homePath = "/stats/dashboard"

type AuthHandler struct {
	users         *services.UserService
	sessions      *services.SessionService
	passwords     *services.PasswordService
	googleEnabled bool
	logger        *zap.Logger
}

func NewAuthHandler(users *services.UserService, sessions *services.SessionService, passwords *services.PasswordService, googleEnabled bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:         users,
		sessions:      sessions,
		passwords:     passwords,
		googleEnabled: googleEnabled,
		logger:        logger,
	}
}

// Root sends visitors to the dashboard or the sign-in page.
func (h *AuthHandler) Root(c *gin.Context) {
	if middleware.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, homePath)
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", gin.H{"GoogleEnabled": h.googleEnabled})
}

func (h *AuthHandler) Login(c *gin.Context) {
	email := c.PostForm("email_address")
	password := c.PostForm("password")

	user, err := h.users.Authenticate(c.Request.Context(), email, password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.Error("login failed", zap.Error(err))
		}
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
			"Alert":         []string{"Try another email address or password."},
			"Email":         email,
			"GoogleEnabled": h.googleEnabled,
		})
		return
	}

	if err := establishSession(c, h.sessions, user, models.LoginMethodPassword); err != nil {
		h.logger.Error("failed to start session", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Unable to sign you in right now.")
		return
	}
	c.Redirect(http.StatusFound, afterLoginPath(c, homePath))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	terminateSession(c, h.sessions, h.logger)
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) ShowSignup(c *gin.Context) {
	Render(c, http.StatusOK, "auth/signup.html", nil)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var in services.SignupInput
	if err := c.ShouldBind(&in); err != nil {
		Render(c, http.StatusUnprocessableEntity, "auth/signup.html", gin.H{
			"Alert": []string{"Please provide a valid email address and a password."},
			"Form":  in,
		})
		return
	}

	user, err := h.users.Signup(c.Request.Context(), in)
	if err != nil {
		if !errors.Is(err, services.ErrEmailTaken) && !errors.Is(err, services.ErrPasswordTooShort) {
			h.logger.Error("signup failed", zap.Error(err))
		}
		Render(c, http.StatusUnprocessableEntity, "auth/signup.html", gin.H{
			"Alert": []string{errorMessage(err, services.ErrEmailTaken, services.ErrPasswordTooShort)},
			"Form":  in,
		})
		return
	}

	if err := establishSession(c, h.sessions, user, models.LoginMethodPassword); err != nil {
		h.logger.Error("failed to start session", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Your account was created but we could not sign you in.")
		return
	}
	redirectWith(c, middleware.FlashNotice, "Welcome! Your account has been created.", homePath)
}

func (h *AuthHandler) ShowForgotPassword(c *gin.Context) {
	Render(c, http.StatusOK, "auth/forgot_password.html", nil)
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	email := c.PostForm("email_address")
	if err := h.passwords.RequestReset(c.Request.Context(), email); err != nil {
		h.logger.Error("password reset request failed", zap.Error(err))
	}
	// same notice whether or not the address exists
	redirectWith(c, middleware.FlashNotice, "Password reset instructions sent (if user with that email address exists).", "/login")
}

func (h *AuthHandler) ShowResetPassword(c *gin.Context) {
	token := c.Param("token")
	if _, err := h.passwords.Verify(c.Request.Context(), token); err != nil {
		redirectWith(c, middleware.FlashAlert, services.ErrInvalidResetToken.Error(), "/passwords")
		return
	}
	Render(c, http.StatusOK, "auth/reset_password.html", gin.H{"Token": token})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	token := c.Param("token")
	password := c.PostForm("password")
	if password != c.PostForm("password_confirmation") {
		Render(c, http.StatusUnprocessableEntity, "auth/reset_password.html", gin.H{
			"Token": token,
			"Alert": []string{"Passwords did not match."},
		})
		return
	}

	_, err := h.passwords.Reset(c.Request.Context(), token, password)
	switch {
	case err == nil:
		middleware.ClearAuthentication(c)
		redirectWith(c, middleware.FlashNotice, "Password has been reset.", "/login")
	case errors.Is(err, services.ErrPasswordTooShort):
		Render(c, http.StatusUnprocessableEntity, "auth/reset_password.html", gin.H{
			"Token": token,
			"Alert": []string{err.Error()},
		})
	case errors.Is(err, services.ErrInvalidResetToken):
		redirectWith(c, middleware.FlashAlert, err.Error(), "/passwords")
	default:
		h.logger.Error("password reset failed", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Unable to reset your password right now.")
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/models"
	"hikeclub/internal/services"
)

type UserHandler struct {
	users     *services.UserService
	oauth     *services.OAuthService
	sessions  *services.SessionService
	passwords *services.PasswordService
	logger    *zap.Logger
}

func NewUserHandler(users *services.UserService, oauth *services.OAuthService, sessions *services.SessionService, passwords *services.PasswordService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, oauth: oauth, sessions: sessions, passwords: passwords, logger: logger}
}

func (h *UserHandler) current(c *gin.Context) *models.User {
	u, _ := middleware.Loaded[*models.User](c)
	return u
}

// Show renders the account page.
func (h *UserHandler) Show(c *gin.Context) {
	Render(c, http.StatusOK, "user/show.html", h.page(c, h.current(c)))
}

func (h *UserHandler) page(c *gin.Context, u *models.User, alerts ...string) gin.H {
	data := gin.H{
		"User":        u,
		"Avatar":      u.AvatarURLWithSize(200),
		"LoginMethod": middleware.SessionString(c, middleware.LoginMethodKey),
	}
	if len(alerts) > 0 {
		data["Alert"] = alerts
	}
	return data
}

func (h *UserHandler) Update(c *gin.Context) {
	u := h.current(c)
	var in services.ProfileInput
	if err := c.ShouldBind(&in); err != nil {
		Render(c, http.StatusUnprocessableEntity, "user/show.html", h.page(c, u, "Please check the nickname and phone number."))
		return
	}

	if err := h.users.UpdateProfile(c.Request.Context(), u, in); err != nil {
		if !errors.Is(err, services.ErrPasswordTooShort) {
			h.logger.Error("profile update failed", zap.Uint("user_id", u.ID), zap.Error(err))
		}
		Render(c, http.StatusUnprocessableEntity, "user/show.html", h.page(c, u, errorMessage(err, services.ErrPasswordTooShort)))
		return
	}
	redirectWith(c, middleware.FlashNotice, "Your profile has been updated.", "/user")
}

func (h *UserHandler) Destroy(c *gin.Context) {
	u := h.current(c)
	if err := h.users.Destroy(c.Request.Context(), u); err != nil {
		h.logger.Error("account deletion failed", zap.Uint("user_id", u.ID), zap.Error(err))
		redirectWith(c, middleware.FlashAlert, "Unable to delete your account.", "/user")
		return
	}
	// the session row went with the account
	middleware.ClearAuthentication(c)
	redirectWith(c, middleware.FlashNotice, "Your account has been deleted.", "/login")
}

// LinkGoogle switches the next OAuth round-trip into link mode.
func (h *UserHandler) LinkGoogle(c *gin.Context) {
	session := sessions.Default(c)
	session.Set(middleware.LinkingAccountKey, true)
	session.Save()
	c.Redirect(http.StatusFound, "/auth/google_oauth2")
}

// UnlinkGoogle detaches Google. A session started through Google ends with it.
func (h *UserHandler) UnlinkGoogle(c *gin.Context) {
	u := h.current(c)
	err := h.oauth.Unlink(c.Request.Context(), u)
	switch {
	case errors.Is(err, services.ErrPasswordRequired), errors.Is(err, services.ErrNotLinked):
		redirectWith(c, middleware.FlashAlert, err.Error()+".", "/user")
		return
	case err != nil:
		h.logger.Error("unlink failed", zap.Uint("user_id", u.ID), zap.Error(err))
		redirectWith(c, middleware.FlashAlert, "Unable to unlink your Google account.", "/user")
		return
	}

	if middleware.SessionString(c, middleware.LoginMethodKey) == models.LoginMethodGoogle {
		terminateSession(c, h.sessions, h.logger)
		redirectWith(c, middleware.FlashNotice, "Google account unlinked. Please sign in with your password.", "/login")
		return
	}
	redirectWith(c, middleware.FlashNotice, "Google account unlinked.", "/user")
}

type createGuideRequest struct {
	Guide services.GuideInput `json:"guide" binding:"required"`
}

// CreateGuide quickly registers a hike guide and mails them a link to
// choose a password.
func (h *UserHandler) CreateGuide(c *gin.Context) {
	var req createGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": []string{"Email address and name are required."}})
		return
	}

	guide, err := h.users.CreateGuide(c.Request.Context(), req.Guide)
	if err != nil {
		if !errors.Is(err, services.ErrEmailTaken) {
			h.logger.Error("guide creation failed", zap.Error(err))
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "errors": []string{errorMessage(err, services.ErrEmailTaken)}})
		return
	}
	if err := h.passwords.SendGuideInvite(guide); err != nil {
		h.logger.Error("guide invite failed", zap.Uint("user_id", guide.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"guide": gin.H{
			"id":    guide.ID,
			"email": guide.EmailAddress,
			"name":  guide.Name,
		},
	})
}

package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/models"
	"hikeclub/internal/services"
	"hikeclub/internal/utils"
)

type GoogleHandler struct {
	oauth    *services.OAuthService
	provider services.OAuthProvider
	sessions *services.SessionService
	logger   *zap.Logger
}

func NewGoogleHandler(oauth *services.OAuthService, provider services.OAuthProvider, sessions *services.SessionService, logger *zap.Logger) *GoogleHandler {
	return &GoogleHandler{oauth: oauth, provider: provider, sessions: sessions, logger: logger}
}

// Begin starts the Google round-trip, for sign-in or linking.
func (h *GoogleHandler) Begin(c *gin.Context) {
	state, err := services.GenerateStateToken()
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "Unable to start Google sign-in.")
		return
	}

	// state is checked again on the callback
	session := sessions.Default(c)
	session.Set(middleware.OAuthStateKey, state)
	session.Save()

	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

func (h *GoogleHandler) fail(c *gin.Context, message string) {
	c.Redirect(http.StatusFound, "/auth/failure?message="+url.QueryEscape(message))
}

// Callback handles the provider redirect for both sign-in and link mode.
func (h *GoogleHandler) Callback(c *gin.Context) {
	session := sessions.Default(c)
	savedState, _ := session.Get(middleware.OAuthStateKey).(string)
	linking, _ := session.Get(middleware.LinkingAccountKey).(bool)

	// state and the link flag are single use
	session.Delete(middleware.OAuthStateKey)
	session.Delete(middleware.LinkingAccountKey)
	session.Save()

	if e := c.Query("error"); e != "" {
		h.fail(c, e)
		return
	}
	if savedState == "" || c.Query("state") != savedState {
		h.fail(c, "invalid_state")
		return
	}
	code := c.Query("code")
	if code == "" {
		h.fail(c, "missing_code")
		return
	}

	assertion, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.Error(err))
		h.fail(c, "exchange_failed")
		return
	}

	if linking {
		h.link(c, assertion)
		return
	}

	res, err := h.oauth.HandleCallback(c.Request.Context(), *assertion)
	switch {
	case errors.Is(err, services.ErrUniqueConstraintRace):
		redirectWith(c, middleware.FlashAlert, err.Error(), "/login")
		return
	case err != nil:
		h.logger.Error("oauth callback failed", zap.Error(err))
		h.fail(c, "sign_in_failed")
		return
	}

	if res.Outcome == services.OutcomePending {
		session.Set(middleware.PendingOAuthKey, res.PendingToken)
		session.Save()
		c.Redirect(http.StatusFound, "/oauth/invitation")
		return
	}

	if err := establishSession(c, h.sessions, res.User, models.LoginMethodGoogle); err != nil {
		h.logger.Error("failed to start session", zap.Error(err))
		redirectWith(c, middleware.FlashAlert, "Unable to sign you in with Google.", "/login")
		return
	}
	redirectWith(c, middleware.FlashNotice, "Signed in with Google.", "/user")
}

func (h *GoogleHandler) link(c *gin.Context, assertion *services.Assertion) {
	err := h.oauth.Link(c.Request.Context(), middleware.CurrentUser(c), *assertion)
	if err != nil {
		h.logger.Info("oauth link failed", zap.Error(err))
		redirectWith(c, middleware.FlashAlert, services.ErrLinkFailed.Error()+".", "/user")
		return
	}
	redirectWith(c, middleware.FlashNotice, "Your Google account is now linked.", "/user")
}

// Failure is the terminal state of a failed provider round-trip.
func (h *GoogleHandler) Failure(c *gin.Context) {
	message := utils.CleanText(c.Query("message"))
	if message == "" {
		message = "unknown error"
	}
	redirectWith(c, middleware.FlashAlert, "Could not authenticate you from Google because \""+message+"\".", "/login")
}

func (h *GoogleHandler) pending(c *gin.Context) (string, *services.PendingRegistration, bool) {
	token := middleware.SessionString(c, middleware.PendingOAuthKey)
	p, err := h.oauth.Pending(token)
	if err != nil {
		h.abandon(c, services.ErrPendingStateMissing)
		return "", nil, false
	}
	return token, p, true
}

// abandon drops the pending registration and returns to sign-in.
func (h *GoogleHandler) abandon(c *gin.Context, reason error) {
	session := sessions.Default(c)
	session.Delete(middleware.PendingOAuthKey)
	session.Save()
	redirectWith(c, middleware.FlashAlert, reason.Error(), "/login")
}

func (h *GoogleHandler) Invitation(c *gin.Context) {
	_, p, ok := h.pending(c)
	if !ok {
		return
	}
	Render(c, http.StatusOK, "oauth/invitation.html", gin.H{"Email": p.Email, "Name": p.Name})
}

func (h *GoogleHandler) CompleteRegistration(c *gin.Context) {
	token, p, ok := h.pending(c)
	if !ok {
		return
	}

	user, err := h.oauth.CompleteRegistration(c.Request.Context(), token, c.PostForm("invitation_code"))
	switch {
	case errors.Is(err, services.ErrInvitationMismatch):
		// pending registration stays, the visitor may retry
		Render(c, http.StatusUnprocessableEntity, "oauth/invitation.html", gin.H{
			"Email": p.Email,
			"Name":  p.Name,
			"Alert": []string{"Invalid invitation code."},
		})
		return
	case errors.Is(err, services.ErrPendingStateMissing), errors.Is(err, services.ErrUniqueConstraintRace):
		h.abandon(c, err)
		return
	case err != nil:
		h.logger.Error("registration failed", zap.Error(err))
		Render(c, http.StatusUnprocessableEntity, "oauth/invitation.html", gin.H{
			"Email": p.Email,
			"Name":  p.Name,
			"Alert": []string{"Unable to create your account."},
		})
		return
	}

	session := sessions.Default(c)
	session.Delete(middleware.PendingOAuthKey)
	session.Save()

	if err := establishSession(c, h.sessions, user, models.LoginMethodGoogle); err != nil {
		h.logger.Error("failed to start session", zap.Error(err))
		redirectWith(c, middleware.FlashAlert, "Your account was created, please sign in.", "/login")
		return
	}
	redirectWith(c, middleware.FlashNotice, "Welcome! Your account has been created.", "/user")
}

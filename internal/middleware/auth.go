package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/models"
	"hikeclub/internal/services"
)

const CheckUserKey = "user"

// SessionResumer finds the user behind a session id.
type SessionResumer interface {
	Resume(ctx context.Context, id string) (*models.User, error)
}

// LoadUser retrieves user from session and sets to context
func LoadUser(resumer SessionResumer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, _ := session.Get(SessionIDKey).(string)

		if id != "" {
			user, err := resumer.Resume(c.Request.Context(), id)
			switch {
			case err == nil:
				c.Set(CheckUserKey, user)
			case errors.Is(err, services.ErrRecordNotFound):
				// session row is gone (logout elsewhere, account deleted)
				session.Delete(SessionIDKey)
				session.Delete(LoginMethodKey)
				session.Save()
			default:
				logger.Error("failed to resume session", zap.Error(err))
			}
		}
		c.Next()
	}
}

// CurrentUser returns the signed-in user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// AuthRequired ensures a user is logged in on every route except the public
// ones, matched against the route pattern.
func AuthRequired(public ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(public))
	for _, p := range public {
		allowed[p] = true
	}

	return func(c *gin.Context) {
		if allowed[c.FullPath()] || CurrentUser(c) != nil {
			c.Next()
			return
		}

		if WantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Please sign in to continue.",
			})
			return
		}

		session := sessions.Default(c)
		if c.Request.Method == http.MethodGet {
			session.Set(ReturnToKey, c.Request.URL.RequestURI())
		}
		session.AddFlash("Please sign in to continue.", FlashAlert)
		session.Save()
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/services"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}

	// flashes queued by the previous request, unless the handler set its own
	if _, ok := obj["Notice"]; !ok {
		obj["Notice"] = middleware.Flashes(c, middleware.FlashNotice)
	}
	if _, ok := obj["Alert"]; !ok {
		obj["Alert"] = middleware.Flashes(c, middleware.FlashAlert)
	}

	// Can lets templates hide links the viewer may not follow
	p, _ := c.Get(middleware.PolicyKey)
	obj["Can"] = canFunc(p)

	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// canFunc is the template view of a policy. Unknown verbs and a missing
// policy deny.
func canFunc(v interface{}) func(action, kind string) bool {
	p, ok := v.(*policy.Policy)
	if !ok || p == nil {
		return func(string, string) bool { return false }
	}
	return func(action, kind string) bool {
		a, err := policy.ParseAction(action)
		if err != nil {
			return false
		}
		return p.Allows(a, policy.Kind(kind))
	}
}

// Error helper
func RenderError(c *gin.Context, code int, message string) {
	if middleware.WantsJSON(c) {
		c.JSON(code, gin.H{"error": http.StatusText(code), "message": message})
		return
	}
	Render(c, code, "error.html", gin.H{"Error": message})
}

func redirectWith(c *gin.Context, kind, message, location string) {
	middleware.Flash(c, kind, message)
	c.Redirect(http.StatusFound, location)
}

// establishSession records a new login and stores it in the cookie. A login
// already held by this cookie is ended first.
func establishSession(c *gin.Context, svc *services.SessionService, u *models.User, method string) error {
	if prev := middleware.SessionString(c, middleware.SessionIDKey); prev != "" {
		if err := svc.Terminate(c.Request.Context(), prev); err != nil {
			return err
		}
	}
	sess, err := svc.Start(c.Request.Context(), u, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		return err
	}
	session := sessions.Default(c)
	session.Set(middleware.SessionIDKey, sess.ID)
	session.Set(middleware.LoginMethodKey, method)
	if err := session.Save(); err != nil {
		return err
	}
	c.Set(middleware.CheckUserKey, u)
	return nil
}

// terminateSession ends the current login, server side and in the cookie.
func terminateSession(c *gin.Context, svc *services.SessionService, logger *zap.Logger) {
	id := middleware.SessionString(c, middleware.SessionIDKey)
	if err := svc.Terminate(c.Request.Context(), id); err != nil {
		logger.Error("failed to terminate session", zap.Error(err))
	}
	middleware.ClearAuthentication(c)
}

// afterLoginPath pops the page an anonymous visitor was sent away from.
func afterLoginPath(c *gin.Context, fallback string) string {
	session := sessions.Default(c)
	target, _ := session.Get(middleware.ReturnToKey).(string)
	if target == "" || target[0] != '/' || (len(target) > 1 && target[1] == '/') {
		return fallback
	}
	session.Delete(middleware.ReturnToKey)
	session.Save()
	return target
}

// SelfLoader resolves the signed-in user's own record.
func SelfLoader(c *gin.Context) (policy.Resource, error) {
	if u := middleware.CurrentUser(c); u != nil {
		return u, nil
	}
	return nil, services.ErrRecordNotFound
}

func errorMessage(err error, known ...error) string {
	for _, k := range known {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "Something went wrong, please try again."
}

package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Cookie session keys.
const (
	SessionIDKey      = "session_id"
	LoginMethodKey    = "login_method"
	OAuthStateKey     = "oauth_state"
	LinkingAccountKey = "linking_account"
	PendingOAuthKey   = "pending_oauth"
	ReturnToKey       = "return_to"
)

// Flash kinds.
const (
	FlashNotice = "notice"
	FlashAlert  = "alert"
)

// Flash queues a message for the next rendered page.
func Flash(c *gin.Context, kind, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, kind)
	session.Save()
}

// Flashes pops the queued messages of kind.
func Flashes(c *gin.Context, kind string) []string {
	session := sessions.Default(c)
	raw := session.Flashes(kind)
	if len(raw) == 0 {
		return nil
	}
	session.Save()
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ClearAuthentication removes every auth-related key from the cookie session.
func ClearAuthentication(c *gin.Context) {
	session := sessions.Default(c)
	for _, key := range []string{SessionIDKey, LoginMethodKey, OAuthStateKey, LinkingAccountKey, PendingOAuthKey, ReturnToKey} {
		session.Delete(key)
	}
	session.Save()
	c.Set(CheckUserKey, nil)
}

// SessionString reads a string value from the cookie session.
func SessionString(c *gin.Context, key string) string {
	v, _ := sessions.Default(c).Get(key).(string)
	return v
}

// WantsJSON reports whether the client negotiates JSON rather than HTML.
func WantsJSON(c *gin.Context) bool {
	if c.ContentType() == gin.MIMEJSON {
		return true
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/policy"
	"hikeclub/internal/services"
)

const (
	PolicyKey   = "policy"
	ResourceKey = "resource"
)

const deniedMessage = "You are not authorized to access this page."

// Loader resolves the record a route acts on. It returns
// services.ErrRecordNotFound when the record does not exist.
type Loader func(c *gin.Context) (policy.Resource, error)

// Authorizer evaluates the policy of the current user before handlers run.
type Authorizer struct {
	engine *policy.Engine
	logger *zap.Logger
}

func NewAuthorizer(engine *policy.Engine, logger *zap.Logger) *Authorizer {
	return &Authorizer{engine: engine, logger: logger}
}

// Policy returns the request's policy, building it on first use.
func (a *Authorizer) Policy(c *gin.Context) *policy.Policy {
	if v, ok := c.Get(PolicyKey); ok {
		if p, ok := v.(*policy.Policy); ok {
			return p
		}
	}
	p := a.engine.For(CurrentUser(c))
	c.Set(PolicyKey, p)
	return p
}

// Attach builds the request's policy up front so views can ask it
// questions on every page.
func (a *Authorizer) Attach() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.Policy(c)
		c.Next()
	}
}

// Enforce fails closed on any non-public route whose handler chain does
// not declare its authorization with Require.
func (a *Authorizer) Enforce(public ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(public))
	for _, p := range public {
		allowed[p] = true
	}
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" || allowed[path] {
			c.Next()
			return
		}
		for _, name := range c.HandlerNames() {
			if strings.Contains(name, "(*Authorizer).Require") {
				c.Next()
				return
			}
		}
		a.logger.Error("route has no authorization declared",
			zap.String("method", c.Request.Method),
			zap.String("path", path))
		abortInternal(c)
	}
}

// Require declares the action of a route. With a loader the check runs
// against the loaded record; without one, or when a create finds no record,
// it runs against kind.
func (a *Authorizer) Require(action policy.Action, kind policy.Kind, loader Loader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var resource policy.Resource = kind
		if loader != nil {
			r, err := loader(c)
			switch {
			case err == nil:
				resource = r
			case errors.Is(err, services.ErrRecordNotFound):
				if action.RequiresRecord() {
					NotFound(c)
					return
				}
			default:
				a.logger.Error("failed to load resource", zap.String("kind", string(kind)), zap.Error(err))
				abortInternal(c)
				return
			}
		}

		p := a.Policy(c)
		if err := p.Authorize(action, resource); err != nil {
			a.logger.Info("authorization denied",
				zap.String("role", p.Role().String()),
				zap.String("action", string(action)),
				zap.String("kind", resource.ResourceKind()),
				zap.String("path", c.FullPath()))
			Deny(c, err)
			return
		}
		c.Set(ResourceKey, resource)
		c.Next()
	}
}

// Loaded returns the record resolved by Require.
func Loaded[T policy.Resource](c *gin.Context) (T, bool) {
	var zero T
	v, ok := c.Get(ResourceKey)
	if !ok {
		return zero, false
	}
	r, ok := v.(T)
	return r, ok
}

// Deny aborts a request that failed authorization.
func Deny(c *gin.Context, err error) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": deniedMessage,
		})
		return
	}
	message := deniedMessage
	if errors.Is(err, policy.ErrSelfActionBlocked) {
		message = "You cannot edit your own profile here."
	}
	Flash(c, FlashAlert, message)

	target := "/login"
	if CurrentUser(c) != nil {
		target = "/user"
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// NotFound aborts with 404.
func NotFound(c *gin.Context) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Record not found."})
		return
	}
	c.HTML(http.StatusNotFound, "error.html", gin.H{"Error": "The page you were looking for doesn't exist.", "CurrentUser": CurrentUser(c)})
	c.Abort()
}

func abortInternal(c *gin.Context) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Something went wrong."})
		return
	}
	c.HTML(http.StatusInternalServerError, "error.html", gin.H{"Error": "Something went wrong.", "CurrentUser": CurrentUser(c)})
	c.Abort()
}

// ForbidSelf rejects requests whose :param names the current user. It runs
// before the policy check on the administrative user-management routes.
func ForbidSelf(param, redirect string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := CurrentUser(c)
		id, err := strconv.ParseUint(c.Param(param), 10, 64)
		if current == nil || err != nil || uint(id) != current.ID {
			c.Next()
			return
		}

		if WantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": policy.ErrSelfActionBlocked.Error(),
			})
			return
		}
		Flash(c, FlashAlert, "You cannot edit your own profile here.")
		c.Redirect(http.StatusFound, redirect)
		c.Abort()
	}
}

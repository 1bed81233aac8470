package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResumer map[string]*models.User

func (f fakeResumer) Resume(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, services.ErrRecordNotFound
}

func newTestEngine(t *testing.T, resumer fakeResumer) *gin.Engine {
	t.Helper()
	r := gin.New()
	renderer := multitemplate.NewRenderer()
	renderer.AddFromString("error.html", `{{.Error}}`)
	r.HTMLRender = renderer
	r.Use(sessions.Sessions("hikeclub_session", cookie.NewStore([]byte("test-secret"))))
	r.GET("/test/session/:sid", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(SessionIDKey, c.Param("sid"))
		s.Save()
		c.Status(http.StatusNoContent)
	})
	r.Use(LoadUser(resumer, zap.NewNop()))
	return r
}

// signIn returns the session cookie for sid.
func signIn(t *testing.T, r *gin.Engine, sid string) string {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test/session/"+sid, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	return sessionCookie(w)
}

func sessionCookie(w *httptest.ResponseRecorder) string {
	cookie, _, _ := strings.Cut(w.Header().Get("Set-Cookie"), ";")
	return cookie
}

func do(r *gin.Engine, method, path, cookie string, json bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if json {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/html")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	engine, err := policy.NewEngine(nil)
	require.NoError(t, err)
	return NewAuthorizer(engine, zap.NewNop())
}

func userLoader(users map[string]*models.User) Loader {
	return func(c *gin.Context) (policy.Resource, error) {
		if u, ok := users[c.Param("id")]; ok {
			return u, nil
		}
		return nil, services.ErrRecordNotFound
	}
}

func TestAuthRequired(t *testing.T) {
	alice := &models.User{ID: 1, EmailAddress: "a@x.com"}
	r := newTestEngine(t, fakeResumer{"s1": alice})
	r.Use(AuthRequired("/public"))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/public", ok)
	r.GET("/private", ok)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/public", "", false).Code)

	w := do(r, http.MethodGet, "/private", "", false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/private", "", true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookie := signIn(t, r, "s1")
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/private", cookie, false).Code)

	// a session whose row disappeared counts as signed out
	stale := signIn(t, r, "gone")
	assert.Equal(t, http.StatusFound, do(r, http.MethodGet, "/private", stale, false).Code)
}

func TestRequire_MemberChecks(t *testing.T) {
	alice := &models.User{ID: 1, EmailAddress: "a@x.com", Role: models.RoleUser}
	bob := &models.User{ID: 2, EmailAddress: "b@x.com", Role: models.RoleUser}
	r := newTestEngine(t, fakeResumer{"alice": alice})
	a := newAuthorizer(t)

	records := map[string]*models.User{"1": alice, "2": bob}
	r.GET("/users/:id", a.Require(policy.ActionRead, policy.KindUser, userLoader(records)), func(c *gin.Context) {
		u, ok := Loaded[*models.User](c)
		require.True(t, ok)
		c.String(http.StatusOK, u.EmailAddress)
	})
	cookie := signIn(t, r, "alice")

	w := do(r, http.MethodGet, "/users/1", cookie, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", w.Body.String())

	w = do(r, http.MethodGet, "/users/2", cookie, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/user", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/users/2", cookie, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, deniedMessage, body["message"])

	// not found is distinct from deny
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/users/99", cookie, false).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/users/99", cookie, true).Code)

	// guests are sent to the sign-in page
	w = do(r, http.MethodGet, "/users/2", "", false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRequire_CreateWithoutRecord(t *testing.T) {
	mod := &models.User{ID: 1, Role: models.RoleModerator}
	user := &models.User{ID: 2, Role: models.RoleUser}
	r := newTestEngine(t, fakeResumer{"mod": mod, "user": user})
	a := newAuthorizer(t)

	r.POST("/users/:id", a.Require(policy.ActionCreate, policy.KindUser, userLoader(nil)), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/users/new", signIn(t, r, "mod"), true).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/users/new", signIn(t, r, "user"), true).Code)
}

func TestRequire_LoaderFailure(t *testing.T) {
	r := newTestEngine(t, fakeResumer{})
	a := newAuthorizer(t)
	r.GET("/boom", a.Require(policy.ActionRead, policy.KindHike, func(*gin.Context) (policy.Resource, error) {
		return nil, assert.AnError
	}), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/boom", "", true).Code)
}

func TestForbidSelf(t *testing.T) {
	mod := &models.User{ID: 7, Role: models.RoleModerator}
	r := newTestEngine(t, fakeResumer{"mod": mod})
	handled := false
	r.POST("/admin/users/:id/role", ForbidSelf("id", "/admin/users"), func(c *gin.Context) {
		handled = true
		c.Status(http.StatusOK)
	})
	cookie := signIn(t, r, "mod")

	w := do(r, http.MethodPost, "/admin/users/7/role", cookie, false)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/users", w.Header().Get("Location"))
	assert.False(t, handled)

	w = do(r, http.MethodPost, "/admin/users/7/role", cookie, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, handled)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/admin/users/8/role", cookie, false).Code)
	assert.True(t, handled)
}

func TestFlashes(t *testing.T) {
	r := newTestEngine(t, fakeResumer{})
	r.GET("/set", func(c *gin.Context) {
		Flash(c, FlashNotice, "saved")
		c.Status(http.StatusNoContent)
	})
	r.GET("/get", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Join(Flashes(c, FlashNotice), ","))
	})

	w := do(r, http.MethodGet, "/set", "", false)
	cookie := sessionCookie(w)

	w = do(r, http.MethodGet, "/get", cookie, false)
	assert.Equal(t, "saved", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimiter(time.Minute, 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "", false).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "", false).Code)
	w := do(r, http.MethodPost, "/login", "", false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	r = gin.New()
	r.POST("/login", RateLimiter(20*time.Second, 1), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "", false).Code)
	w = do(r, http.MethodPost, "/login", "", false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "20", w.Header().Get("Retry-After"))
}

func TestWantsJSON(t *testing.T) {
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		if WantsJSON(c) {
			c.String(http.StatusOK, "json")
			return
		}
		c.String(http.StatusOK, "html")
	})

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "json", w.Body.String())

	assert.Equal(t, "html", do(r, http.MethodPost, "/x", "", false).Body.String())
}

func TestEnforce(t *testing.T) {
	admin := &models.User{ID: 1, Role: models.RoleAdmin}
	r := newTestEngine(t, fakeResumer{"admin": admin})
	a := newAuthorizer(t)
	r.Use(a.Enforce("/open"))

	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/open", ok)
	r.GET("/declared", a.Require(policy.ActionRead, policy.KindHike, nil), ok)
	r.GET("/forgotten", ok)
	cookie := signIn(t, r, "admin")

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/open", "", true).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/declared", cookie, true).Code)
	// even an admin cannot reach a route that never declared its check
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/forgotten", cookie, true).Code)
}

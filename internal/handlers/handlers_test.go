package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestPhoneValidation(t *testing.T) {
	RegisterValidators()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	for _, phone := range []string{"+33 6 12 34 56 78", "06.12.34.56.78", "(555) 123-4567"} {
		assert.NoError(t, v.Struct(services.ProfileInput{PhoneNumber: phone}), phone)
	}
	for _, phone := range []string{"call me", "12", "+33 6 12 34 56 78 90 12 34 56"} {
		assert.Error(t, v.Struct(services.ProfileInput{PhoneNumber: phone}), phone)
	}
	assert.NoError(t, v.Struct(services.ProfileInput{}))
}

func TestAfterLoginPath(t *testing.T) {
	cases := map[string]string{
		"":                 "/home",
		"/admin/users":     "/admin/users",
		"//evil.example":   "/home",
		"https://evil.com": "/home",
	}
	for stored, want := range cases {
		r := gin.New()
		r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
		r.GET("/", func(c *gin.Context) {
			s := sessions.Default(c)
			s.Set(middleware.ReturnToKey, stored)
			c.String(http.StatusOK, afterLoginPath(c, "/home"))
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, want, w.Body.String(), stored)
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, services.ErrEmailTaken.Error(), errorMessage(services.ErrEmailTaken, services.ErrEmailTaken))
	assert.True(t, strings.HasPrefix(errorMessage(assert.AnError, services.ErrEmailTaken), "Something went wrong"))
}

func TestCanFunc(t *testing.T) {
	engine, err := policy.NewEngine(zap.NewNop())
	require.NoError(t, err)

	admin := canFunc(engine.For(&models.User{ID: 1, Role: models.RoleAdmin}))
	assert.True(t, admin("manage", "user"))
	assert.False(t, admin("delete", "user"))

	user := canFunc(engine.For(&models.User{ID: 2, Role: models.RoleUser}))
	assert.False(t, user("manage", "user"))

	assert.False(t, canFunc(nil)("read", "hike"))
}

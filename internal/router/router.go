package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hikeclub/internal/config"
	"hikeclub/internal/handlers"
	"hikeclub/internal/middleware"
	"hikeclub/internal/policy"
	"hikeclub/internal/services"
	"hikeclub/internal/utils"
)

const sessionName = "hikeclub_session"

// PublicPaths skip both sign-in and the authorization check. Every other
// route must declare its action with Authorizer.Require.
var PublicPaths = []string{
	"/",
	"/login",
	"/logout",
	"/signup",
	"/passwords",
	"/passwords/:token",
	"/auth/google_oauth2",
	"/auth/google_oauth2/callback",
	"/auth/failure",
	"/oauth/invitation",
	"/oauth/complete_registration",
	"/up",
	"/stats/dashboard",
	"/metrics",
	"/robots.txt",
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
	Engine *policy.Engine
	// Provider is nil when Google sign-in is not configured.
	Provider services.OAuthProvider
	Mailer   services.Mailer
	Cache    *utils.TTLCache
}

// New builds the gin engine with sessions, views and every route.
func New(d Deps) (*gin.Engine, error) {
	handlers.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.PrometheusMiddleware())

	if origins := d.Config.CORSOrigins; len(origins) > 0 {
		corsCfg := cors.DefaultConfig()
		if len(origins) == 1 && origins[0] == "*" {
			corsCfg.AllowAllOrigins = true
		} else {
			corsCfg.AllowOrigins = origins
			corsCfg.AllowCredentials = true
		}
		corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
		r.Use(cors.New(corsCfg))
	}

	store := cookie.NewStore([]byte(d.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   d.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	renderer, err := LoadTemplates(d.Config.TemplatesDir)
	if err != nil {
		return nil, err
	}
	r.HTMLRender = renderer

	RegisterRoutes(r, d)
	return r, nil
}

// RegisterRoutes wires services, handlers and the per-route authorization.
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	log := d.Logger

	// Services
	users := services.NewUserService(d.DB, log)
	sessionSvc := services.NewSessionService(d.DB, log)
	tokens := services.NewTokenIssuer(cfg.TokenSecret, cfg.PendingRegistrationTTL, cfg.PasswordResetTTL)
	oauth := services.NewOAuthService(users, tokens, cfg.InvitationCode, log)
	passwords := services.NewPasswordService(users, sessionSvc, tokens, d.Mailer, cfg.SiteURL, log)
	stats := services.NewStatsService(d.DB, d.Cache, cfg.StatsCacheTTL, log)
	hikes := services.NewHikeService(d.DB, log, stats.Invalidate)

	authorizer := middleware.NewAuthorizer(d.Engine, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(users, sessionSvc, passwords, d.Provider != nil, log)
	userHandler := handlers.NewUserHandler(users, oauth, sessionSvc, passwords, log)
	adminHandler := handlers.NewAdminHandler(users, authorizer, log)
	hikeHandler := handlers.NewHikeHandler(hikes, log)
	statsHandler := handlers.NewStatsHandler(stats, log)
	healthHandler := handlers.NewHealthHandler(d.DB, log)
	seoHandler := handlers.NewSEOHandler()

	r.GET("/up", healthHandler.Up)
	r.GET("/metrics", middleware.MetricsHandler())
	r.GET("/robots.txt", seoHandler.RobotsTxt)

	r.Use(middleware.LoadUser(sessionSvc, log))
	r.Use(middleware.AuthRequired(PublicPaths...))
	r.Use(authorizer.Attach())
	r.Use(authorizer.Enforce(PublicPaths...))

	// per-IP throttle on credential submissions
	throttle := middleware.RateLimiter(20*time.Second, 10)

	r.GET("/", authHandler.Root)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", throttle, authHandler.Login)
	r.GET("/logout", authHandler.Logout)
	r.GET("/signup", authHandler.ShowSignup)
	r.POST("/signup", throttle, authHandler.Signup)
	r.GET("/passwords", authHandler.ShowForgotPassword)
	r.POST("/passwords", throttle, authHandler.ForgotPassword)
	r.GET("/passwords/:token", authHandler.ShowResetPassword)
	r.POST("/passwords/:token", throttle, authHandler.ResetPassword)
	r.GET("/stats/dashboard", statsHandler.Dashboard)

	if d.Provider != nil {
		googleHandler := handlers.NewGoogleHandler(oauth, d.Provider, sessionSvc, log)
		r.GET("/auth/google_oauth2", googleHandler.Begin)
		r.GET("/auth/google_oauth2/callback", googleHandler.Callback)
		r.GET("/auth/failure", googleHandler.Failure)
		r.GET("/oauth/invitation", googleHandler.Invitation)
		r.POST("/oauth/complete_registration", throttle, googleHandler.CompleteRegistration)
	}

	self := handlers.SelfLoader
	account := r.Group("/user")
	{
		account.GET("", authorizer.Require(policy.ActionRead, policy.KindUser, self), userHandler.Show)
		account.POST("", authorizer.Require(policy.ActionUpdate, policy.KindUser, self), userHandler.Update)
		account.POST("/delete", authorizer.Require(policy.ActionDestroy, policy.KindUser, self), userHandler.Destroy)
		account.POST("/unlink_google", authorizer.Require(policy.ActionUpdate, policy.KindUser, self), userHandler.UnlinkGoogle)
		if d.Provider != nil {
			account.POST("/link_google", authorizer.Require(policy.ActionUpdate, policy.KindUser, self), userHandler.LinkGoogle)
		}
	}
	r.POST("/users/create_guide", authorizer.Require(policy.ActionCreate, policy.KindUser, nil), userHandler.CreateGuide)

	// self-action guard runs before the permission check
	admin := r.Group("/admin/users")
	{
		admin.GET("", authorizer.Require(policy.ActionManage, policy.KindUser, nil), adminHandler.Users)
		admin.POST("/:id/role",
			middleware.ForbidSelf("id", "/admin/users"),
			authorizer.Require(policy.ActionManage, policy.KindUser, adminHandler.UserLoader),
			adminHandler.UpdateRole)
		admin.POST("/:id/delete",
			middleware.ForbidSelf("id", "/admin/users"),
			authorizer.Require(policy.ActionDestroy, policy.KindUser, adminHandler.UserLoader),
			adminHandler.Destroy)
	}

	hikesAPI := r.Group("/hikes")
	{
		hikesAPI.GET("", authorizer.Require(policy.ActionRead, policy.KindHike, nil), hikeHandler.ListHikes)
		hikesAPI.POST("", authorizer.Require(policy.ActionCreate, policy.KindHike, nil), hikeHandler.CreateHike)
		hikesAPI.GET("/:id", authorizer.Require(policy.ActionRead, policy.KindHike, hikeHandler.HikeLoader), hikeHandler.ShowHike)
		hikesAPI.PATCH("/:id", authorizer.Require(policy.ActionUpdate, policy.KindHike, hikeHandler.HikeLoader), hikeHandler.UpdateHike)
		hikesAPI.PUT("/:id", authorizer.Require(policy.ActionUpdate, policy.KindHike, hikeHandler.HikeLoader), hikeHandler.UpdateHike)
		hikesAPI.DELETE("/:id", authorizer.Require(policy.ActionDestroy, policy.KindHike, hikeHandler.HikeLoader), hikeHandler.DestroyHike)
	}

	histories := r.Group("/hike_histories")
	{
		histories.GET("", authorizer.Require(policy.ActionRead, policy.KindHikeHistory, nil), hikeHandler.ListHistories)
		histories.POST("", authorizer.Require(policy.ActionCreate, policy.KindHikeHistory, nil), hikeHandler.CreateHistory)
		histories.GET("/:id", authorizer.Require(policy.ActionRead, policy.KindHikeHistory, hikeHandler.HistoryLoader), hikeHandler.ShowHistory)
		histories.PATCH("/:id", authorizer.Require(policy.ActionUpdate, policy.KindHikeHistory, hikeHandler.HistoryLoader), hikeHandler.UpdateHistory)
		histories.PUT("/:id", authorizer.Require(policy.ActionUpdate, policy.KindHikeHistory, hikeHandler.HistoryLoader), hikeHandler.UpdateHistory)
		histories.DELETE("/:id", authorizer.Require(policy.ActionDestroy, policy.KindHikeHistory, hikeHandler.HistoryLoader), hikeHandler.DestroyHistory)
	}

	paths := r.Group("/hike_paths")
	{
		paths.GET("", authorizer.Require(policy.ActionRead, policy.KindHikePath, nil), hikeHandler.ListPaths)
		paths.POST("", authorizer.Require(policy.ActionCreate, policy.KindHikePath, nil), hikeHandler.CreatePath)
		paths.GET("/:id", authorizer.Require(policy.ActionRead, policy.KindHikePath, hikeHandler.PathLoader), hikeHandler.ShowPath)
		paths.PATCH("/:id", authorizer.Require(policy.ActionUpdate, policy.KindHikePath, hikeHandler.PathLoader), hikeHandler.UpdatePath)
		paths.PUT("/:id", authorizer.Require(policy.ActionUpdate, policy.KindHikePath, hikeHandler.PathLoader), hikeHandler.UpdatePath)
		paths.DELETE("/:id", authorizer.Require(policy.ActionDestroy, policy.KindHikePath, hikeHandler.PathLoader), hikeHandler.DestroyPath)
	}
}

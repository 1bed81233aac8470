package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hikeclub/internal/config"
	"hikeclub/internal/db"
	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/router"
	"hikeclub/internal/services"
	"hikeclub/internal/utils"
)

var autoMigrate bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hikeclub",
	Short: "Hike Club web application",
	Long: `hikeclub serves the hike club web application: accounts, Google sign-in
with invitation codes, role-based authorization and the hike data API.

Running it without a subcommand starts the HTTP server.`,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cfg *config.Config, logger *zap.Logger, conn *gorm.DB) error {
			if err := db.Migrate(conn); err != nil {
				return err
			}
			logger.Info("database migrated")
			return nil
		})
	},
}

var roleCmd = &cobra.Command{
	Use:   "role <email> <user|moderator|admin>",
	Short: "Set the role of an existing account",
	Long: `role changes the role of an account without going through the web
interface. Use it to promote the first administrator:

  hikeclub role alice@example.com admin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := models.ParseRole(args[1])
		if err != nil {
			return err
		}
		return withApp(func(cfg *config.Config, logger *zap.Logger, conn *gorm.DB) error {
			users := services.NewUserService(conn, logger)
			u, err := users.AssignRole(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.EmailAddress, u.Role.Humanize())
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&autoMigrate, "migrate", true, "Run database migrations before serving")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(roleCmd)
}

// withApp loads configuration, the logger and the database for a command.
func withApp(fn func(cfg *config.Config, logger *zap.Logger, conn *gorm.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	conn, err := db.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return err
	}
	return fn(cfg, logger, conn)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(func(cfg *config.Config, logger *zap.Logger, conn *gorm.DB) error {
		if autoMigrate {
			if err := db.Migrate(conn); err != nil {
				return err
			}
		}
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		engine, err := policy.NewEngine(logger)
		if err != nil {
			return fmt.Errorf("build policy engine: %w", err)
		}
		cache, err := utils.NewTTLCache(128)
		if err != nil {
			return err
		}

		var provider services.OAuthProvider
		if cfg.GoogleEnabled() {
			provider = services.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SiteURL)
		} else {
			logger.Warn("Google sign-in disabled: missing GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET")
		}
		mailer := services.NewMailService(services.SMTPSettings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		}, cfg.TemplatesDir, logger)

		r, err := router.New(router.Deps{
			Config:   cfg,
			DB:       conn,
			Logger:   logger,
			Engine:   engine,
			Provider: provider,
			Mailer:   mailer,
			Cache:    cache,
		})
		if err != nil {
			return fmt.Errorf("build router: %w", err)
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("hikeclub server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

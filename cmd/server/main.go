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
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rongwang/claims-tracker/internal/api"
	"github.com/rongwang/claims-tracker/internal/config"
	"github.com/rongwang/claims-tracker/internal/repository"
	"github.com/rongwang/claims-tracker/internal/service"
	"github.com/rongwang/claims-tracker/internal/utils"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "claims-server",
		Short:         "Claims follow-up work queue server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles what every database-backed command needs
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *sqlx.DB
	svc    *service.DefaultService
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := utils.NewLogger(cfg.Server.Env)

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	// Set up database connection
	db, err := config.SetupDatabase(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	// Create repository and service
	repo := repository.NewPostgresRepository(db)
	svc := service.NewDefaultService(repo, cfg.Auth.JWTSecret,
		service.WithTokenTTL(cfg.Auth.TokenTTL),
		service.WithLocation(loc),
		service.WithLogger(logger),
	)

	return &app{cfg: cfg, logger: logger, db: db, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("error closing database")
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.App.SeedOnStart {
		if err := a.svc.Seed(context.Background()); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}

	// Set up Gin router
	if !a.cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		api.RequestID(),
		api.RequestLogger(a.logger),
		api.Recovery(a.logger),
		api.JWTSecret([]byte(a.cfg.Auth.JWTSecret)),
	)

	handler := api.NewHandler(a.svc, a.logger, api.WithStaticDir(a.cfg.Server.StaticDir))
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Str("env", a.cfg.Server.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	a.logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

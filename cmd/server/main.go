package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/troupe/internal/config"
	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/logger"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "troupe",
		Short:         "Shared availability and rehearsal scheduling for group projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				log.Error().Err(err).Msg("failed to load config")
				return err
			}
			logger.Setup(cfg.LogLevel, string(cfg.Environment))
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the reconciler",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				if cfg.DatabaseDriver == config.DriverMemory {
					log.Info().Msg("memory driver has no migrations")
					return nil
				}
				if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
					return err
				}
				defer db.DB.Close()
				return db.RunMigrations(cfg.Migrations())
			},
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Run one reconciliation pass over unsynced rehearsals and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := NewApp(cfg)
				if err != nil {
					return err
				}
				defer app.Close()
				report, err := app.Reconciler.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				log.Info().Int("checked", report.Checked).Int("failed", report.Failed).Msg("reconcile pass done")
				return nil
			},
		},
	)
	return root
}

func serve(cfg *config.Config) error {
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, app)

	if err := app.Reconciler.Start(); err != nil {
		return err
	}
	defer app.Reconciler.Stop()

	srv := &http.Server{Addr: cfg.ServerAddress, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
			return err
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

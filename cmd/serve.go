package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/api"
	"github.com/R204570/LexAudit-Flow/internal/monitoring"
	"github.com/R204570/LexAudit-Flow/internal/seed"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

var servePort int

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := seedBaseline(ctx, env.Store); err != nil {
			return err
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIServer(env).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// seedBaseline inserts the default item set into an empty store so the
// detector has rates to compare against.
func seedBaseline(ctx context.Context, st store.Store) error {
	if _, err := seed.Apply(ctx, st, seed.Defaults()); err != nil {
		return eris.Wrap(err, "seed baseline items")
	}
	return nil
}

func newAPIServer(env *pipelineEnv) *api.Server {
	var runner api.Runner
	if env.Pipeline != nil {
		runner = env.Pipeline
	}
	return api.New(env.Store, env.Engine, runner, api.Config{
		HighlightedDir: cfg.Evidence.HighlightedDir(),
		RawDir:         cfg.Evidence.RawDir,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Analysis:       cfg.Features.Analysis,
		LookbackHours:  cfg.Monitoring.LookbackHours,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

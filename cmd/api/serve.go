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
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/bito-analyst/internal/auth"
	"github.com/bryanwahyu/bito-analyst/internal/infra/httpserver"
	"github.com/bryanwahyu/bito-analyst/internal/middleware"
)

var (
	servePort      int
	serveNoWorkers bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and workers unless --no-workers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, !serveNoWorkers)
		if err != nil {
			return err
		}
		defer a.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		handler := httpserver.NewRouter(a.svc, httpserver.Options{
			Signer: auth.NewSigner(cfg.Auth.SecretKey, cfg.Auth.TokenTTL, a.svc.Clock),
			Credentials: auth.Credentials{
				Email:    cfg.Auth.AdminEmail,
				Password: cfg.Auth.AdminPassword,
			},
			Health:       map[string]middleware.HealthChecker{"database": middleware.CheckFunc(a.store.Ping)},
			QueueStats:   a.store.Jobs.Stats,
			CORSOrigins:  cfg.Server.CORSOrigins,
			RateLimitRPS: cfg.Server.RateLimitRPS,
			RateBurst:    cfg.Server.RateLimitBurst,
		})

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("server listening", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
		if !serveNoWorkers {
			pool := a.pool(cfg.Worker)
			g.Go(func() error {
				zap.L().Info("workers started", zap.Int("count", len(pool.Workers)))
				return pool.Run(gctx)
			})
		}

		return g.Wait()
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run job workers only",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		pool := a.pool(cfg.Worker)
		zap.L().Info("workers started", zap.Int("count", len(pool.Workers)))
		return pool.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWorkers, "no-workers", false, "do not run workers in this process")
	rootCmd.AddCommand(serveCmd, workerCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soaringjerry/cracks/internal/api"
	"github.com/soaringjerry/cracks/internal/config"
	"github.com/soaringjerry/cracks/internal/cracks"
	"github.com/soaringjerry/cracks/internal/db"
	"github.com/soaringjerry/cracks/internal/events"
	"github.com/soaringjerry/cracks/internal/metrics"
	"github.com/soaringjerry/cracks/internal/middleware"
	"github.com/soaringjerry/cracks/internal/services"
)

func serveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ln, err := net.Listen("tcp", c.cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", c.cfg.Server.Addr, err)
			}
			return a.Serve(ctx, ln)
		},
	}
}

// app is a fully wired server.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     api.Store
	sessions  *services.SessionService
	metrics   *metrics.Metrics
	publisher *events.NATSPublisher
	router    *api.Router
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sessions: services.NewSessionService(api.NewMemorySessionStore(), cfg.Sessions.TTL),
		metrics:  metrics.New(),
	}

	opts := api.Options{
		Store:             store,
		Sessions:          a.sessions,
		Targets:           cfg.Targets,
		Dichotomies:       cfg.Dichotomies,
		AdminUser:         cfg.Auth.AdminUser,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		Metrics:           a.metrics,
		Logger:            logger,
		Commit:            cfg.Server.Commit,
		BuildTime:         cfg.Server.BuildTime,
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("CRACKS_JWT_SECRET not set, using development secret")
	}
	opts.Auth = middleware.NewAuthenticator(cfg.Auth.JWTSecret)

	catalog, err := cracks.Default()
	if err != nil {
		a.Close()
		return nil, err
	}
	opts.Catalog = catalog

	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			// events are best-effort; the API works without them
			logger.Warn("submission events disabled", zap.String("url", cfg.NATS.URL), zap.Error(err))
		} else {
			a.publisher = pub
			opts.Publisher = pub
		}
	}

	rt, err := api.NewRouter(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.router = rt
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (api.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory record store, responses are lost on restart")
		return api.NewMemoryStore(), nil
	}
	if _, err := MigrateIfNeeded(ctx, cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("legacy import: %w", err)
	}
	sqlDB, err := db.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if _, err := db.RunMigrations(ctx, sqlDB, cfg.Database.MigrationsDir, logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := db.NewStore(sqlDB, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init sqlite store: %w", err)
	}
	return store, nil
}

// Serve runs the HTTP server on ln and the session sweeper until ctx is
// cancelled, then shuts the server down gracefully.
func (a *app) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("cracks server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		interval := a.cfg.Sessions.SweepInterval
		if interval <= 0 {
			interval = time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := a.sessions.Sweep(); n > 0 {
					a.metrics.SessionsSwept(n)
					a.logger.Debug("swept sessions", zap.Int("removed", n))
				}
			}
		}
	})

	return g.Wait()
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close nats", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
}

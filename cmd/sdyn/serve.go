package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/config"
	"github.com/sdyn/go-sdyn/internal/logging"
	"github.com/sdyn/go-sdyn/internal/metrics"
	"github.com/sdyn/go-sdyn/internal/session"
	"github.com/sdyn/go-sdyn/internal/web"
)

const shutdownTimeout = 10 * time.Second

var (
	appFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the portals",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			apps, err := parseApps(appFlag)
			if err != nil {
				return err
			}
			cfg, err := config.Parse(configPath)
			if err != nil {
				return fmt.Errorf("parse config: %w", err)
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if _, err := maxprocs.Set(maxprocs.Logger(logger.Debugf)); err != nil {
				logger.Warnw("Failed to set GOMAXPROCS", "error", err)
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, apps, logger)
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&appFlag, "app", "a", "all", "portal to serve: member, admin or all")
}

func parseApps(s string) ([]config.App, error) {
	switch s {
	case "all":
		return []config.App{config.AppMember, config.AppAdmin}, nil
	case string(config.AppMember), string(config.AppAdmin):
		return []config.App{config.App(s)}, nil
	}
	return nil, fmt.Errorf("unknown app %q", s)
}

// portal is one running application with its session machinery.
type portal struct {
	http      *web.HTTPServer
	refresher *session.Refresher
}

func serve(ctx context.Context, cfg *config.Config, apps []config.App, logger *zap.SugaredLogger) error {
	apiURL, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return errors.Wrap(err, "api url")
	}
	api, err := sdyn.Open(*apiURL,
		sdyn.WithLogger(logger),
		sdyn.WithTimeout(cfg.API.Timeout),
	)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Session.Store == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		defer rdb.Close() //nolint:errcheck
		if err := rdb.Ping(ctx).Err(); err != nil {
			return errors.Wrapf(err, "connect to redis at %s", cfg.Session.RedisAddr)
		}
	}

	portals := make([]portal, 0, len(apps))
	for _, app := range apps {
		p, err := newPortal(ctx, cfg, app, api, rdb, logger)
		if err != nil {
			return errors.Wrapf(err, "start %s portal", app)
		}
		portals = append(portals, p)
	}

	var metricsSrv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range portals {
		p := p
		p.refresher.Start()
		g.Go(func() error {
			logger.Infow("Starting HTTP server", "addr", p.http.Server.Addr)
			if err := p.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	if metricsSrv != nil {
		g.Go(func() error {
			logger.Infow("Starting metrics server", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		sg, sctx := errgroup.WithContext(sctx)
		for _, p := range portals {
			p := p
			sg.Go(func() error {
				p.refresher.Stop(sctx)
				return p.http.Shutdown(sctx)
			})
		}
		if metricsSrv != nil {
			sg.Go(func() error { return metricsSrv.Shutdown(sctx) })
		}
		return sg.Wait()
	})
	return g.Wait()
}

func newPortal(ctx context.Context, cfg *config.Config, app config.App, api *sdyn.Client, rdb *redis.Client, logger *zap.SugaredLogger) (portal, error) {
	appCfg := cfg.For(app)
	provider, err := session.NewProvider(ctx, session.ProviderConfig{
		IssuerURL:    cfg.Auth.IssuerURL(),
		ClientID:     appCfg.ClientID,
		ClientSecret: appCfg.ClientSecret,
		RedirectURL:  appCfg.PublicURL + "/auth/callback",
		Scopes:       cfg.Auth.Scopes,
		Attempts:     cfg.Auth.DiscoveryAttempts,
		Logger:       logger,
	})
	if err != nil {
		return portal{}, err
	}

	var store session.Store
	if rdb != nil {
		store = session.NewRedisStore(rdb, string(app), cfg.Session.TTL)
	} else {
		store = session.NewMemoryStore(cfg.Session.Capacity, cfg.Session.TTL)
	}
	manager := session.NewManager(provider, store, session.Options{
		RefreshTokens: cfg.Auth.RefreshTokens,
		MinValidity:   cfg.Auth.MinValidity,
		Logger:        logger.Named(string(app)),
	})
	refresher, err := session.NewRefresher(manager, cfg.Auth.RefreshInterval, logger.Named(string(app)))
	if err != nil {
		return portal{}, err
	}

	srv, err := web.New(web.Options{
		App:      app,
		Config:   cfg,
		API:      api,
		Sessions: manager,
		Logger:   logger,
	})
	if err != nil {
		return portal{}, err
	}
	return portal{http: web.NewHTTPServer(srv), refresher: refresher}, nil
}

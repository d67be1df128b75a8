// Package gateway assembles the API gateway: edge authorization in front of
// a prefix-routed reverse proxy, with metrics and config hot reload.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/citygate/internal/auth"
	"github.com/dmitrijs2005/citygate/internal/gateway/config"
	"github.com/dmitrijs2005/citygate/internal/gateway/filter"
	"github.com/dmitrijs2005/citygate/internal/gateway/metrics"
	"github.com/dmitrijs2005/citygate/internal/gateway/proxy"
	"github.com/dmitrijs2005/citygate/internal/gateway/rules"
	"github.com/dmitrijs2005/citygate/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"
)

type App struct {
	cfgPath string
	log     logging.Logger

	mu  sync.Mutex
	cfg *config.Config

	filter  *filter.Filter
	router  *proxy.Router
	metrics *metrics.Metrics
	handler http.Handler
}

// NewApp wires the gateway from cfg. cfgPath is the file to watch for
// changes; empty disables reloading.
func NewApp(cfgPath string, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop{}
	}

	verifier, err := auth.NewIssuer([]byte(cfg.SecretKey), 0)
	if err != nil {
		return nil, err
	}
	table, err := rules.NewTable(cfg.OpenPaths)
	if err != nil {
		return nil, err
	}
	routes, err := proxy.NewTable(cfg.Routes, nil, log.With("module", "proxy"))
	if err != nil {
		return nil, err
	}

	app := &App{
		cfgPath: cfgPath,
		log:     log,
		cfg:     cfg,
		router:  proxy.NewRouter(routes),
		metrics: metrics.New(),
	}
	app.filter = filter.New(verifier, table,
		filter.WithRecorder(app.metrics),
		filter.WithLogger(log.With("module", "filter")),
	)
	app.handler = app.routes()
	return app, nil
}

func (app *App) routes() http.Handler {
	cfg := app.cfg

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
	}).Handler)
	r.Use(accessLog(app.log, app.routeLabel))
	r.Use(app.metrics.Middleware(app.routeLabel))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, app.metrics.Handler())
	}

	r.With(app.filter.Middleware).Handle("/*", app.router)
	return r
}

// routeLabel keeps metric cardinality bounded to the configured prefixes.
func (app *App) routeLabel(r *http.Request) string {
	switch r.URL.Path {
	case "/healthz":
		return "healthz"
	case app.cfg.Metrics.Path:
		if app.cfg.Metrics.Enabled {
			return "metrics"
		}
	}
	return app.router.RouteName(r.URL.Path)
}

func (app *App) Handler() http.Handler {
	return app.handler
}

// Reload swaps the open-path rules and the routes. The signing secret, the
// listen address and the metrics settings are fixed at startup; changes to
// them are logged and ignored. On error nothing is swapped.
func (app *App) Reload(ctx context.Context, next *config.Config) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	err := app.reload(ctx, next)
	app.metrics.ObserveReload(err == nil)
	return err
}

func (app *App) reload(ctx context.Context, next *config.Config) error {
	table, err := rules.NewTable(next.OpenPaths)
	if err != nil {
		return err
	}
	routes, err := proxy.NewTable(next.Routes, nil, app.log.With("module", "proxy"))
	if err != nil {
		return err
	}

	if next.SecretKey != app.cfg.SecretKey {
		app.log.Warn(ctx, "secret_key changed; restart the gateway to apply it")
	}
	if next.Listen != app.cfg.Listen {
		app.log.Warn(ctx, "listen changed; restart the gateway to apply it", "listen", app.cfg.Listen)
	}

	app.filter.SetRules(table)
	app.router.SetTable(routes)
	app.log.Info(ctx, "config reloaded", "open_paths", table.Len(), "routes", len(next.Routes))
	return nil
}

// Run serves until ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", app.cfg.Listen)
	if err != nil {
		return err
	}
	return app.Serve(ctx, lis)
}

func (app *App) Serve(ctx context.Context, lis net.Listener) error {
	if app.cfgPath != "" {
		if err := app.watchConfig(ctx); err != nil {
			app.log.Warn(ctx, "config watcher not started", "error", err)
		}
	}

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.log.Info(ctx, "gateway listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	app.log.Info(context.Background(), "shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

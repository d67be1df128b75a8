// Package server assembles and runs the auth service: credential store,
// user service, HTTP API and gRPC health endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/citygate/internal/auth"
	"github.com/dmitrijs2005/citygate/internal/cryptox"
	"github.com/dmitrijs2005/citygate/internal/logging"
	"github.com/dmitrijs2005/citygate/internal/server/config"
	gs "github.com/dmitrijs2005/citygate/internal/server/grpc"
	"github.com/dmitrijs2005/citygate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/citygate/internal/server/rest"
	"github.com/dmitrijs2005/citygate/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
	health  *gs.HealthServer
}

// NewApp opens the credential store (running migrations for PostgreSQL) and
// wires the service layers.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop{}
	}

	hasher, err := cryptox.NewHasher(cfg.PasswordHashAlgorithm, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer([]byte(cfg.SecretKey), cfg.TokenValidityDuration)
	if err != nil {
		return nil, err
	}

	var (
		db *sql.DB
		rm repomanager.RepositoryManager
	)
	if cfg.UsesMemoryStore() {
		logger.Warn(ctx, "using in-memory credential store; identities are lost on restart")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		if db, err = repomanager.OpenPostgres(ctx, cfg.DatabaseDSN); err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	us, err := services.NewUserService(db, rm, hasher, issuer, logger.With("module", "user_service"))
	if err != nil {
		return nil, err
	}

	var store gs.Pinger
	if db != nil {
		store = db
	}

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		handler: rest.NewRouter(rest.NewHandler(us, logger.With("module", "rest")), cfg.LoginRateLimit, logger),
		health:  gs.NewHealthServer(cfg.EndpointAddrGRPC, logger, store),
	}, nil
}

// Handler exposes the HTTP API.
func (app *App) Handler() http.Handler {
	return app.handler
}

// Run serves HTTP and gRPC health until ctx is cancelled or either server
// fails, then shuts both down.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "starting auth service", "http", app.config.EndpointAddrHTTP, "grpc", app.config.EndpointAddrGRPC)

	lis, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		return err
	}
	return app.serve(ctx, lis)
}

func (app *App) serve(ctx context.Context, lis net.Listener) error {
	// requests keep the values of ctx but not its cancellation, so in-flight
	// calls can finish during Shutdown
	base := context.WithoutCancel(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail(fmt.Errorf("http server: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.health.Run(ctx); err != nil {
			fail(fmt.Errorf("grpc server: %w", err))
		}
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "stopping auth service")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown", "error", err)
	}
	wg.Wait()

	if app.db != nil {
		_ = app.db.Close()
	}
	return firstErr
}

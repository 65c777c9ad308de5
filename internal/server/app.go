// Package server assembles the account backend: configuration, logging, the
// database pool with schema migrations, and the lifecycle services. The
// transport that exposes them (HTTP routing, auth middleware) belongs to the
// embedding application; App hands it ready-to-use services.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvrcrypto/customapi/internal/logging"
	"github.com/mvrcrypto/customapi/internal/server/config"
	"github.com/mvrcrypto/customapi/internal/server/federation"
	"github.com/mvrcrypto/customapi/internal/server/pictures"
	"github.com/mvrcrypto/customapi/internal/server/repositories/repomanager"
	"github.com/mvrcrypto/customapi/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	Accounts  *services.AccountService
	Federated *services.FederatedService
	Pictures  *pictures.Resolver
}

func NewApp(ctx context.Context) (*App, error) {
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	resolver := pictures.NewResolver(cfg)
	issuer := services.NewTokenIssuer(rm, cfg.TokenValidityDuration)
	connector := federation.NewConnector(cfg.FederationTimeoutDuration, logger,
		federation.NewGoogleProvider(),
		federation.NewFacebookProvider(),
	)

	return &App{
		config:    cfg,
		logger:    logger,
		db:        db,
		Accounts:  services.NewAccountService(db, rm, issuer, resolver, logger, cfg.RequestTimeoutDuration),
		Federated: services.NewFederatedService(db, rm, issuer, connector, logger, cfg.RequestTimeoutDuration),
		Pictures:  resolver,
	}, nil
}

// Run blocks until the context is cancelled or a termination signal arrives,
// then closes the pool.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)

	app.logger.Info(ctx, "account backend started")

	select {
	case <-ctx.Done():
	case s := <-sigs:
		app.logger.Info(ctx, "signal received", "signal", s.String())
	}

	app.logger.Info(ctx, "shutting down")
	return app.db.Close()
}

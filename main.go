// package main provides the entry point for the pdvd-idp microservice, serving the
// SCIM 2.0 provisioning API together with the TOTP MFA and client certificate pages.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ortelius/pdvd-idp/database"
	"github.com/ortelius/pdvd-idp/internal/api"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/ortelius/pdvd-idp/internal/kafka"
	"github.com/ortelius/pdvd-idp/restapi"
	"github.com/ortelius/pdvd-idp/restapi/modules/auth"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(database.GetEnvDefault("PDVD_IDP_CONFIG", ""))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := database.InitLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.InitializeDatabase()
	if err != nil {
		return err
	}

	accounts := database.NewAccountRepository(db)
	if err := auth.SeedAccounts(ctx, accounts, cfg.Accounts, logger); err != nil {
		return err
	}

	if cfg.Auth.JWTSecret == "" {
		secret, err := auth.GenerateSecureToken(32)
		if err != nil {
			return err
		}
		cfg.Auth.JWTSecret = secret
		logger.Warn("auth.jwt_secret not set, using a random secret; issued tokens are lost on restart")
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	publisher, err := kafka.NewPublisher(ctx, cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	app, err := api.NewFiberApp(restapi.Services{
		Config:    cfg,
		Users:     database.NewUserStore(db, logger),
		Accounts:  accounts,
		Sessions:  api.NewSessionStore(cfg.Auth),
		Tokens:    tokens,
		MFA:       auth.NewMFA(cfg.MFA),
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", cfg.Server.ListenAddr),
			zap.String("scim_auth_mode", cfg.SCIM.AuthMode))
		errCh <- app.Listen(cfg.Server.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

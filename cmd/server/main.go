package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/gatepass/ticket-gate/internal/chain"
	"github.com/gatepass/ticket-gate/internal/config"
	"github.com/gatepass/ticket-gate/internal/database"
	"github.com/gatepass/ticket-gate/internal/handler"
	"github.com/gatepass/ticket-gate/internal/middleware"
	"github.com/gatepass/ticket-gate/internal/monitoring"
	"github.com/gatepass/ticket-gate/internal/queue"
	"github.com/gatepass/ticket-gate/internal/repository"
	"github.com/gatepass/ticket-gate/internal/router"
	"github.com/gatepass/ticket-gate/internal/service"
	"github.com/gatepass/ticket-gate/internal/signing"
	"github.com/gatepass/ticket-gate/internal/ticketing"
	"github.com/gatepass/ticket-gate/internal/wallet"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	tickets := repository.NewTicketRepo(db)
	events := repository.NewEventRepo(db)
	staff := repository.NewStaffRepo(db)

	signer, err := signing.New(cfg.SignerSecret)
	if err != nil {
		return err
	}
	wallets, err := wallet.NewProvisioner(users, cfg.Custody.Recipient, logger)
	if err != nil {
		return err
	}

	mode := ticketing.ModeFor(cfg.Chain.Live())
	deps := ticketing.IssuerDeps{
		Wallets: wallets,
		Events:  events,
		Tickets: tickets,
		Sink:    service.NewReconcilePublisher(cfg.RabbitURL, logger),
		Logger:  logger,
	}
	var owners ticketing.OwnerReader

	client, err := chain.Dial(ctx, cfg.Chain)
	switch {
	case err != nil && mode == ticketing.LiveMinting:
		return err
	case err != nil:
		logger.Warn("chain unavailable; chain-backed tickets cannot be verified", "err", err)
	default:
		defer client.Close()
		owners = client
		logger.Info("chain connected", "contract", client.Contract().Hex(), "platform", client.PlatformAddress().Hex())
		if mode == ticketing.LiveMinting {
			deps.Minter = client
			deps.Resolvers = ticketing.DefaultResolvers(client)
		}
		if err := client.Ping(ctx); err != nil {
			logger.Warn("chain rpc check failed", "err", err)
		}
	}

	issuer, err := ticketing.NewIssuer(ticketing.IssuerConfig{
		Mode:            mode,
		Contract:        common.HexToAddress(cfg.Chain.ContractAddress),
		MetadataBaseURL: cfg.Chain.MetadataBaseURL,
		ConfirmTimeout:  cfg.Chain.ConfirmTimeout,
	}, deps)
	if err != nil {
		return err
	}
	redeemer := ticketing.NewRedeemer(signer, tickets, events, owners, logger)
	logger.Info("ticketing ready", "mint_mode", issuer.Mode().String(), "contract", cfg.Chain.ContractAddress)

	go func() {
		if err := queue.StartReconcileConsumer(ctx, cfg.RabbitURL, tickets, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reconcile consumer stopped", "err", err)
		}
	}()

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), config.NewRedisClient(), logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger))

	router.RegisterRoutes(e, handler.Health(db, issuer.Mode().String()), monitoring.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret, limiter)
	router.RegisterCustomer(e,
		handler.NewTicketHandler(issuer, tickets, wallets, signer, cfg.Chain.ConfirmTimeout+30*time.Second, logger),
		cfg.JWTSecret, limiter)
	staffHandler := handler.NewStaffHandler(cfg, staff, events)
	router.RegisterHost(e, handler.NewEventHandler(events), staffHandler, cfg.JWTSecret)
	router.RegisterGate(e, handler.NewScanHandler(redeemer, logger), staffHandler, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newLogger(env, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"eurobank-ledger/config"
	"eurobank-ledger/db"
	"eurobank-ledger/events"
	"eurobank-ledger/handler"
	"eurobank-ledger/logger"
	"eurobank-ledger/repository"
	"eurobank-ledger/router"
	"eurobank-ledger/service"

	"github.com/shopspring/decimal"
)

// Deps are the infrastructure handles the worker is built on.
type Deps struct {
	UoW     repository.UnitOfWork
	Users   repository.IUserRepository
	Clients repository.IClientRepository
	Tokens  repository.ITokenRepository
	Streams events.StreamClient
	// Cache may be nil to disable account caching.
	Cache service.ICacheClient
}

// App is a wired ledger worker.
type App struct {
	Router     *router.Router
	Subscriber *events.Subscriber
	Transfers  *service.TransferService
	Accounts   *service.AccountService
	History    *service.HistoryService
	Clients    *service.ClientService
	Cards      *service.CardService
	Tokens     *service.TokenService
	Auth       *service.AuthService
}

// Wire builds services, handlers, router and subscriber from cfg and deps.
func Wire(cfg config.Config, deps Deps) (*App, error) {
	clock, err := service.NewSystemClock(cfg.Transfer.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Transfer.Timezone, err)
	}
	ceiling, err := decimal.NewFromString(cfg.Transfer.InstantCeiling)
	if err != nil {
		return nil, fmt.Errorf("invalid instant ceiling %q: %w", cfg.Transfer.InstantCeiling, err)
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("jwt.secret_key is required")
	}

	transferCfg := service.DefaultTransferConfig()
	transferCfg.InstantCeiling = ceiling
	transferCfg.DailyLimit = cfg.Transfer.DailyLimit
	transferCfg.MaxRetries = cfg.Transfer.MaxRetries

	a := &App{
		Transfers: service.NewTransferService(deps.UoW, clock, service.UUIDReferenceGenerator{}, transferCfg, deps.Cache),
		Accounts:  service.NewAccountService(deps.UoW, clock, deps.Cache),
		History:   service.NewHistoryService(deps.UoW, clock),
		Clients:   service.NewClientService(deps.Clients, clock),
		Cards:     service.NewCardService(deps.UoW, clock),
		Tokens: service.NewTokenService(deps.Tokens, clock, service.TokenConfig{
			SecretKey:  cfg.JWT.SecretKey,
			AccessTTL:  cfg.JWT.AccessTTL,
			RefreshTTL: cfg.JWT.RefreshTTL,
		}),
	}
	a.Auth = service.NewAuthService(deps.Users, a.Tokens, clock, cfg.Auth.MaxAttempts, cfg.Auth.BcryptCost)

	publisher := events.NewPublisher(deps.Streams, cfg.Worker.EventStream)
	a.Router = router.NewRouter(publisher, a.Tokens, router.Handlers{
		Transfer: handler.NewTransferHandler(a.Transfers, publisher),
		Account:  handler.NewAccountHandler(a.Accounts, a.History, publisher),
		Client:   handler.NewClientHandler(a.Clients, publisher),
		Card:     handler.NewCardHandler(a.Cards, publisher),
		Auth:     handler.NewAuthHandler(a.Auth, publisher),
	})
	a.Subscriber = events.NewSubscriber(deps.Streams, events.SubscriberConfig{
		Group:         cfg.Worker.Group,
		Consumer:      cfg.Worker.Consumer,
		Stream:        cfg.Worker.CommandStream,
		Handler:       a.Router.Dispatch,
		BatchSize:     cfg.Worker.BatchSize,
		BlockDuration: cfg.Worker.Block,
		ClaimInterval: cfg.Worker.ClaimInterval,
	})
	return a, nil
}

func Run() {
	config.LoadConfig(".")
	cfg := config.AppConfig
	logger.Init(logger.WithLevel(cfg.Log.Level), logger.WithFormat(cfg.Log.Format))
	logger.Log.Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := Deps{}
	switch cfg.Store.Driver {
	case "memory":
		logger.Log.Warn("Using in-memory store, balances are lost on exit")
		deps.UoW = repository.NewMemoryStore(cfg.Transfer.LockTimeout)
		deps.Users = repository.NewMemoryUserRepository()
		deps.Clients = repository.NewMemoryClientRepository()
		deps.Tokens = repository.NewMemoryTokenRepository()
	case "postgres":
		database, err := db.Connect(cfg)
		if err != nil {
			logger.Log.Fatalf("Error connecting to the database: %v", err)
		}
		defer database.Close()
		if err := db.Migrate(database, cfg.Database.MigrationsDir); err != nil {
			logger.Log.Fatalf("Error running migrations: %v", err)
		}
		deps.UoW = repository.NewPostgresUnitOfWork(database, cfg.Transfer.LockTimeout)
		deps.Users = repository.NewUserRepository(database)
		deps.Clients = repository.NewClientRepository(database)
		deps.Tokens = repository.NewTokenRepository(database)
	default:
		logger.Log.Fatalf("Unknown store driver %q", cfg.Store.Driver)
	}

	rdb, err := db.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Error connecting to redis: %v", err)
	}
	defer rdb.Close()
	deps.Streams = rdb
	deps.Cache = rdb

	a, err := Wire(cfg, deps)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- a.Subscriber.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.Fatalf("Subscriber failed: %v", err)
		}
	case <-ctx.Done():
		logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")
		select {
		case <-done:
		case <-time.After(cfg.Worker.Block + 5*time.Second):
			logger.Log.Error("Subscriber did not stop in time")
		}
	}

	logger.Log.Info("Worker exited properly")
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/config"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/handler"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/service"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/signer"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/store"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type application struct {
	config        *config.Config
	logger        *zap.Logger
	db            *sql.DB
	redisClient   *redis.Client
	ticketService *service.TicketService
	server        *http.Server
	shutdownChan  chan struct{}
	sweeperDone   chan struct{}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.AppEnv == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := store.ConnectDB(cfg.DBDriver, cfg.DBDataSourceName)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", zap.Error(err))
		}
	}()

	if err := store.RunMigrations(db, cfg.MigrationsDir); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("error closing redis client", zap.Error(err))
		}
	}()

	dbStore := store.NewDBStore(db)
	redisStore := store.NewRedisStore(redisClient)

	sig := signer.New(cfg.WindowSeconds, cfg.SkewWindows, cfg.CodeDigits)
	secretService := service.NewSecretService(logger, dbStore, service.NewZapKeySink(logger))
	ticketService := service.NewTicketService(logger, dbStore, secretService, sig,
		redisStore, cfg.TicketCacheTTL, cfg.GraceAfterStart)
	validationService := service.NewValidationService(logger, dbStore, secretService, dbStore, sig,
		redisStore, cfg.TicketCacheTTL, cfg.GraceAfterStart)

	app := &application{
		config:        cfg,
		logger:        logger,
		db:            db,
		redisClient:   redisClient,
		ticketService: ticketService,
		shutdownChan:  make(chan struct{}),
		sweeperDone:   make(chan struct{}),
	}

	go app.runExpirySweeper()

	router := handler.NewRouter(logger,
		handler.NewAccountHandler(logger, secretService),
		handler.NewTicketHandler(logger, ticketService),
		handler.NewValidationHandler(logger, validationService),
	)

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	app.serve()
}

func (app *application) serve() {
	app.logger.Info("starting server", zap.String("addr", app.server.Addr))

	errChan := make(chan error)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		app.logger.Fatal("server error", zap.Error(err))
	case sig := <-quit:
		app.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(app.shutdownChan)
	select {
	case <-app.sweeperDone:
		app.logger.Info("expiry sweeper stopped")
	case <-time.After(10 * time.Second):
		app.logger.Warn("expiry sweeper did not stop in time")
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", zap.Error(err))
	} else {
		app.logger.Info("server gracefully stopped")
	}
}

// runExpirySweeper periodically voids unused tickets whose event start lies
// further in the past than the configured grace period.
func (app *application) runExpirySweeper() {
	defer close(app.sweeperDone)

	if _, err := app.ticketService.ExpireLapsedTickets(context.Background(), time.Now()); err != nil {
		app.logger.Error("initial expiry sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	app.logger.Info("expiry sweeper started", zap.Duration("interval", app.config.SweepInterval))

	for {
		select {
		case <-ticker.C:
			if _, err := app.ticketService.ExpireLapsedTickets(context.Background(), time.Now()); err != nil {
				app.logger.Error("expiry sweep failed", zap.Error(err))
			}
		case <-app.shutdownChan:
			app.logger.Info("expiry sweeper received shutdown signal")
			return
		}
	}
}

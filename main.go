package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rsvp-server/config"
	"rsvp-server/handlers"
	"rsvp-server/services"
	"rsvp-server/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var (
		users     store.UserStore
		events    store.EventStore
		engineOps []services.EngineOption
	)

	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is not persisted")
		users = store.NewMemoryUserStore()
		events = store.NewMemoryEventStore()
	default:
		client, err := store.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		logger.Info("connected to mongodb", "db", cfg.MongoDB)

		db := client.Database(cfg.MongoDB)
		userStore := store.NewMongoUserStore(db, cfg.StoreTimeout, logger)
		if err := userStore.EnsureIndexes(ctx); err != nil {
			logger.Warn("failed to create user indexes", "error", err)
		}
		users = userStore
		events = store.NewMongoEventStore(db, cfg.StoreTimeout)
		if cfg.MongoTransactions {
			logger.Info("rsvp transitions run in mongodb transactions")
			engineOps = append(engineOps, services.WithTransactions(store.NewMongoTxManager(client)))
		}
	}

	var queue *services.RedisReconcileQueue
	if cfg.RedisAddr != "" {
		redisClient, err := services.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		queue = services.NewRedisReconcileQueue(redisClient)
		engineOps = append(engineOps, services.WithReconcileQueue(queue))
	}

	engine := services.NewRSVPEngine(users, events, logger, engineOps...)
	userService := services.NewUserService(users, cfg.JWTSecret, logger)
	router := handlers.NewRouter(handlers.RouterDeps{
		Users:          userService,
		Graph:          services.NewSocialGraph(users, logger),
		Events:         services.NewEventService(users, events, logger),
		Engine:         engine,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	if queue != nil {
		worker := services.NewReconcileWorker(queue, engine, cfg.ReconcileInterval, logger)
		go worker.Run(ctx)
		logger.Info("reconcile worker started", "interval", cfg.ReconcileInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

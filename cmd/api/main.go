package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turfhub/internal/api"
	"turfhub/internal/config"
	"turfhub/internal/database"
	"turfhub/internal/domain"
	"turfhub/internal/events"
	"turfhub/internal/logging"
	"turfhub/internal/metrics"
	"turfhub/internal/notify"
	"turfhub/internal/repository"
	"turfhub/internal/service"
	"turfhub/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, locker, redisClient, err := initStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	catalog, err := loadCatalog(cfg, &logger)
	if err != nil {
		return err
	}

	eventBus := events.NewEventBus()
	eventBus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", event.Type).Int64("event_id", event.ID).Msg("event handler failed")
	})

	journal, journalDone, err := initJournal(ctx, cfg, eventBus, redisClient, &logger)
	if err != nil {
		return err
	}
	if journal != nil {
		defer (func() {
			stop()
			// журнал закрываем только после того, как воркер сбросил очередь
			select {
			case <-journalDone:
			case <-time.After(5 * time.Second):
				logger.Warn().Msg("journal worker did not finish in time")
			}
			_ = journal.Close()
		})()
	}

	if err := initNotifications(ctx, cfg, eventBus, &logger); err != nil {
		return err
	}

	services := api.Services{
		Turfs:     service.NewTurfService(store, locker, eventBus, &logger),
		Equipment: service.NewEquipmentService(store, locker, eventBus, &logger),
		Seeder:    service.NewSeeder(store, catalog, &logger),
		Store:     store,
	}
	if journal != nil {
		services.Journal = journal
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, services, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, store, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Store, domain.Locker, *redis.Client, error) {
	memoryLocker := repository.NewMemoryLocker(cfg.Store.LockWait)

	if cfg.Store.Driver == "memory" {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(cfg.Store), memoryLocker, nil, nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	store := repository.NewRedisStore(redisClient, cfg.Store)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		// Не падаем: /readyz и gRPC health покажут недоступность хранилища
		logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis is not reachable yet")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	redisLocker := repository.NewRedisLocker(redisClient, cfg.Store.LockTTL, cfg.Store.LockWait)
	locker := repository.NewFailoverLocker(redisLocker, memoryLocker, logging.Component(logger, "locker"))

	return store, locker, redisClient, nil
}

func loadCatalog(cfg *config.Config, logger *zerolog.Logger) (service.Catalog, error) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = cfg.CatalogPath
	}
	if catalogPath == "" {
		return service.DefaultCatalog(), nil
	}

	catalog, err := service.LoadCatalog(catalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("load catalog")
		return service.Catalog{}, err
	}
	logger.Info().
		Str("catalog_path", catalogPath).
		Int("turfs", len(catalog.Turfs)).
		Int("equipment", len(catalog.Equipment)).
		Msg("catalog loaded")
	return catalog, nil
}

func initJournal(
	ctx context.Context,
	cfg *config.Config,
	eventBus *events.EventBus,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (*database.Journal, <-chan struct{}, error) {
	if !cfg.Journal.Enabled {
		return nil, nil, nil
	}

	journal, err := database.NewJournal(cfg.Journal.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("journal_path", cfg.Journal.Path).Msg("init journal")
		return nil, nil, err
	}

	journalWorker := worker.NewJournalWorker(journal, redisClient, worker.RetryPolicy{}, logger)
	eventBus.SubscribeAll(journalWorker.Handle)

	done := make(chan struct{})
	go func() {
		defer close(done)
		journalWorker.Start(ctx)
	}()

	return journal, done, nil
}

func initNotifications(ctx context.Context, cfg *config.Config, eventBus *events.EventBus, logger *zerolog.Logger) error {
	tg := cfg.Notifications.Telegram
	if !tg.Enabled {
		return nil
	}

	bot, err := notify.NewBotAPI(tg)
	if err != nil {
		logger.Error().Err(err).Msg("init telegram bot")
		return err
	}

	notifier := notify.NewTelegramNotifier(bot, tg.ChatIDs, logger)
	notifier.Subscribe(eventBus)
	go notifier.Start(ctx)
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(tg.ChatIDs)).Msg("telegram notifications enabled")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		go grpcServer.WatchHealth(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/flexibill/internal/archive"
	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/cache"
	"github.com/pribylovaa/flexibill/internal/config"
	"github.com/pribylovaa/flexibill/internal/gateway"
	"github.com/pribylovaa/flexibill/internal/metrics"
	"github.com/pribylovaa/flexibill/internal/pkg/secretbox"
	"github.com/pribylovaa/flexibill/internal/provider"
	"github.com/pribylovaa/flexibill/internal/retry"
	"github.com/pribylovaa/flexibill/internal/scheduler"
	"github.com/pribylovaa/flexibill/internal/service"
	"github.com/pribylovaa/flexibill/internal/storage"
	"github.com/pribylovaa/flexibill/internal/storage/memory"
	"github.com/pribylovaa/flexibill/internal/storage/mongo"
	"github.com/pribylovaa/flexibill/internal/storage/postgres"
	grpctransport "github.com/pribylovaa/flexibill/internal/transport/grpc"
	httptransport "github.com/pribylovaa/flexibill/internal/transport/http"
	"github.com/pribylovaa/flexibill/internal/transport/http/handlers"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

// run собирает зависимости, запускает серверы и фоновые задачи
// и блокируется до отмены ctx или фатальной ошибки сервера.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	pingers := make(map[string]handlers.Pinger)

	// Хранилище токенов и элементов.
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()
	if p, ok := st.(handlers.Pinger); ok {
		pingers["postgres"] = p
	}

	// Журнал инцидентов.
	incidents, closeIncidents, err := openIncidents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeIncidents()
	if p, ok := incidents.(handlers.Pinger); ok {
		pingers["mongo"] = p
	}

	// Кэш ответов провайдера.
	respCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = respCache.Close() }()

	// Архив сырых webhook.
	var webhookArchive service.Archive
	if cfg.S3.Endpoint != "" {
		s3Ctx, s3Cancel := context.WithTimeout(ctx, connectTimeout)
		a, err := archive.New(s3Ctx, cfg.S3)
		s3Cancel()
		if err != nil {
			log.Error("s3_connect_failed", slog.String("err", err.Error()))
			return err
		}
		webhookArchive = a
		log.Info("s3_connected", slog.String("bucket", cfg.S3.Bucket))
	} else {
		log.Warn("webhook_archive_disabled")
	}

	// gRPC-сервер создаётся раньше реестра: его health отражает автоматы.
	grpcSrv := grpctransport.New(log, grpctransport.Options{
		Timeout:    cfg.Timeouts.Service,
		Reflection: cfg.Env == envLocal || cfg.Env == envDev,
		Metrics:    true,
		OnPanic:    func(method string) { m.Panic("grpc", method) },
	})

	registry := breaker.NewRegistry(
		breaker.WithClassifier(gateway.Classify),
		breaker.WithLogger(log),
		breaker.WithStateChangeHook(m.BreakerStateChanged),
		breaker.WithStateChangeHook(grpcSrv.BreakerStateChanged),
	)

	gw := gateway.New(registry, respCache, retry.Policy{
		MaxRetries:     cfg.Retry.MaxRetries,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		AttemptTimeout: cfg.Retry.AttemptTimeout,
	}, gateway.Config{
		Breakers: cfg.Breakers,
		CacheTTL: cfg.Cache.TTL,
	}, gateway.WithHooks(m.GatewayHooks()))

	var providerOpts []provider.Option
	if cfg.Provider.WebhookURL != "" {
		providerOpts = append(providerOpts, provider.WithWebhookURL(cfg.Provider.WebhookURL))
	}
	providerClient := provider.New(
		&http.Client{Timeout: cfg.Provider.HTTPTimeout},
		cfg.Provider.BaseURL, cfg.Provider.ClientID, cfg.Provider.Secret,
		providerOpts...,
	)

	box, err := secretbox.New(cfg.Provider.EncryptionKey)
	if err != nil {
		log.Error("encryption_key_invalid", slog.String("err", err.Error()))
		return err
	}

	// Сервисы.
	svcOpts := []service.Option{service.WithIncidents(incidents), service.WithMetrics(m)}
	tokens := service.NewTokenService(st, cfg.Auth, svcOpts...)
	cleanup := service.NewCleanupService(st, cfg.Cleanup, svcOpts...)
	items := service.NewItemService(st, providerClient, gw, box)
	webhooks := service.NewWebhookService(st, items, webhookArchive, cfg.Provider.TransactionsWindow, m)
	log.Info("service_initialized")

	// Автомат провайдера заводится сразу, чтобы он был виден в health до первого вызова.
	bc := cfg.Breakers.For(service.DependencyProvider)
	registry.GetOrCreate(service.DependencyProvider, bc.FailureThreshold, bc.ResetTimeout, bc.SuccessThreshold)
	grpcSrv.TrackBreakers(registry.Status())

	// Фоновые задачи.
	sched := scheduler.New(log, scheduler.WithObserver(m.JobRun))
	if err := cleanup.Schedule(sched); err != nil {
		return err
	}

	var ready atomic.Bool

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httptransport.NewRouter(&handlers.Handlers{
			Tokens:   tokens,
			Cleanup:  cleanup,
			Items:    items,
			Webhooks: webhooks,
			Breakers: registry,
			Ready:    &ready,
			Pingers:  pingers,
		}, httptransport.Options{
			Logger:     log,
			Metrics:    m,
			Timeout:    cfg.Timeouts.Service,
			AdminToken: cfg.Admin.Token,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcAddr := cfg.GRPC.Addr()
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("grpc_listen_failed",
			slog.String("addr", grpcAddr),
			slog.String("err", err.Error()),
		)
		return err
	}

	serveErrCh := make(chan error, 2)

	go func() {
		log.Info("http_listen_start", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()

	go func() {
		if err := grpcSrv.Serve(listener); err != nil {
			serveErrCh <- err
		}
	}()

	jobsCtx, jobsCancel := context.WithCancel(ctx)
	var jobs sync.WaitGroup
	jobs.Add(1)
	go func() {
		defer jobs.Done()
		_ = sched.Run(jobsCtx)
	}()

	// Сервис готов.
	grpcSrv.SetReady(true)
	ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		log.Error("serve_failed", slog.String("err", serveErr.Error()))
	}

	// Снимаем готовность и останавливаемся с таймаутом.
	ready.Store(false)
	grpcSrv.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Очистка прерывается по отмене; незавершённая пачка подхватится следующим запуском.
	jobsCancel()
	jobs.Wait()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}
	grpcSrv.Shutdown(shutdownCtx)

	return serveErr
}

// openStorage подключает PostgreSQL; без db_url (только env=local)
// используется хранилище в памяти.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.DB.DatabaseURL == "" {
		log.Warn("storage_in_memory")
		return memory.New(), nil
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, connectTimeout)
	defer dbCancel()

	st, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		return nil, err
	}
	log.Info("postgres_connected")

	return st, nil
}

// openIncidents подключает MongoDB; без url журнал хранится в памяти процесса.
func openIncidents(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.IncidentRecorder, func(), error) {
	if cfg.Mongo.URL == "" {
		log.Warn("incidents_in_memory")
		return memory.NewIncidents(), func() {}, nil
	}

	mCtx, mCancel := context.WithTimeout(ctx, connectTimeout)
	defer mCancel()

	in, err := mongo.New(mCtx, cfg.Mongo.URL, cfg.Mongo.IncidentsTTL)
	if err != nil {
		log.Error("mongo_connect_failed", slog.String("err", err.Error()))
		return nil, nil, err
	}
	log.Info("mongo_connected")

	closeFn := func() {
		cCtx, cCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cCancel()
		if err := in.Close(cCtx); err != nil {
			log.Warn("mongo_close_failed", slog.String("err", err.Error()))
		}
	}

	return in, closeFn, nil
}

// openCache подключает Redis; без url кэш живёт в памяти процесса.
func openCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (cache.ResponseCache, error) {
	if cfg.Redis.RedisURL == "" {
		log.Warn("cache_in_memory")
		return cache.NewMemory(), nil
	}

	rCtx, rCancel := context.WithTimeout(ctx, connectTimeout)
	defer rCancel()

	c, err := cache.NewRedisCache(rCtx, cfg.Redis.RedisURL, cfg.Cache.Prefix)
	if err != nil {
		log.Error("redis_connect_failed", slog.String("err", err.Error()))
		return nil, err
	}
	log.Info("redis_connected")

	return c, nil
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

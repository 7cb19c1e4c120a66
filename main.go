package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appShopping "github.com/Zhima-Mochi/minishop-shopping/internal/application/shopping"
	"github.com/Zhima-Mochi/minishop-shopping/internal/config"
	domoutbox "github.com/Zhima-Mochi/minishop-shopping/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/memory"
	obsprovider "github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-shopping/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/minishop-shopping/internal/observability"
	"github.com/Zhima-Mochi/minishop-shopping/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-shopping/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-shopping/internal/presentation/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := oteltrace.Setup(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		systemLogger.Fatal("tracing_setup_failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.Standard(prometrics.New(registry, "", ""))
	tel := obsprovider.New(
		oteltrace.New("minishop.shopping"),
		zaplogger.New(baseLogger),
		counters,
		histograms,
	)

	dao, closeStore, err := openStore(ctx, cfg, tel.Logger())
	if err != nil {
		systemLogger.Fatal("store_open_failed", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer closeStore()

	// In-memory event bus carrying purchase outcomes to the stock watcher
	var bus domoutbox.Bus = outbox.NewBus(tel)

	opts := []appShopping.Option{appShopping.WithPublisher(bus)}
	if cfg.AtomicBuy {
		opts = append(opts, appShopping.WithAtomicCheck())
	}
	shoppingService := appShopping.NewService(dao, tel, opts...)

	stockWorker := workerpresentation.NewStockWorker(bus, appShopping.NewStockWatchUseCase(tel), tel)
	stockWorker.Start()

	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	handler := httppresentation.NewHandler(shoppingService, id.NewUUIDGenerator(), tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Store),
			zap.Bool("atomic_buy", cfg.AtomicBuy),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		systemLogger.Error("tracing_shutdown_error", zap.Error(err))
	}
}

// openStore builds the configured product store and seeds it from the catalog file when one is set.
func openStore(ctx context.Context, cfg config.Config, log observability.Logger) (product.Dao, func(), error) {
	var seed []product.Product
	if cfg.CatalogFile != "" {
		var err error
		seed, err = config.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			return nil, nil, err
		}
	}

	switch cfg.Store {
	case config.StoreRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		dao := redisstore.NewProductDao(client, redisstore.DefaultKey)
		if err := seedStore(ctx, dao, seed, log); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return dao, func() { _ = client.Close() }, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		dao := postgres.NewProductDao(db)
		if err := seedStore(ctx, dao, seed, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return dao, func() { _ = db.Close() }, nil

	default:
		log.Info("store_seeded", observability.F("store", config.StoreMemory), observability.F("products", len(seed)))
		return memory.NewProductDao(seed...), func() {}, nil
	}
}

// seedStore writes the catalog into an empty store. A store that already holds
// products keeps its live stock.
func seedStore(ctx context.Context, dao product.Dao, seed []product.Product, log observability.Logger) error {
	if len(seed) == 0 {
		return nil
	}
	existing, err := dao.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("seed: list: %w", err)
	}
	if len(existing) > 0 {
		log.Info("store_seed_skipped", observability.F("existing", len(existing)))
		return nil
	}
	for _, p := range seed {
		ok, err := dao.Save(ctx, p)
		if err != nil {
			return fmt.Errorf("seed %q: %w", p.Name, err)
		}
		if !ok {
			return fmt.Errorf("seed %q: rejected by store", p.Name)
		}
	}
	log.Info("store_seeded", observability.F("products", len(seed)))
	return nil
}

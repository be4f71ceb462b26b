package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/retailpos/internal/health"
	"github.com/vladislavdragonenkov/retailpos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retailpos/internal/metrics"
	"github.com/vladislavdragonenkov/retailpos/internal/service/checkout"
	"github.com/vladislavdragonenkov/retailpos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/retailpos/internal/service/inventory"
	"github.com/vladislavdragonenkov/retailpos/internal/service/orders"
	"github.com/vladislavdragonenkov/retailpos/internal/service/outbox"
	"github.com/vladislavdragonenkov/retailpos/internal/service/reporting"
	"github.com/vladislavdragonenkov/retailpos/internal/service/rest"
	"github.com/vladislavdragonenkov/retailpos/internal/version"
)

// Run собирает зависимости и держит оба HTTP-сервера и фоновые воркеры
// до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Kafka опциональна: без брокеров события копятся в outbox до перезапуска.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)

	checkoutMetrics := metrics.NewCheckoutMetrics()

	inventorySvc := inventory.NewService(deps.Products,
		inventory.WithLogger(logger.WithField("layer", "inventory")),
		inventory.WithTimeline(deps.Timeline),
		inventory.WithOutbox(deps.Outbox),
		inventory.WithMetrics(checkoutMetrics),
		inventory.WithLowStockThreshold(cfg.LowStockThreshold),
	)
	ordersSvc := orders.NewService(deps.Orders,
		orders.WithLogger(logger.WithField("layer", "orders")),
		orders.WithTimeline(deps.Timeline),
		orders.WithOutbox(deps.Outbox),
		orders.WithMetrics(checkoutMetrics),
	)
	reportingSvc := reporting.NewService(deps.Orders, deps.Products, cfg.LowStockThreshold,
		logger.WithField("layer", "reporting"))

	newBuilder := func() *checkout.Builder {
		return checkout.NewBuilder(deps.Catalog, deps.Customers, deps.Orders,
			checkout.WithLogger(logger.WithField("layer", "checkout")),
			checkout.WithTimeline(deps.Timeline),
			checkout.WithOutbox(deps.Outbox),
			checkout.WithMetrics(checkoutMetrics),
		)
	}

	router := rest.NewRouter(rest.Deps{
		Products:    deps.Products,
		Catalog:     deps.Catalog,
		Categories:  deps.Categories,
		Customers:   deps.Customers,
		Orders:      ordersSvc,
		Inventory:   inventorySvc,
		Reporting:   reportingSvc,
		Idempotency: deps.Idempotency,
		NewBuilder:  newBuilder,
		Logger:      logger.WithField("layer", "rest"),
	})

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(pingCtx)
		}))
	}

	metricsSrv := startMetricsServer(cfg.MetricsAddr, logger, healthHandler)

	// Фоновые воркеры живут на собственном контексте, чтобы остановить их
	// уже после закрытия HTTP API.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workers sync.WaitGroup

	if kafkaProducer != nil {
		outboxWorker := outbox.NewWorker(deps.Outbox, kafka.NewOutboxPublisher(kafkaProducer),
			outbox.WithLogger(logger.WithField("worker", "outbox")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(kafkaProducer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			outboxWorker.Run(workerCtx)
		}()
	}

	cleanupWorker := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("worker", "idempotency_cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
	)
	workers.Add(1)
	go func() {
		defer workers.Done()
		cleanupWorker.Run(workerCtx)
	}()

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	// Порядок остановки: HTTP API, воркеры, служебный сервер, Kafka, хранилище.
	shutdown := func() {
		shutdownHTTP(apiSrv, logger)
		stopWorkers()
		workers.Wait()
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdown()
		return ctx.Err()
	case err := <-errCh:
		shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает служебный HTTP-сервер с метриками и health-пробами.
func startMetricsServer(addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/storage/memory"
	"github.com/vladislavdragonenkov/retailpos/internal/storage/postgres"
)

// Dependencies содержит хранилища приложения.
type Dependencies struct {
	// Store не nil только при постоянном хранилище.
	Store *postgres.Store

	Products    domain.ProductRepository
	Catalog     domain.ProductCatalog
	Categories  domain.CategoryRepository
	Customers   domain.CustomerRepository
	Orders      domain.OrderRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository

	Logger *log.Entry
}

// NewDependencies собирает слой хранения: PostgreSQL при заданном DSN,
// иначе in-memory реализации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	if cfg.PostgresDSN == "" {
		logger.Info("postgres DSN is empty, using in-memory storage")
		return newMemoryDependencies(logger), nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	products := postgres.NewProductRepository(store)
	logger.Info("using postgres storage")
	return &Dependencies{
		Store:       store,
		Products:    products,
		Catalog:     products,
		Categories:  postgres.NewCategoryRepository(store),
		Customers:   postgres.NewCustomerRepository(store),
		Orders:      postgres.NewOrderRepository(store),
		Outbox:      postgres.NewOutboxRepository(store),
		Timeline:    postgres.NewTimelineRepository(store),
		Idempotency: postgres.NewIdempotencyRepository(store),
		Logger:      logger,
	}, nil
}

func newMemoryDependencies(logger *log.Entry) *Dependencies {
	products := memory.NewProductRepository()
	return &Dependencies{
		Products:    products,
		Catalog:     products,
		Categories:  memory.NewCategoryRepository(),
		Customers:   memory.NewCustomerRepository(),
		Orders:      memory.NewOrderRepository(products),
		Outbox:      memory.NewOutboxRepository(),
		Timeline:    memory.NewTimelineRepository(),
		Idempotency: memory.NewIdempotencyRepository(),
		Logger:      logger,
	}
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// seedCategory описывает демо-категорию вместе с её товарами.
type seedCategory struct {
	name        string
	description string
	products    []seedProduct
}

type seedProduct struct {
	name       string
	priceMinor int64
	stock      int32
}

var demoCatalog = []seedCategory{
	{
		name:        "Напитки",
		description: "Кофе, чай и прохладительные напитки",
		products: []seedProduct{
			{name: "Эспрессо", priceMinor: 25000, stock: 100},
			{name: "Капучино", priceMinor: 35000, stock: 100},
			{name: "Чай чёрный", priceMinor: 20000, stock: 60},
		},
	},
	{
		name:        "Выпечка",
		description: "Свежая выпечка и десерты",
		products: []seedProduct{
			{name: "Круассан", priceMinor: 18000, stock: 40},
			{name: "Чизкейк", priceMinor: 42000, stock: 12},
		},
	},
	{
		name:        "Бакалея",
		description: "Товары с долгим сроком хранения",
		products: []seedProduct{
			{name: "Кофе зерновой 250г", priceMinor: 95000, stock: 25},
			{name: "Шоколад тёмный", priceMinor: 28000, stock: 8},
		},
	},
}

var demoCustomers = []domain.Customer{
	{Name: "Мария Иванова", Email: "maria@example.com", Phone: "+79001234567"},
	{Name: "Пётр Сидоров", Email: "petr@example.com"},
}

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: POS_POSTGRES_DSN)")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("POS_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("POS_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := store.MigrateUp(ctx, 0); err != nil {
		fail("apply migrations: %v", err)
	}

	created, err := seed(ctx, store)
	if err != nil {
		fail("seed failed: %v", err)
	}
	fmt.Printf("seed ok: categories=%d products=%d customers=%d\n",
		created.categories, created.products, created.customers)
}

type seedCounts struct {
	categories int
	products   int
	customers  int
}

// seed наполняет пустую базу демо-каталогом; уже существующие записи
// (по имени категории или email покупателя) пропускаются.
func seed(ctx context.Context, store *postgres.Store) (seedCounts, error) {
	var counts seedCounts

	categories := postgres.NewCategoryRepository(store)
	products := postgres.NewProductRepository(store)
	customers := postgres.NewCustomerRepository(store)

	existing, err := categories.List(ctx)
	if err != nil {
		return counts, fmt.Errorf("list categories: %w", err)
	}
	existingByName := make(map[string]string, len(existing))
	for _, category := range existing {
		existingByName[category.Name] = category.ID
	}

	for _, entry := range demoCatalog {
		if _, ok := existingByName[entry.name]; ok {
			// Категория уже засеяна — не плодим дубликаты товаров.
			continue
		}
		category := domain.Category{
			ID:          uuid.NewString(),
			Name:        entry.name,
			Description: entry.description,
		}
		if err := categories.Create(ctx, category); err != nil {
			return counts, fmt.Errorf("create category %q: %w", entry.name, err)
		}
		categoryID := category.ID
		counts.categories++

		for _, item := range entry.products {
			product := domain.Product{
				ID:            uuid.NewString(),
				Name:          item.name,
				PriceMinor:    item.priceMinor,
				StockQuantity: item.stock,
				CategoryID:    categoryID,
			}
			if err := products.Create(ctx, product); err != nil {
				return counts, fmt.Errorf("create product %q: %w", item.name, err)
			}
			counts.products++
		}
	}

	for _, customer := range demoCustomers {
		customer.ID = uuid.NewString()
		if err := customers.Create(ctx, customer); err != nil {
			if errors.Is(err, domain.ErrDuplicateEmail) {
				continue
			}
			return counts, fmt.Errorf("create customer %q: %w", customer.Name, err)
		}
		counts.customers++
	}

	return counts, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

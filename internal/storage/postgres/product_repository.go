package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) *productRepository {
	return &productRepository{db: store.DB()}
}

const productColumns = `
	p.id, p.name, p.description, p.price_minor, p.stock_quantity,
	COALESCE(p.category_id::text, ''), COALESCE(c.name, ''),
	p.created_at, p.updated_at`

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, description, price_minor, stock_quantity, category_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,NULLIF($6,'')::uuid,$7,$8)
	`,
		product.ID, product.Name, product.Description, product.PriceMinor,
		product.StockQuantity, product.CategoryID, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    description = $2,
		    price_minor = $3,
		    stock_quantity = $4,
		    category_id = NULLIF($5,'')::uuid,
		    updated_at = $6
		WHERE id = $7
	`,
		product.Name, product.Description, product.PriceMinor,
		product.StockQuantity, product.CategoryID, time.Now().UTC(), product.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var product domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.Description, &product.PriceMinor,
		&product.StockQuantity, &product.CategoryID, &product.CategoryName,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

// Lookup позволяет использовать репозиторий как каталог при сборке заказа.
func (r *productRepository) Lookup(ctx context.Context, productID string) (domain.Product, error) {
	product, err := r.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Product{}, domain.ErrUnknownProduct
		}
		return domain.Product{}, err
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context, categoryID string) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id`
	var (
		rows *sql.Rows
		err  error
	)
	if categoryID != "" {
		rows, err = r.db.QueryContext(ctx, query+`
			WHERE p.category_id = $1
			ORDER BY p.name, p.id
		`, categoryID)
	} else {
		rows, err = r.db.QueryContext(ctx, query+`
			ORDER BY p.name, p.id
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *productRepository) ListLowStock(ctx context.Context, threshold int32) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.stock_quantity <= $1
		ORDER BY p.stock_quantity, p.name
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// AdjustStock атомарно изменяет остаток, не допуская ухода в минус.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int32) (int32, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var next int32
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock_quantity + $2 >= 0
		RETURNING stock_quantity
	`, id, delta).Scan(&next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	// Различаем отсутствующий товар и запрет ухода в минус.
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check product exists: %w", err)
	}
	if !exists {
		return 0, domain.ErrProductNotFound
	}
	return 0, domain.ErrStockBelowZero
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID, &product.Name, &product.Description, &product.PriceMinor,
			&product.StockQuantity, &product.CategoryID, &product.CategoryName,
			&product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

var (
	_ domain.ProductRepository = (*productRepository)(nil)
	_ domain.ProductCatalog    = (*productRepository)(nil)
)

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

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create сохраняет заказ с позициями и списывает остатки одной транзакцией.
// Условие stock_quantity >= qty в UPDATE защищает от гонки между
// проверкой черновика и фиксацией заказа.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, total_minor, order_date)
		VALUES ($1,$2,$3,$4,$5)
	`,
		order.ID, order.CustomerID, string(order.Status), order.TotalMinor, order.OrderDate,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		itemID := item.ID
		if itemID == "" {
			itemID = uuid.NewString()
		}

		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $2,
			    updated_at = NOW()
			WHERE id = $1
			  AND stock_quantity >= $2
		`, item.ProductID, item.Qty)
		if err != nil {
			return fmt.Errorf("decrement stock for %s: %w", item.ProductID, err)
		}

		var affected int64
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists bool
			if scanErr := tx.QueryRowContext(ctx, `
				SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
			`, item.ProductID).Scan(&exists); scanErr != nil {
				err = fmt.Errorf("check product exists: %w", scanErr)
				return err
			}
			if !exists {
				err = domain.ErrUnknownProduct
			} else {
				err = domain.ErrInsufficientStock
			}
			return err
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, qty, price_minor, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			itemID, order.ID, item.ProductID, item.ProductName,
			item.Qty, item.PriceMinor, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

const orderColumns = `
	o.id, o.customer_id, COALESCE(cu.name, ''), o.status, o.total_minor, o.order_date`

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.getOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) List(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN customers cu ON cu.id = o.customer_id`
	args := make([]any, 0, 2)
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" WHERE o.status = $%d", len(args))
	}
	query += " ORDER BY o.order_date DESC, o.id DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}

		items, err := r.loadItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.getOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransitionTo(status) {
		return domain.Order{}, domain.ErrStatusTransition
	}

	// Переход сверяется с состоянием в БД: условие по старому статусу
	// отсекает параллельное обновление.
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2
		WHERE id = $1
		  AND status = $3
	`, id, string(status), string(order.Status))
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrStatusTransition
	}

	order.Status = status
	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

// Cancel переводит pending-заказ в cancelled и возвращает остатки
// на склад в той же транзакции.
func (r *orderRepository) Cancel(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrOrderNotFound
		} else {
			err = fmt.Errorf("lock order for cancel: %w", err)
		}
		return domain.Order{}, err
	}
	if !domain.OrderStatus(status).CanTransitionTo(domain.OrderStatusCancelled) {
		err = domain.ErrStatusTransition
		return domain.Order{}, err
	}

	if domain.OrderStatus(status) == domain.OrderStatusPending {
		if _, err = tx.ExecContext(ctx, `
			UPDATE products p
			SET stock_quantity = p.stock_quantity + i.qty,
			    updated_at = NOW()
			FROM order_items i
			WHERE i.order_id = $1
			  AND i.product_id = p.id
		`, id); err != nil {
			err = fmt.Errorf("restock cancelled order: %w", err)
			return domain.Order{}, err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, id, string(domain.OrderStatusCancelled)); err != nil {
		err = fmt.Errorf("mark order cancelled: %w", err)
		return domain.Order{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit cancel order: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *orderRepository) SalesBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN customers cu ON cu.id = o.customer_id
		WHERE o.order_date >= $1
		  AND o.order_date < $2
		ORDER BY o.order_date, o.id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales rows: %w", err)
	}

	return orders, nil
}

// ProductSalesBetween агрегирует продажи по товарам за период.
// Учитываются только выполненные заказы.
func (r *orderRepository) ProductSalesBetween(ctx context.Context, from, to time.Time, categoryID string) ([]domain.ProductSales, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT i.product_id, MIN(i.product_name), COALESCE(MIN(c.name), ''),
		       SUM(i.qty)::bigint, SUM(i.qty::bigint * i.price_minor)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		LEFT JOIN products p ON p.id = i.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE o.status = 'completed'
		  AND o.order_date >= $1
		  AND o.order_date < $2`
	args := []any{from, to}
	if categoryID != "" {
		args = append(args, categoryID)
		query += fmt.Sprintf(" AND p.category_id = $%d", len(args))
	}
	query += `
		GROUP BY i.product_id
		ORDER BY SUM(i.qty::bigint * i.price_minor) DESC, MIN(i.product_name)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query product sales: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0)
	for rows.Next() {
		var row domain.ProductSales
		if err := rows.Scan(
			&row.ProductID, &row.ProductName, &row.CategoryName,
			&row.QtySold, &row.RevenueMinor,
		); err != nil {
			return nil, fmt.Errorf("scan product sales row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product sales rows: %w", err)
	}

	return result, nil
}

func (r *orderRepository) getOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	var status string

	err := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN customers cu ON cu.id = o.customer_id
		WHERE o.id = $1
	`, id).Scan(
		&order.ID, &order.CustomerID, &order.CustomerName,
		&status, &order.TotalMinor, &order.OrderDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, product_name, qty, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		item := domain.OrderItem{OrderID: orderID}
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.ProductName,
			&item.Qty, &item.PriceMinor, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func scanOrder(rows *sql.Rows) (domain.Order, error) {
	var order domain.Order
	var status string
	if err := rows.Scan(
		&order.ID, &order.CustomerID, &order.CustomerName,
		&status, &order.TotalMinor, &order.OrderDate,
	); err != nil {
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)

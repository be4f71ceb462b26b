package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/service/checkout"
	"github.com/vladislavdragonenkov/retailpos/internal/service/inventory"
	"github.com/vladislavdragonenkov/retailpos/internal/service/orders"
	"github.com/vladislavdragonenkov/retailpos/internal/service/reporting"
)

// Deps собирает зависимости HTTP-слоя.
type Deps struct {
	Products    domain.ProductRepository
	Catalog     domain.ProductCatalog
	Categories  domain.CategoryRepository
	Customers   domain.CustomerRepository
	Orders      *orders.Service
	Inventory   *inventory.Service
	Reporting   *reporting.Service
	Idempotency domain.IdempotencyRepository

	// NewBuilder выдаёт свежий черновик заказа на каждый checkout-запрос.
	NewBuilder func() *checkout.Builder

	Logger *log.Entry
}

// NewRouter собирает HTTP API поверх сервисного слоя.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "rest")
	}

	mux := http.NewServeMux()

	products := newProductHandler(deps.Products, deps.Categories, deps.Inventory, logger)
	mux.HandleFunc("GET /api/products", products.list)
	mux.HandleFunc("POST /api/products", products.create)
	mux.HandleFunc("GET /api/products/low-stock", products.lowStock)
	mux.HandleFunc("GET /api/products/{id}", products.get)
	mux.HandleFunc("PUT /api/products/{id}", products.update)
	mux.HandleFunc("DELETE /api/products/{id}", products.delete)
	mux.HandleFunc("GET /api/categories", products.listCategories)
	mux.HandleFunc("POST /api/categories", products.createCategory)

	customers := newCustomerHandler(deps.Customers, logger)
	mux.HandleFunc("GET /api/customers", customers.list)
	mux.HandleFunc("POST /api/customers", customers.create)
	mux.HandleFunc("GET /api/customers/{id}", customers.get)

	ordersHandler := newOrderHandler(deps.Orders, deps.Catalog, deps.NewBuilder, logger)
	checkoutHandler := http.HandlerFunc(ordersHandler.checkout)
	mux.Handle("POST /api/orders", withIdempotency(deps.Idempotency, logger, checkoutHandler))
	mux.HandleFunc("GET /api/orders", ordersHandler.list)
	mux.HandleFunc("GET /api/orders/{id}", ordersHandler.get)
	mux.HandleFunc("POST /api/orders/{id}/status", ordersHandler.updateStatus)
	mux.HandleFunc("POST /api/orders/{id}/cancel", ordersHandler.cancel)

	inventoryHandler := newInventoryHandler(deps.Inventory, logger)
	mux.HandleFunc("POST /api/inventory/adjustments", inventoryHandler.adjust)

	reports := newReportHandler(deps.Reporting, logger)
	mux.HandleFunc("GET /api/reports/sales", reports.sales)
	mux.HandleFunc("GET /api/reports/product-sales", reports.productSales)
	mux.HandleFunc("GET /api/reports/inventory", reports.inventory)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError переводит доменную ошибку в HTTP-статус.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrStockBelowZero),
		errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrStatusTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownProduct),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrNoCustomerSelected),
		errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidPhone),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrAdjustmentReasonRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

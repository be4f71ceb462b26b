package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/service/checkout"
	"github.com/vladislavdragonenkov/retailpos/internal/service/orders"
)

type orderHandler struct {
	orders     *orders.Service
	catalog    domain.ProductCatalog
	newBuilder func() *checkout.Builder
	logger     *log.Entry
}

func newOrderHandler(service *orders.Service, catalog domain.ProductCatalog, newBuilder func() *checkout.Builder, logger *log.Entry) *orderHandler {
	return &orderHandler{
		orders:     service,
		catalog:    catalog,
		newBuilder: newBuilder,
		logger:     logger,
	}
}

type checkoutItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	// PriceMinor опционален: без него используется цена из каталога.
	PriceMinor *int64 `json:"price_minor,omitempty"`
}

type checkoutPayload struct {
	CustomerID string                `json:"customer_id"`
	Items      []checkoutItemPayload `json:"items"`
}

type orderItemResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	PriceMinor  int64  `json:"price_minor"`
	TotalMinor  int64  `json:"total_minor"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	CustomerID   string              `json:"customer_id"`
	CustomerName string              `json:"customer_name,omitempty"`
	Status       string              `json:"status"`
	TotalMinor   int64               `json:"total_minor"`
	OrderDate    time.Time           `json:"order_date"`
	Items        []orderItemResponse `json:"items,omitempty"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type orderDetailsResponse struct {
	orderResponse
	Timeline []timelineEventResponse `json:"timeline,omitempty"`
}

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		Status:       string(o.Status),
		TotalMinor:   o.TotalMinor,
		OrderDate:    o.OrderDate,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Qty,
			PriceMinor:  item.PriceMinor,
			TotalMinor:  item.LineTotalMinor(),
		})
	}
	return resp
}

// checkout собирает черновик из позиций запроса и фиксирует его.
func (h *orderHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.Items) == 0 {
		writeDomainError(w, domain.ErrEmptyOrder)
		return
	}

	builder := h.newBuilder()
	for _, item := range payload.Items {
		price, err := h.resolvePrice(r, item)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := builder.AddLine(r.Context(), item.ProductID, item.Quantity, price); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	order, err := builder.Commit(r.Context(), payload.CustomerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *orderHandler) resolvePrice(r *http.Request, item checkoutItemPayload) (int64, error) {
	if item.PriceMinor != nil {
		return *item.PriceMinor, nil
	}

	product, err := h.catalog.Lookup(r.Context(), item.ProductID)
	if err != nil {
		return 0, err
	}
	return product.PriceMinor, nil
}

func (h *orderHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	list, err := h.orders.List(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]orderResponse, 0, len(list))
	for _, o := range list {
		// Списки не тянут позиции: они доступны в деталях заказа.
		o.Items = nil
		result = append(result, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *orderHandler) get(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := orderDetailsResponse{orderResponse: toOrderResponse(details.Order)}
	for _, event := range details.Timeline {
		resp.Timeline = append(resp.Timeline, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusPayload struct {
	Status string `json:"status"`
}

func (h *orderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), payload.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) cancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/service/inventory"
)

type productHandler struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	inventory  *inventory.Service
	logger     *log.Entry
}

func newProductHandler(products domain.ProductRepository, categories domain.CategoryRepository, inv *inventory.Service, logger *log.Entry) *productHandler {
	return &productHandler{
		products:   products,
		categories: categories,
		inventory:  inv,
		logger:     logger,
	}
}

type productPayload struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	PriceMinor    int64  `json:"price_minor"`
	StockQuantity int32  `json:"stock_quantity"`
	CategoryID    string `json:"category_id"`
}

type productResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PriceMinor    int64  `json:"price_minor"`
	StockQuantity int32  `json:"stock_quantity"`
	CategoryID    string `json:"category_id,omitempty"`
	CategoryName  string `json:"category_name,omitempty"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		PriceMinor:    p.PriceMinor,
		StockQuantity: p.StockQuantity,
		CategoryID:    p.CategoryID,
		CategoryName:  p.CategoryName,
	}
}

func (h *productHandler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), r.URL.Query().Get("category_id"))
	if err != nil {
		h.logger.WithError(err).Error("failed to list products")
		writeDomainError(w, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *productHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product := domain.Product{
		ID:            uuid.NewString(),
		Name:          payload.Name,
		Description:   payload.Description,
		PriceMinor:    payload.PriceMinor,
		StockQuantity: payload.StockQuantity,
		CategoryID:    payload.CategoryID,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if errs := product.ValidateInvariants(); len(errs) > 0 {
		writeDomainError(w, errs[0])
		return
	}

	if err := h.products.Create(r.Context(), product); err != nil {
		h.logger.WithError(err).Error("failed to create product")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *productHandler) get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product := domain.Product{
		ID:            id,
		Name:          payload.Name,
		Description:   payload.Description,
		PriceMinor:    payload.PriceMinor,
		StockQuantity: payload.StockQuantity,
		CategoryID:    payload.CategoryID,
		UpdatedAt:     time.Now().UTC(),
	}
	if errs := product.ValidateInvariants(); len(errs) > 0 {
		writeDomainError(w, errs[0])
		return
	}

	if err := h.products.Update(r.Context(), product); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *productHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	var threshold int32
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = int32(parsed)
	}

	products, err := h.inventory.LowStock(r.Context(), threshold)
	if err != nil {
		h.logger.WithError(err).Error("failed to list low stock products")
		writeDomainError(w, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, result)
}

type categoryPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *productHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		result = append(result, categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *productHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Name == "" {
		writeDomainError(w, domain.ErrNameRequired)
		return
	}

	category := domain.Category{
		ID:          uuid.NewString(),
		Name:        payload.Name,
		Description: payload.Description,
	}
	if err := h.categories.Create(r.Context(), category); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, categoryResponse{ID: category.ID, Name: category.Name, Description: category.Description})
}

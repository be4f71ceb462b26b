package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

type customerHandler struct {
	customers domain.CustomerRepository
	logger    *log.Entry
}

func newCustomerHandler(customers domain.CustomerRepository, logger *log.Entry) *customerHandler {
	return &customerHandler{customers: customers, logger: logger}
}

type customerPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type customerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:      c.ID,
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
	}
}

func (h *customerHandler) list(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list customers")
		writeDomainError(w, err)
		return
	}

	result := make([]customerResponse, 0, len(customers))
	for _, c := range customers {
		result = append(result, toCustomerResponse(c))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *customerHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload customerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      payload.Name,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Address:   payload.Address,
		CreatedAt: time.Now().UTC(),
	}
	if errs := customer.ValidateInvariants(); len(errs) > 0 {
		writeDomainError(w, errs[0])
		return
	}

	if err := h.customers.Create(r.Context(), customer); err != nil {
		h.logger.WithError(err).Error("failed to create customer")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func (h *customerHandler) get(w http.ResponseWriter, r *http.Request) {
	customer, err := h.customers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

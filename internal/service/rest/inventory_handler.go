package rest

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/service/inventory"
)

type inventoryHandler struct {
	inventory *inventory.Service
	logger    *log.Entry
}

func newInventoryHandler(service *inventory.Service, logger *log.Entry) *inventoryHandler {
	return &inventoryHandler{inventory: service, logger: logger}
}

type adjustmentPayload struct {
	ProductID string `json:"product_id"`
	Delta     int32  `json:"delta"`
	Reason    string `json:"reason"`
}

type adjustmentResponse struct {
	ProductID string `json:"product_id"`
	Delta     int32  `json:"delta"`
	NewStock  int32  `json:"new_stock"`
	Reason    string `json:"reason"`
	LowStock  bool   `json:"low_stock"`
}

func (h *inventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var payload adjustmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing product_id")
		return
	}

	adjustment, err := h.inventory.Adjust(r.Context(), payload.ProductID, payload.Delta, payload.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, adjustmentResponse{
		ProductID: adjustment.ProductID,
		Delta:     adjustment.Delta,
		NewStock:  adjustment.NewStock,
		Reason:    adjustment.Reason,
		LowStock:  adjustment.LowStock,
	})
}

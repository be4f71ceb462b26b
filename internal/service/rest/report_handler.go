package rest

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/service/reporting"
)

type reportHandler struct {
	reporting *reporting.Service
	logger    *log.Entry
}

func newReportHandler(service *reporting.Service, logger *log.Entry) *reportHandler {
	return &reportHandler{reporting: service, logger: logger}
}

// parseReportRange читает from/to из query в формате RFC 3339 или YYYY-MM-DD.
func parseReportRange(r *http.Request) (time.Time, time.Time, bool) {
	from, okFrom := parseReportDate(r.URL.Query().Get("from"))
	to, okTo := parseReportDate(r.URL.Query().Get("to"))
	return from, to, okFrom && okTo
}

func parseReportDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

type salesSummaryResponse struct {
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	OrdersTotal     int       `json:"orders_total"`
	OrdersCompleted int       `json:"orders_completed"`
	OrdersCancelled int       `json:"orders_cancelled"`
	RevenueMinor    int64     `json:"revenue_minor"`
	AverageMinor    int64     `json:"average_minor"`
}

func (h *reportHandler) sales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseReportRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "from and to query parameters are required (RFC 3339 or YYYY-MM-DD)")
		return
	}

	summary, err := h.reporting.Sales(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, salesSummaryResponse{
		From:            summary.From,
		To:              summary.To,
		OrdersTotal:     summary.OrdersTotal,
		OrdersCompleted: summary.OrdersCompleted,
		OrdersCancelled: summary.OrdersCancelled,
		RevenueMinor:    summary.RevenueMinor,
		AverageMinor:    summary.AverageMinor,
	})
}

type productSalesResponse struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	CategoryName string `json:"category_name,omitempty"`
	QtySold      int64  `json:"qty_sold"`
	RevenueMinor int64  `json:"revenue_minor"`
}

func (h *reportHandler) productSales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseReportRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "from and to query parameters are required (RFC 3339 or YYYY-MM-DD)")
		return
	}

	rows, err := h.reporting.ProductSales(r.Context(), from, to, r.URL.Query().Get("category_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result := make([]productSalesResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, productSalesResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			CategoryName: row.CategoryName,
			QtySold:      row.QtySold,
			RevenueMinor: row.RevenueMinor,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

type inventoryLineResponse struct {
	Product        productResponse `json:"product"`
	ValuationMinor int64           `json:"valuation_minor"`
	LowStock       bool            `json:"low_stock"`
}

type inventoryReportResponse struct {
	Lines               []inventoryLineResponse `json:"lines"`
	TotalUnits          int64                   `json:"total_units"`
	TotalValuationMinor int64                   `json:"total_valuation_minor"`
	LowStockCount       int                     `json:"low_stock_count"`
}

func (h *reportHandler) inventory(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporting.Inventory(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := inventoryReportResponse{
		TotalUnits:          report.TotalUnits,
		TotalValuationMinor: report.TotalValuationMinor,
		LowStockCount:       report.LowStockCount,
	}
	for _, line := range report.Lines {
		resp.Lines = append(resp.Lines, inventoryLineResponse{
			Product:        toProductResponse(line.Product),
			ValuationMinor: line.ValuationMinor,
			LowStock:       line.LowStock,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

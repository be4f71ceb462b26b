package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

func TestProductValidateInvariants(t *testing.T) {
	cases := []struct {
		name     string
		product  domain.Product
		wantErrs int
	}{
		{
			name: "valid product",
			product: domain.Product{
				Name:          "Espresso Beans",
				PriceMinor:    1250,
				StockQuantity: 40,
			},
			wantErrs: 0,
		},
		{
			name: "free product with zero stock",
			product: domain.Product{
				Name: "Sample Sachet",
			},
			wantErrs: 0,
		},
		{
			name: "missing name",
			product: domain.Product{
				PriceMinor: 100,
			},
			wantErrs: 1,
		},
		{
			name: "negative price",
			product: domain.Product{
				Name:       "Broken",
				PriceMinor: -1,
			},
			wantErrs: 1,
		},
		{
			name: "negative stock",
			product: domain.Product{
				Name:          "Broken",
				StockQuantity: -3,
			},
			wantErrs: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := tc.product.ValidateInvariants()
			if len(errs) != tc.wantErrs {
				t.Fatalf("expected %d validation errors, got %d: %v", tc.wantErrs, len(errs), errs)
			}
		})
	}
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is an immutable fact: this brand product was priced at X
// at this supermarket at this time. SourcePurchaseID is nil for manually
// entered observations.
type PriceObservation struct {
	ID               int64            `json:"id"`
	OwnerID          int64            `json:"owner_id"`
	BrandProductID   int64            `json:"brand_product_id"`
	SupermarketID    int64            `json:"supermarket_id"`
	CurrencyCode     string           `json:"currency_code"`
	UnitPrice        *decimal.Decimal `json:"unit_price"`
	ObservedAt       time.Time        `json:"observed_at"`
	SourcePurchaseID *int64           `json:"source_purchase_id"`
	CreatedAt        time.Time        `json:"created_at"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseDraft     PurchaseStatus = "draft"
	PurchaseCompleted PurchaseStatus = "completed"
)

// Purchase is a single shopping trip. It is created in draft from one or
// more templates and transitions once, irreversibly, to completed.
type Purchase struct {
	ID                  int64            `json:"id"`
	OwnerID             int64            `json:"owner_id"`
	SupermarketID       *int64           `json:"supermarket_id"`
	Date                time.Time        `json:"date"`
	CurrencyCode        string           `json:"currency_code"`
	SelectedTemplateIDs []int64          `json:"selected_template_ids"`
	Status              PurchaseStatus   `json:"status"`
	TotalPaid           *decimal.Decimal `json:"total_paid"`
	Subtotal            *decimal.Decimal `json:"subtotal"`
	Discount            *decimal.Decimal `json:"discount"`
	Tax                 *decimal.Decimal `json:"tax"`
	FinishedAt          *time.Time       `json:"finished_at"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// PurchaseLine belongs to exactly one purchase. While the parent purchase is
// completed, every checked line carries a non-nil unit price.
type PurchaseLine struct {
	ID                 int64            `json:"id"`
	PurchaseID         int64            `json:"purchase_id"`
	GenericItemID      int64            `json:"generic_item_id"`
	BrandProductID     *int64           `json:"brand_product_id"`
	Qty                *decimal.Decimal `json:"qty"`
	UnitID             *int64           `json:"unit_id"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	Checked            bool             `json:"checked"`
	LineAmountOverride *decimal.Decimal `json:"line_amount_override"`
	Note               string           `json:"note"`
	CreatedAt          time.Time        `json:"created_at"`
}

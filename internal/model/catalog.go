package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenericItem is a category-level product ("Milk") independent of any brand.
// GlobalPrice is a manually maintained reference price used as the last
// resort when no purchase history or observation exists.
type GenericItem struct {
	ID            int64            `json:"id"`
	OwnerID       int64            `json:"owner_id"`
	CanonicalName string           `json:"canonical_name"`
	Aliases       []string         `json:"aliases"`
	GlobalPrice   *decimal.Decimal `json:"global_price"`
	CurrencyCode  *string          `json:"currency_code"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// BrandProduct is one purchasable variant of a generic item.
type BrandProduct struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	GenericItemID int64     `json:"generic_item_id"`
	Brand         string    `json:"brand"`
	Presentation  string    `json:"presentation"`
	CreatedAt     time.Time `json:"created_at"`
}

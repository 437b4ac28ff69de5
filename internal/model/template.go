package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Template struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateItem is one entry of a template. A template never holds two items
// for the same generic item.
type TemplateItem struct {
	ID            int64            `json:"id"`
	TemplateID    int64            `json:"template_id"`
	GenericItemID int64            `json:"generic_item_id"`
	DefaultQty    *decimal.Decimal `json:"default_qty"`
	DefaultUnitID *int64           `json:"default_unit_id"`
	SortOrder     int              `json:"sort_order"`
}

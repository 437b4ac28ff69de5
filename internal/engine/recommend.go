package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Recommendation is a best-guess brand and unit price for one generic item.
// Either field may be nil; absent data is left for manual entry.
type Recommendation struct {
	BrandProductID *int64           `json:"brand_product_id"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
}

// Recommend resolves a brand and unit price for a generic item through a
// three-tier waterfall:
//
//  1. the brand from the owner's most recent completed purchase at this
//     supermarket that contained the item;
//  2. the latest price observation for that brand at this supermarket;
//  3. the generic item's reference price.
//
// Tiers 1 and 2 are supermarket-scoped; with a nil supermarket only tier 3
// applies. Absence of data never fails — only repository I/O errors do.
func (e *Engine) Recommend(ownerID int64, supermarketID *int64, genericItemID int64) (Recommendation, error) {
	var rec Recommendation

	if supermarketID != nil {
		line, err := e.purchases.LatestCompletedLine(ownerID, *supermarketID, genericItemID)
		if err != nil {
			return rec, fmt.Errorf("history scan for item %d: %w", genericItemID, err)
		}
		if line != nil {
			rec.BrandProductID = line.BrandProductID
		}

		if rec.BrandProductID != nil {
			obs, err := e.observations.LatestForProductAtSupermarket(ownerID, *rec.BrandProductID, *supermarketID)
			if err != nil {
				return rec, fmt.Errorf("observation lookup for product %d: %w", *rec.BrandProductID, err)
			}
			if obs != nil && obs.UnitPrice != nil {
				price := *obs.UnitPrice
				rec.UnitPrice = &price
				return rec, nil
			}
		}
	}

	item, err := e.catalog.GetGenericItem(ownerID, genericItemID)
	if err != nil {
		return rec, fmt.Errorf("reference price for item %d: %w", genericItemID, err)
	}
	if item != nil && item.GlobalPrice != nil {
		price := *item.GlobalPrice
		rec.UnitPrice = &price
	}

	return rec, nil
}

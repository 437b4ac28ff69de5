package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CandidateLine is one deduplicated entry of a consolidated shopping list,
// before brand and price resolution.
type CandidateLine struct {
	GenericItemID int64
	Qty           *decimal.Decimal
	UnitID        *int64
}

// Consolidate merges the items of the given templates into one deduplicated
// candidate list. Template order is the caller's priority order: the first
// template that introduces a generic item fixes its quantity and unit, and
// later templates containing the same item are skipped for it. Quantities
// are never summed. Output order is first-seen order across templates.
//
// An unknown or foreign template id fails the whole operation; no partial
// result is returned.
func (e *Engine) Consolidate(ownerID int64, templateIDs []int64) ([]CandidateLine, error) {
	if len(templateIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one template required", ErrValidation)
	}

	seen := make(map[int64]struct{})
	var candidates []CandidateLine

	for _, templateID := range templateIDs {
		tpl, err := e.templates.GetByID(ownerID, templateID)
		if err != nil {
			return nil, fmt.Errorf("load template %d: %w", templateID, err)
		}
		if tpl == nil {
			return nil, fmt.Errorf("template %d: %w", templateID, ErrNotFound)
		}

		items, err := e.templates.ListItems(templateID)
		if err != nil {
			return nil, fmt.Errorf("load items of template %d: %w", templateID, err)
		}

		for _, item := range items {
			if _, ok := seen[item.GenericItemID]; ok {
				continue
			}
			seen[item.GenericItemID] = struct{}{}
			candidates = append(candidates, CandidateLine{
				GenericItemID: item.GenericItemID,
				Qty:           item.DefaultQty,
				UnitID:        item.DefaultUnitID,
			})
		}
	}

	return candidates, nil
}

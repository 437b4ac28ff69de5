package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/model"
)

// CreatePurchase consolidates the given templates, resolves a brand and
// price recommendation per candidate line, and persists the draft purchase
// with its lines. All lines start unchecked.
func (e *Engine) CreatePurchase(ownerID int64, supermarketID *int64, date time.Time, currencyCode string, templateIDs []int64) (*model.Purchase, error) {
	candidates, err := e.Consolidate(ownerID, templateIDs)
	if err != nil {
		return nil, err
	}

	// Validate every referenced generic item before any write.
	for _, c := range candidates {
		item, err := e.catalog.GetGenericItem(ownerID, c.GenericItemID)
		if err != nil {
			return nil, fmt.Errorf("load generic item %d: %w", c.GenericItemID, err)
		}
		if item == nil {
			return nil, fmt.Errorf("%w: template references unknown generic item %d", ErrValidation, c.GenericItemID)
		}
	}

	recs := make([]Recommendation, len(candidates))
	for i, c := range candidates {
		rec, err := e.Recommend(ownerID, supermarketID, c.GenericItemID)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}

	purchase, err := e.purchases.Create(ownerID, supermarketID, date, currencyCode, templateIDs)
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	lines := make([]model.PurchaseLine, len(candidates))
	for i, c := range candidates {
		lines[i] = model.PurchaseLine{
			PurchaseID:     purchase.ID,
			GenericItemID:  c.GenericItemID,
			BrandProductID: recs[i].BrandProductID,
			Qty:            c.Qty,
			UnitID:         c.UnitID,
			UnitPrice:      recs[i].UnitPrice,
		}
	}
	if err := e.purchases.CreateLines(lines); err != nil {
		return nil, fmt.Errorf("create purchase lines: %w", err)
	}

	e.logger.Info("purchase created", "purchase_id", purchase.ID, "owner_id", ownerID, "lines", len(lines))
	return purchase, nil
}

// GetPurchase returns the purchase header and its lines in stable insertion
// order.
func (e *Engine) GetPurchase(ownerID, purchaseID int64) (*model.Purchase, []model.PurchaseLine, error) {
	purchase, err := e.purchases.GetByID(ownerID, purchaseID)
	if err != nil {
		return nil, nil, err
	}
	if purchase == nil {
		return nil, nil, fmt.Errorf("purchase %d: %w", purchaseID, ErrNotFound)
	}

	lines, err := e.purchases.ListLines(purchaseID)
	if err != nil {
		return nil, nil, err
	}
	return purchase, lines, nil
}

// ListPurchases returns the owner's purchases, most recent first.
func (e *Engine) ListPurchases(ownerID int64) ([]model.Purchase, error) {
	return e.purchases.ListByOwner(ownerID)
}

// LineUpdate is a partial update of one purchase line. Nil fields are left
// untouched.
type LineUpdate struct {
	BrandProductID     *int64
	Qty                *decimal.Decimal
	UnitID             *int64
	UnitPrice          *decimal.Decimal
	Checked            *bool
	LineAmountOverride *decimal.Decimal
	Note               *string
}

// UpdateLine applies a partial update to a line. Ownership is checked
// through the parent purchase; lines of a completed purchase are immutable.
func (e *Engine) UpdateLine(ownerID, lineID int64, upd LineUpdate) (*model.PurchaseLine, error) {
	line, purchase, err := e.authorizeLine(ownerID, lineID)
	if err != nil {
		return nil, err
	}
	if purchase.Status == model.PurchaseCompleted {
		return nil, fmt.Errorf("purchase %d is completed: %w", purchase.ID, ErrInvalidState)
	}

	if upd.BrandProductID != nil {
		line.BrandProductID = upd.BrandProductID
	}
	if upd.Qty != nil {
		line.Qty = upd.Qty
	}
	if upd.UnitID != nil {
		line.UnitID = upd.UnitID
	}
	if upd.UnitPrice != nil {
		line.UnitPrice = upd.UnitPrice
	}
	if upd.Checked != nil {
		line.Checked = *upd.Checked
	}
	if upd.LineAmountOverride != nil {
		line.LineAmountOverride = upd.LineAmountOverride
	}
	if upd.Note != nil {
		line.Note = *upd.Note
	}

	updated, err := e.purchases.UpdateLine(*line)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddLine appends an ad hoc line to a draft purchase.
func (e *Engine) AddLine(ownerID, purchaseID int64, line model.PurchaseLine) (*model.PurchaseLine, error) {
	purchase, err := e.purchases.GetByID(ownerID, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, fmt.Errorf("purchase %d: %w", purchaseID, ErrNotFound)
	}
	if purchase.Status == model.PurchaseCompleted {
		return nil, fmt.Errorf("purchase %d is completed: %w", purchaseID, ErrInvalidState)
	}

	item, err := e.catalog.GetGenericItem(ownerID, line.GenericItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: unknown generic item %d", ErrValidation, line.GenericItemID)
	}

	line.PurchaseID = purchaseID
	return e.purchases.CreateLine(line)
}

// RemoveLine deletes a line from a draft purchase.
func (e *Engine) RemoveLine(ownerID, lineID int64) error {
	_, purchase, err := e.authorizeLine(ownerID, lineID)
	if err != nil {
		return err
	}
	if purchase.Status == model.PurchaseCompleted {
		return fmt.Errorf("purchase %d is completed: %w", purchase.ID, ErrInvalidState)
	}
	return e.purchases.DeleteLine(lineID)
}

// FinishPurchase closes a draft purchase. Every checked line must carry a
// unit price; otherwise the purchase is left untouched and the offending
// line ids are reported. On success the status becomes completed, totals are
// stored, and price observations are emitted from the checked lines.
func (e *Engine) FinishPurchase(ownerID, purchaseID int64, totalPaid decimal.Decimal, subtotal, discount, tax *decimal.Decimal, finishedAt *time.Time) (*model.Purchase, error) {
	purchase, err := e.purchases.GetByID(ownerID, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, fmt.Errorf("purchase %d: %w", purchaseID, ErrNotFound)
	}
	if purchase.Status == model.PurchaseCompleted {
		return nil, fmt.Errorf("purchase %d already completed: %w", purchaseID, ErrInvalidState)
	}

	lines, err := e.purchases.ListLines(purchaseID)
	if err != nil {
		return nil, err
	}

	var missing []int64
	for _, line := range lines {
		if line.Checked && line.UnitPrice == nil {
			missing = append(missing, line.ID)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingPriceError{LineIDs: missing}
	}

	at := time.Now().UTC()
	if finishedAt != nil {
		at = *finishedAt
	}

	won, err := e.purchases.Complete(ownerID, purchaseID, totalPaid, subtotal, discount, tax, at)
	if err != nil {
		return nil, err
	}
	if !won {
		// Someone else completed or deleted the purchase between our read
		// and the conditional update.
		return nil, fmt.Errorf("purchase %d already completed: %w", purchaseID, ErrInvalidState)
	}

	completed, err := e.purchases.GetByID(ownerID, purchaseID)
	if err != nil {
		return nil, err
	}

	e.emitObservations(completed, lines, at)

	e.logger.Info("purchase completed", "purchase_id", purchaseID, "owner_id", ownerID)
	return completed, nil
}

// DeletePurchase soft-deletes the header. Lines stay in place but become
// unreachable through every read path.
func (e *Engine) DeletePurchase(ownerID, purchaseID int64) error {
	ok, err := e.purchases.SoftDelete(ownerID, purchaseID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("purchase %d: %w", purchaseID, ErrNotFound)
	}
	return nil
}

// authorizeLine resolves a line and its parent purchase, verifying the
// parent belongs to the owner.
func (e *Engine) authorizeLine(ownerID, lineID int64) (*model.PurchaseLine, *model.Purchase, error) {
	line, err := e.purchases.GetLine(lineID)
	if err != nil {
		return nil, nil, err
	}
	if line == nil {
		return nil, nil, fmt.Errorf("line %d: %w", lineID, ErrNotFound)
	}

	purchase, err := e.purchases.GetByID(ownerID, line.PurchaseID)
	if err != nil {
		return nil, nil, err
	}
	if purchase == nil {
		return nil, nil, fmt.Errorf("line %d: %w", lineID, ErrNotFound)
	}
	return line, purchase, nil
}

// emitObservations records one price observation per checked, branded,
// priced line of a just-completed purchase. Failures are logged and never
// revert the completed status; a purchase without a supermarket emits
// nothing because observations are supermarket-scoped facts.
func (e *Engine) emitObservations(purchase *model.Purchase, lines []model.PurchaseLine, observedAt time.Time) {
	if purchase.SupermarketID == nil {
		e.logger.Debug("no supermarket on purchase, skipping observation emission", "purchase_id", purchase.ID)
		return
	}

	for _, line := range lines {
		if !line.Checked || line.BrandProductID == nil || line.UnitPrice == nil {
			continue
		}
		_, err := e.observations.Create(
			purchase.OwnerID, *line.BrandProductID, *purchase.SupermarketID,
			purchase.CurrencyCode, line.UnitPrice, observedAt, &purchase.ID,
		)
		if err != nil {
			e.logger.Error("emit observation", "purchase_id", purchase.ID, "line_id", line.ID, "error", err)
		}
	}
}

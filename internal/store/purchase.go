package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/model"
)

// PurchaseStore holds purchase headers and their lines. Soft-deleted
// purchases are filtered here, uniformly, for every read — callers never see
// the flag.
type PurchaseStore struct {
	db *sql.DB
}

func NewPurchaseStore(db *sql.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

// --- Header methods ---

func scanPurchase(scanner interface{ Scan(...any) error }) (*model.Purchase, error) {
	var p model.Purchase
	var supermarketID sql.NullInt64
	var templateIDs string
	var totalPaid, subtotal, discount, tax decimal.NullDecimal
	var finishedAt sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.OwnerID, &supermarketID, &p.Date, &p.CurrencyCode,
		&templateIDs, &p.Status, &totalPaid, &subtotal, &discount, &tax,
		&finishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.SupermarketID = int64Ptr(supermarketID)
	p.SelectedTemplateIDs = unmarshalIDs(templateIDs)
	p.TotalPaid = decimalPtr(totalPaid)
	p.Subtotal = decimalPtr(subtotal)
	p.Discount = decimalPtr(discount)
	p.Tax = decimalPtr(tax)
	p.FinishedAt = timePtr(finishedAt)
	return &p, nil
}

const purchaseCols = `id, owner_id, supermarket_id, purchase_date, currency_code, selected_template_ids, status, total_paid, subtotal, discount, tax, finished_at, created_at, updated_at`

func (s *PurchaseStore) Create(ownerID int64, supermarketID *int64, date time.Time, currencyCode string, templateIDs []int64) (*model.Purchase, error) {
	result, err := s.db.Exec(
		`INSERT INTO purchases (owner_id, supermarket_id, purchase_date, currency_code, selected_template_ids) VALUES (?, ?, ?, ?, ?)`,
		ownerID, nullInt64(supermarketID), date, currencyCode, marshalIDs(templateIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ownerID, id)
}

func (s *PurchaseStore) GetByID(ownerID, id int64) (*model.Purchase, error) {
	row := s.db.QueryRow(
		`SELECT `+purchaseCols+` FROM purchases WHERE id = ? AND owner_id = ? AND is_deleted = 0`,
		id, ownerID,
	)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

// ListByOwner returns the owner's purchases, most recent date first.
func (s *PurchaseStore) ListByOwner(ownerID int64) ([]model.Purchase, error) {
	rows, err := s.db.Query(
		`SELECT `+purchaseCols+` FROM purchases WHERE owner_id = ? AND is_deleted = 0 ORDER BY purchase_date DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// Complete transitions a draft purchase to completed and stores the totals.
// The UPDATE is conditioned on status = 'draft' so a lost race shows up as
// zero rows affected; the caller treats false as an invalid-state condition.
func (s *PurchaseStore) Complete(ownerID, id int64, totalPaid decimal.Decimal, subtotal, discount, tax *decimal.Decimal, finishedAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE purchases
		 SET status = 'completed', total_paid = ?, subtotal = ?, discount = ?, tax = ?, finished_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ? AND status = 'draft' AND is_deleted = 0`,
		decimal.NullDecimal{Decimal: totalPaid, Valid: true}, nullDecimal(subtotal), nullDecimal(discount), nullDecimal(tax), finishedAt,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("complete purchase: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return count > 0, nil
}

// SoftDelete marks the header deleted. Lines stay in place; every read path
// filters on the header flag so they become unreachable.
func (s *PurchaseStore) SoftDelete(ownerID, id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE purchases SET is_deleted = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND owner_id = ? AND is_deleted = 0`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("soft delete purchase: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return count > 0, nil
}

// --- Line methods ---

func scanLine(scanner interface{ Scan(...any) error }) (*model.PurchaseLine, error) {
	var line model.PurchaseLine
	var brandProductID, unitID sql.NullInt64
	var qty, unitPrice, override decimal.NullDecimal
	var checked int

	err := scanner.Scan(
		&line.ID, &line.PurchaseID, &line.GenericItemID, &brandProductID,
		&qty, &unitID, &unitPrice, &checked, &override, &line.Note, &line.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	line.BrandProductID = int64Ptr(brandProductID)
	line.Qty = decimalPtr(qty)
	line.UnitID = int64Ptr(unitID)
	line.UnitPrice = decimalPtr(unitPrice)
	line.Checked = checked != 0
	line.LineAmountOverride = decimalPtr(override)
	return &line, nil
}

const lineCols = `id, purchase_id, generic_item_id, brand_product_id, qty, unit_id, unit_price, checked, line_amount_override, note, created_at`

func (s *PurchaseStore) CreateLine(line model.PurchaseLine) (*model.PurchaseLine, error) {
	result, err := s.db.Exec(
		`INSERT INTO purchase_lines (purchase_id, generic_item_id, brand_product_id, qty, unit_id, unit_price, checked, line_amount_override, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line.PurchaseID, line.GenericItemID, nullInt64(line.BrandProductID),
		nullDecimal(line.Qty), nullInt64(line.UnitID), nullDecimal(line.UnitPrice),
		boolToInt(line.Checked), nullDecimal(line.LineAmountOverride), line.Note,
	)
	if err != nil {
		return nil, fmt.Errorf("insert line: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetLine(id)
}

// CreateLines inserts a batch of lines in one transaction so a half-created
// purchase never becomes visible.
func (s *PurchaseStore) CreateLines(lines []model.PurchaseLine) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO purchase_lines (purchase_id, generic_item_id, brand_product_id, qty, unit_id, unit_price, checked, line_amount_override, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, line := range lines {
		_, err := stmt.Exec(
			line.PurchaseID, line.GenericItemID, nullInt64(line.BrandProductID),
			nullDecimal(line.Qty), nullInt64(line.UnitID), nullDecimal(line.UnitPrice),
			boolToInt(line.Checked), nullDecimal(line.LineAmountOverride), line.Note,
		)
		if err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PurchaseStore) GetLine(id int64) (*model.PurchaseLine, error) {
	row := s.db.QueryRow(`SELECT `+lineCols+` FROM purchase_lines WHERE id = ?`, id)
	line, err := scanLine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get line: %w", err)
	}
	return line, nil
}

// ListLines returns a purchase's lines in insertion order.
func (s *PurchaseStore) ListLines(purchaseID int64) ([]model.PurchaseLine, error) {
	rows, err := s.db.Query(
		`SELECT `+lineCols+` FROM purchase_lines WHERE purchase_id = ? ORDER BY id ASC`,
		purchaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	var lines []model.PurchaseLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

func (s *PurchaseStore) UpdateLine(line model.PurchaseLine) (*model.PurchaseLine, error) {
	_, err := s.db.Exec(
		`UPDATE purchase_lines
		 SET brand_product_id = ?, qty = ?, unit_id = ?, unit_price = ?, checked = ?, line_amount_override = ?, note = ?
		 WHERE id = ?`,
		nullInt64(line.BrandProductID), nullDecimal(line.Qty), nullInt64(line.UnitID),
		nullDecimal(line.UnitPrice), boolToInt(line.Checked), nullDecimal(line.LineAmountOverride), line.Note,
		line.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update line: %w", err)
	}
	return s.GetLine(line.ID)
}

func (s *PurchaseStore) DeleteLine(id int64) error {
	_, err := s.db.Exec(`DELETE FROM purchase_lines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	return nil
}

// LatestCompletedLine returns the line for a generic item from the owner's
// most recent completed purchase at the given supermarket, or nil when no
// such purchase exists. Descending-date iteration is a contract here, not an
// accident: the recommendation waterfall depends on it.
func (s *PurchaseStore) LatestCompletedLine(ownerID, supermarketID, genericItemID int64) (*model.PurchaseLine, error) {
	row := s.db.QueryRow(
		`SELECT pl.id, pl.purchase_id, pl.generic_item_id, pl.brand_product_id, pl.qty, pl.unit_id, pl.unit_price, pl.checked, pl.line_amount_override, pl.note, pl.created_at
		 FROM purchase_lines pl
		 JOIN purchases p ON p.id = pl.purchase_id
		 WHERE p.owner_id = ? AND p.supermarket_id = ? AND p.status = 'completed' AND p.is_deleted = 0 AND pl.generic_item_id = ?
		 ORDER BY p.purchase_date DESC, p.id DESC, pl.id ASC
		 LIMIT 1`,
		ownerID, supermarketID, genericItemID,
	)
	line, err := scanLine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed line: %w", err)
	}
	return line, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

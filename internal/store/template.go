package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/model"
)

// TemplateStore holds reusable shopping-list templates and their ordered
// items.
type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.Template, error) {
	var t model.Template
	err := scanner.Scan(&t.ID, &t.OwnerID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const templateCols = `id, owner_id, name, created_at, updated_at`

func (s *TemplateStore) Create(ownerID int64, name string) (*model.Template, error) {
	result, err := s.db.Exec(`INSERT INTO templates (owner_id, name) VALUES (?, ?)`, ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ownerID, id)
}

func (s *TemplateStore) GetByID(ownerID, id int64) (*model.Template, error) {
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM templates WHERE id = ? AND owner_id = ?`, id, ownerID)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) ListByOwner(ownerID int64) ([]model.Template, error) {
	rows, err := s.db.Query(`SELECT `+templateCols+` FROM templates WHERE owner_id = ? ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *TemplateStore) Rename(ownerID, id int64, name string) (*model.Template, error) {
	_, err := s.db.Exec(
		`UPDATE templates SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND owner_id = ?`,
		name, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("rename template: %w", err)
	}
	return s.GetByID(ownerID, id)
}

func (s *TemplateStore) Delete(ownerID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM templates WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// --- Item methods ---

func scanTemplateItem(scanner interface{ Scan(...any) error }) (*model.TemplateItem, error) {
	var item model.TemplateItem
	var qty decimal.NullDecimal
	var unitID sql.NullInt64

	err := scanner.Scan(&item.ID, &item.TemplateID, &item.GenericItemID, &qty, &unitID, &item.SortOrder)
	if err != nil {
		return nil, err
	}

	item.DefaultQty = decimalPtr(qty)
	item.DefaultUnitID = int64Ptr(unitID)
	return &item, nil
}

const templateItemCols = `id, template_id, generic_item_id, default_qty, default_unit_id, sort_order`

func (s *TemplateStore) AddItem(templateID, genericItemID int64, defaultQty *decimal.Decimal, defaultUnitID *int64, sortOrder int) (*model.TemplateItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO template_items (template_id, generic_item_id, default_qty, default_unit_id, sort_order) VALUES (?, ?, ?, ?, ?)`,
		templateID, genericItemID, nullDecimal(defaultQty), nullInt64(defaultUnitID), sortOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("insert template item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(id)
}

func (s *TemplateStore) GetItem(id int64) (*model.TemplateItem, error) {
	row := s.db.QueryRow(`SELECT `+templateItemCols+` FROM template_items WHERE id = ?`, id)
	item, err := scanTemplateItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template item: %w", err)
	}
	return item, nil
}

// ListItems returns a template's items in sort_order, id ascending. The
// consolidation engine relies on this ordering being stable.
func (s *TemplateStore) ListItems(templateID int64) ([]model.TemplateItem, error) {
	rows, err := s.db.Query(
		`SELECT `+templateItemCols+` FROM template_items WHERE template_id = ? ORDER BY sort_order ASC, id ASC`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("list template items: %w", err)
	}
	defer rows.Close()

	var items []model.TemplateItem
	for rows.Next() {
		item, err := scanTemplateItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *TemplateStore) UpdateItem(id int64, defaultQty *decimal.Decimal, defaultUnitID *int64, sortOrder int) (*model.TemplateItem, error) {
	_, err := s.db.Exec(
		`UPDATE template_items SET default_qty = ?, default_unit_id = ?, sort_order = ? WHERE id = ?`,
		nullDecimal(defaultQty), nullInt64(defaultUnitID), sortOrder, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update template item: %w", err)
	}
	return s.GetItem(id)
}

func (s *TemplateStore) RemoveItem(id int64) error {
	_, err := s.db.Exec(`DELETE FROM template_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove template item: %w", err)
	}
	return nil
}

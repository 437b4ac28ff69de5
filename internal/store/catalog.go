package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/model"
)

// CatalogStore holds generic items and their brand products.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// --- Generic item methods ---

func scanGenericItem(scanner interface{ Scan(...any) error }) (*model.GenericItem, error) {
	var item model.GenericItem
	var aliases string
	var globalPrice decimal.NullDecimal
	var currency sql.NullString

	err := scanner.Scan(
		&item.ID, &item.OwnerID, &item.CanonicalName, &aliases,
		&globalPrice, &currency, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Aliases = unmarshalStrings(aliases)
	item.GlobalPrice = decimalPtr(globalPrice)
	item.CurrencyCode = stringPtr(currency)
	return &item, nil
}

const genericItemCols = `id, owner_id, canonical_name, aliases, global_price, currency_code, created_at, updated_at`

func (s *CatalogStore) CreateGenericItem(ownerID int64, canonicalName string, aliases []string, globalPrice *decimal.Decimal, currencyCode *string) (*model.GenericItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO generic_items (owner_id, canonical_name, aliases, global_price, currency_code) VALUES (?, ?, ?, ?, ?)`,
		ownerID, canonicalName, marshalStrings(aliases), nullDecimal(globalPrice), nullString(currencyCode),
	)
	if err != nil {
		return nil, fmt.Errorf("insert generic item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetGenericItem(ownerID, id)
}

func (s *CatalogStore) GetGenericItem(ownerID, id int64) (*model.GenericItem, error) {
	row := s.db.QueryRow(`SELECT `+genericItemCols+` FROM generic_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	item, err := scanGenericItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get generic item: %w", err)
	}
	return item, nil
}

func (s *CatalogStore) ListGenericItems(ownerID int64) ([]model.GenericItem, error) {
	rows, err := s.db.Query(`SELECT `+genericItemCols+` FROM generic_items WHERE owner_id = ? ORDER BY canonical_name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list generic items: %w", err)
	}
	defer rows.Close()

	var items []model.GenericItem
	for rows.Next() {
		item, err := scanGenericItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generic item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *CatalogStore) UpdateGenericItem(ownerID, id int64, canonicalName string, aliases []string, globalPrice *decimal.Decimal, currencyCode *string) (*model.GenericItem, error) {
	_, err := s.db.Exec(
		`UPDATE generic_items SET canonical_name = ?, aliases = ?, global_price = ?, currency_code = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND owner_id = ?`,
		canonicalName, marshalStrings(aliases), nullDecimal(globalPrice), nullString(currencyCode), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update generic item: %w", err)
	}
	return s.GetGenericItem(ownerID, id)
}

func (s *CatalogStore) DeleteGenericItem(ownerID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM generic_items WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete generic item: %w", err)
	}
	return nil
}

// --- Brand product methods ---

func scanBrandProduct(scanner interface{ Scan(...any) error }) (*model.BrandProduct, error) {
	var p model.BrandProduct
	err := scanner.Scan(&p.ID, &p.OwnerID, &p.GenericItemID, &p.Brand, &p.Presentation, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const brandProductCols = `id, owner_id, generic_item_id, brand, presentation, created_at`

func (s *CatalogStore) CreateBrandProduct(ownerID, genericItemID int64, brand, presentation string) (*model.BrandProduct, error) {
	result, err := s.db.Exec(
		`INSERT INTO brand_products (owner_id, generic_item_id, brand, presentation) VALUES (?, ?, ?, ?)`,
		ownerID, genericItemID, brand, presentation,
	)
	if err != nil {
		return nil, fmt.Errorf("insert brand product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetBrandProduct(ownerID, id)
}

func (s *CatalogStore) GetBrandProduct(ownerID, id int64) (*model.BrandProduct, error) {
	row := s.db.QueryRow(`SELECT `+brandProductCols+` FROM brand_products WHERE id = ? AND owner_id = ?`, id, ownerID)
	p, err := scanBrandProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get brand product: %w", err)
	}
	return p, nil
}

func (s *CatalogStore) ListBrandProducts(ownerID int64) ([]model.BrandProduct, error) {
	rows, err := s.db.Query(`SELECT `+brandProductCols+` FROM brand_products WHERE owner_id = ? ORDER BY brand ASC, presentation ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list brand products: %w", err)
	}
	defer rows.Close()
	return collectBrandProducts(rows)
}

func (s *CatalogStore) ListBrandProductsByItem(ownerID, genericItemID int64) ([]model.BrandProduct, error) {
	rows, err := s.db.Query(
		`SELECT `+brandProductCols+` FROM brand_products WHERE owner_id = ? AND generic_item_id = ? ORDER BY brand ASC, presentation ASC`,
		ownerID, genericItemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list brand products by item: %w", err)
	}
	defer rows.Close()
	return collectBrandProducts(rows)
}

func collectBrandProducts(rows *sql.Rows) ([]model.BrandProduct, error) {
	var products []model.BrandProduct
	for rows.Next() {
		p, err := scanBrandProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan brand product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *CatalogStore) DeleteBrandProduct(ownerID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM brand_products WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete brand product: %w", err)
	}
	return nil
}

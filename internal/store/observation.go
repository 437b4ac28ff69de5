package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/model"
)

// ObservationStore holds price observations. Rows are immutable facts: they
// are created, queried, and never updated.
type ObservationStore struct {
	db *sql.DB
}

func NewObservationStore(db *sql.DB) *ObservationStore {
	return &ObservationStore{db: db}
}

func scanObservation(scanner interface{ Scan(...any) error }) (*model.PriceObservation, error) {
	var o model.PriceObservation
	var unitPrice decimal.NullDecimal
	var sourcePurchaseID sql.NullInt64

	err := scanner.Scan(
		&o.ID, &o.OwnerID, &o.BrandProductID, &o.SupermarketID, &o.CurrencyCode,
		&unitPrice, &o.ObservedAt, &sourcePurchaseID, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.UnitPrice = decimalPtr(unitPrice)
	o.SourcePurchaseID = int64Ptr(sourcePurchaseID)
	return &o, nil
}

const observationCols = `id, owner_id, brand_product_id, supermarket_id, currency_code, unit_price, observed_at, source_purchase_id, created_at`

func (s *ObservationStore) Create(ownerID, brandProductID, supermarketID int64, currencyCode string, unitPrice *decimal.Decimal, observedAt time.Time, sourcePurchaseID *int64) (*model.PriceObservation, error) {
	result, err := s.db.Exec(
		`INSERT INTO price_observations (owner_id, brand_product_id, supermarket_id, currency_code, unit_price, observed_at, source_purchase_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ownerID, brandProductID, supermarketID, currencyCode, nullDecimal(unitPrice), observedAt, nullInt64(sourcePurchaseID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert observation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ObservationStore) GetByID(id int64) (*model.PriceObservation, error) {
	row := s.db.QueryRow(`SELECT `+observationCols+` FROM price_observations WHERE id = ?`, id)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get observation: %w", err)
	}
	return o, nil
}

// LatestForProductAtSupermarket returns the most recent observation for a
// brand product at a supermarket by observed_at descending, or nil.
func (s *ObservationStore) LatestForProductAtSupermarket(ownerID, brandProductID, supermarketID int64) (*model.PriceObservation, error) {
	row := s.db.QueryRow(
		`SELECT `+observationCols+` FROM price_observations
		 WHERE owner_id = ? AND brand_product_id = ? AND supermarket_id = ?
		 ORDER BY observed_at DESC, id DESC
		 LIMIT 1`,
		ownerID, brandProductID, supermarketID,
	)
	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	return o, nil
}

func (s *ObservationStore) ListByOwner(ownerID int64) ([]model.PriceObservation, error) {
	rows, err := s.db.Query(
		`SELECT `+observationCols+` FROM price_observations WHERE owner_id = ? ORDER BY observed_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()
	return collectObservations(rows)
}

func (s *ObservationStore) ListByProduct(ownerID, brandProductID int64) ([]model.PriceObservation, error) {
	rows, err := s.db.Query(
		`SELECT `+observationCols+` FROM price_observations WHERE owner_id = ? AND brand_product_id = ? ORDER BY observed_at DESC, id DESC`,
		ownerID, brandProductID,
	)
	if err != nil {
		return nil, fmt.Errorf("list observations by product: %w", err)
	}
	defer rows.Close()
	return collectObservations(rows)
}

func collectObservations(rows *sql.Rows) ([]model.PriceObservation, error) {
	var observations []model.PriceObservation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, *o)
	}
	return observations, rows.Err()
}

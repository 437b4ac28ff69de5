package store

import (
	"database/sql"
	"fmt"

	"github.com/jthomaz/cartwise/internal/model"
)

// SupermarketStore and UnitStore hold the per-owner master data the
// purchase flow references.

type SupermarketStore struct {
	db *sql.DB
}

func NewSupermarketStore(db *sql.DB) *SupermarketStore {
	return &SupermarketStore{db: db}
}

func scanSupermarket(scanner interface{ Scan(...any) error }) (*model.Supermarket, error) {
	var m model.Supermarket
	err := scanner.Scan(&m.ID, &m.OwnerID, &m.Name, &m.Location, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const supermarketCols = `id, owner_id, name, location, created_at`

func (s *SupermarketStore) Create(ownerID int64, name, location string) (*model.Supermarket, error) {
	result, err := s.db.Exec(
		`INSERT INTO supermarkets (owner_id, name, location) VALUES (?, ?, ?)`,
		ownerID, name, location,
	)
	if err != nil {
		return nil, fmt.Errorf("insert supermarket: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ownerID, id)
}

func (s *SupermarketStore) GetByID(ownerID, id int64) (*model.Supermarket, error) {
	row := s.db.QueryRow(`SELECT `+supermarketCols+` FROM supermarkets WHERE id = ? AND owner_id = ?`, id, ownerID)
	m, err := scanSupermarket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get supermarket: %w", err)
	}
	return m, nil
}

func (s *SupermarketStore) ListByOwner(ownerID int64) ([]model.Supermarket, error) {
	rows, err := s.db.Query(`SELECT `+supermarketCols+` FROM supermarkets WHERE owner_id = ? ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list supermarkets: %w", err)
	}
	defer rows.Close()

	var markets []model.Supermarket
	for rows.Next() {
		m, err := scanSupermarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supermarket: %w", err)
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *SupermarketStore) Update(ownerID, id int64, name, location string) (*model.Supermarket, error) {
	_, err := s.db.Exec(
		`UPDATE supermarkets SET name = ?, location = ? WHERE id = ? AND owner_id = ?`,
		name, location, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update supermarket: %w", err)
	}
	return s.GetByID(ownerID, id)
}

func (s *SupermarketStore) Delete(ownerID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM supermarkets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete supermarket: %w", err)
	}
	return nil
}

type UnitStore struct {
	db *sql.DB
}

func NewUnitStore(db *sql.DB) *UnitStore {
	return &UnitStore{db: db}
}

func scanUnit(scanner interface{ Scan(...any) error }) (*model.Unit, error) {
	var u model.Unit
	err := scanner.Scan(&u.ID, &u.OwnerID, &u.Name, &u.Abbreviation, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const unitCols = `id, owner_id, name, abbreviation, created_at`

func (s *UnitStore) Create(ownerID int64, name, abbreviation string) (*model.Unit, error) {
	result, err := s.db.Exec(
		`INSERT INTO units (owner_id, name, abbreviation) VALUES (?, ?, ?)`,
		ownerID, name, abbreviation,
	)
	if err != nil {
		return nil, fmt.Errorf("insert unit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ownerID, id)
}

func (s *UnitStore) GetByID(ownerID, id int64) (*model.Unit, error) {
	row := s.db.QueryRow(`SELECT `+unitCols+` FROM units WHERE id = ? AND owner_id = ?`, id, ownerID)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

func (s *UnitStore) ListByOwner(ownerID int64) ([]model.Unit, error) {
	rows, err := s.db.Query(`SELECT `+unitCols+` FROM units WHERE owner_id = ? ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []model.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, *u)
	}
	return units, rows.Err()
}

func (s *UnitStore) Update(ownerID, id int64, name, abbreviation string) (*model.Unit, error) {
	_, err := s.db.Exec(
		`UPDATE units SET name = ?, abbreviation = ? WHERE id = ? AND owner_id = ?`,
		name, abbreviation, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update unit: %w", err)
	}
	return s.GetByID(ownerID, id)
}

func (s *UnitStore) Delete(ownerID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM units WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	return nil
}

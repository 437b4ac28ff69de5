package engine

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/model"
)

// The engine is constructed with repository interfaces at the composition
// root. The store package satisfies all of them; tests may substitute their
// own implementations.

// TemplateSource reads templates and their ordered items.
type TemplateSource interface {
	GetByID(ownerID, id int64) (*model.Template, error)
	// ListItems must return items in sort_order ascending.
	ListItems(templateID int64) ([]model.TemplateItem, error)
}

// CatalogSource reads generic items for validation and reference pricing.
type CatalogSource interface {
	GetGenericItem(ownerID, id int64) (*model.GenericItem, error)
}

// PurchaseRepository persists purchase headers and lines and answers the
// history scan. LatestCompletedLine must iterate completed purchases in
// descending date order.
type PurchaseRepository interface {
	Create(ownerID int64, supermarketID *int64, date time.Time, currencyCode string, templateIDs []int64) (*model.Purchase, error)
	GetByID(ownerID, id int64) (*model.Purchase, error)
	ListByOwner(ownerID int64) ([]model.Purchase, error)
	Complete(ownerID, id int64, totalPaid decimal.Decimal, subtotal, discount, tax *decimal.Decimal, finishedAt time.Time) (bool, error)
	SoftDelete(ownerID, id int64) (bool, error)
	CreateLine(line model.PurchaseLine) (*model.PurchaseLine, error)
	CreateLines(lines []model.PurchaseLine) error
	GetLine(id int64) (*model.PurchaseLine, error)
	ListLines(purchaseID int64) ([]model.PurchaseLine, error)
	UpdateLine(line model.PurchaseLine) (*model.PurchaseLine, error)
	DeleteLine(id int64) error
	LatestCompletedLine(ownerID, supermarketID, genericItemID int64) (*model.PurchaseLine, error)
}

// ObservationRepository reads and records price observations.
type ObservationRepository interface {
	Create(ownerID, brandProductID, supermarketID int64, currencyCode string, unitPrice *decimal.Decimal, observedAt time.Time, sourcePurchaseID *int64) (*model.PriceObservation, error)
	LatestForProductAtSupermarket(ownerID, brandProductID, supermarketID int64) (*model.PriceObservation, error)
}

// Engine owns purchase consolidation, price recommendation, and the
// draft → completed lifecycle.
type Engine struct {
	templates    TemplateSource
	catalog      CatalogSource
	purchases    PurchaseRepository
	observations ObservationRepository
	logger       *slog.Logger
}

func New(templates TemplateSource, catalog CatalogSource, purchases PurchaseRepository, observations ObservationRepository, logger *slog.Logger) *Engine {
	return &Engine{
		templates:    templates,
		catalog:      catalog,
		purchases:    purchases,
		observations: observations,
		logger:       logger,
	}
}

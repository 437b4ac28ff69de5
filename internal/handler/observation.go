package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/auth"
	"github.com/jthomaz/cartwise/internal/model"
	"github.com/jthomaz/cartwise/internal/store"
)

// ObservationHandler serves the price observation log. Completed purchases
// emit observations automatically; this handler covers manual entries (a
// price spotted on a shelf) and history queries.
type ObservationHandler struct {
	observationStore *store.ObservationStore
	catalogStore     *store.CatalogStore
	supermarketStore *store.SupermarketStore
}

func NewObservationHandler(os *store.ObservationStore, cs *store.CatalogStore, ss *store.SupermarketStore) *ObservationHandler {
	return &ObservationHandler{
		observationStore: os,
		catalogStore:     cs,
		supermarketStore: ss,
	}
}

type observationRequest struct {
	BrandProductID int64            `json:"brand_product_id"`
	SupermarketID  int64            `json:"supermarket_id"`
	CurrencyCode   string           `json:"currency_code"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	ObservedAt     *time.Time       `json:"observed_at"`
}

func (h *ObservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit_price must not be negative"})
		return
	}
	if req.CurrencyCode == "" {
		req.CurrencyCode = "USD"
	}

	product, err := h.catalogStore.GetBrandProduct(ownerID, req.BrandProductID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get brand product"})
		return
	}
	if product == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown brand_product_id"})
		return
	}

	market, err := h.supermarketStore.GetByID(ownerID, req.SupermarketID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get supermarket"})
		return
	}
	if market == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown supermarket_id"})
		return
	}

	observedAt := time.Now().UTC()
	if req.ObservedAt != nil {
		observedAt = *req.ObservedAt
	}

	// Manual entries have no source purchase.
	obs, err := h.observationStore.Create(ownerID, req.BrandProductID, req.SupermarketID, req.CurrencyCode, req.UnitPrice, observedAt, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create observation"})
		return
	}
	writeJSON(w, http.StatusCreated, obs)
}

func (h *ObservationHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var observations []model.PriceObservation
	var err error
	if s := r.URL.Query().Get("brand_product_id"); s != "" {
		productID, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid brand_product_id"})
			return
		}
		observations, err = h.observationStore.ListByProduct(ownerID, productID)
	} else {
		observations, err = h.observationStore.ListByOwner(ownerID)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list observations"})
		return
	}
	if observations == nil {
		observations = []model.PriceObservation{}
	}
	writeJSON(w, http.StatusOK, observations)
}

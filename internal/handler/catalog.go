package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/auth"
	"github.com/jthomaz/cartwise/internal/model"
	"github.com/jthomaz/cartwise/internal/store"
)

// CatalogHandler serves generic items and the brand products under them.
type CatalogHandler struct {
	catalogStore *store.CatalogStore
}

func NewCatalogHandler(cs *store.CatalogStore) *CatalogHandler {
	return &CatalogHandler{catalogStore: cs}
}

type genericItemRequest struct {
	CanonicalName string           `json:"canonical_name"`
	Aliases       []string         `json:"aliases"`
	GlobalPrice   *decimal.Decimal `json:"global_price"`
	CurrencyCode  *string          `json:"currency_code"`
}

func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req genericItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.CanonicalName = strings.TrimSpace(req.CanonicalName)
	if req.CanonicalName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "canonical_name is required"})
		return
	}
	if req.GlobalPrice != nil && req.GlobalPrice.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "global_price must not be negative"})
		return
	}

	item, err := h.catalogStore.CreateGenericItem(ownerID, req.CanonicalName, req.Aliases, req.GlobalPrice, req.CurrencyCode)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create item"})
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	item, err := h.catalogStore.GetGenericItem(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get item"})
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	items, err := h.catalogStore.ListGenericItems(ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list items"})
		return
	}
	if items == nil {
		items = []model.GenericItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CatalogHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.catalogStore.GetGenericItem(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get item"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}

	var req genericItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.CanonicalName = strings.TrimSpace(req.CanonicalName)
	if req.CanonicalName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "canonical_name is required"})
		return
	}
	if req.GlobalPrice != nil && req.GlobalPrice.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "global_price must not be negative"})
		return
	}

	item, err := h.catalogStore.UpdateGenericItem(ownerID, id, req.CanonicalName, req.Aliases, req.GlobalPrice, req.CurrencyCode)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update item"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CatalogHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	// Purchase lines reference items with ON DELETE RESTRICT, so deleting an
	// item that appears in history fails at the database.
	if err := h.catalogStore.DeleteGenericItem(ownerID, id); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "item is referenced by purchase history"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type brandProductRequest struct {
	Brand        string `json:"brand"`
	Presentation string `json:"presentation"`
}

func (h *CatalogHandler) CreateBrandProduct(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	itemID, err := strconv.ParseInt(r.PathValue("item_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}

	item, err := h.catalogStore.GetGenericItem(ownerID, itemID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get item"})
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}

	var req brandProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Brand = strings.TrimSpace(req.Brand)
	if req.Brand == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "brand is required"})
		return
	}

	product, err := h.catalogStore.CreateBrandProduct(ownerID, itemID, req.Brand, req.Presentation)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create brand product"})
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *CatalogHandler) ListBrandProducts(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	itemID, err := strconv.ParseInt(r.PathValue("item_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}

	products, err := h.catalogStore.ListBrandProductsByItem(ownerID, itemID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list brand products"})
		return
	}
	if products == nil {
		products = []model.BrandProduct{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) DeleteBrandProduct(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.catalogStore.DeleteBrandProduct(ownerID, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete brand product"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

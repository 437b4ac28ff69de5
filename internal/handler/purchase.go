package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/auth"
	"github.com/jthomaz/cartwise/internal/engine"
	"github.com/jthomaz/cartwise/internal/model"
	"github.com/jthomaz/cartwise/internal/websocket"
)

// PurchaseHandler drives the purchase lifecycle through the engine and
// notifies connected clients over the websocket hub.
type PurchaseHandler struct {
	engine *engine.Engine
	hub    *websocket.Hub
}

func NewPurchaseHandler(e *engine.Engine, hub *websocket.Hub) *PurchaseHandler {
	return &PurchaseHandler{engine: e, hub: hub}
}

type createPurchaseRequest struct {
	SupermarketID *int64     `json:"supermarket_id"`
	Date          *time.Time `json:"date"`
	CurrencyCode  string     `json:"currency_code"`
	TemplateIDs   []int64    `json:"template_ids"`
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req createPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.CurrencyCode == "" {
		req.CurrencyCode = "USD"
	}
	date := time.Now().UTC()
	if req.Date != nil {
		date = *req.Date
	}

	purchase, err := h.engine.CreatePurchase(ownerID, req.SupermarketID, date, req.CurrencyCode, req.TemplateIDs)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.hub.BroadcastTo(ownerID, websocket.NewMessage("purchase", "created", purchase.ID, nil))

	created, lines, err := h.engine.GetPurchase(ownerID, purchase.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, purchaseResponse(created, lines))
}

func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	purchase, lines, err := h.engine.GetPurchase(ownerID, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchaseResponse(purchase, lines))
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	purchases, err := h.engine.ListPurchases(ownerID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}
	writeJSON(w, http.StatusOK, purchases)
}

type lineUpdateRequest struct {
	BrandProductID     *int64           `json:"brand_product_id"`
	Qty                *decimal.Decimal `json:"qty"`
	UnitID             *int64           `json:"unit_id"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	Checked            *bool            `json:"checked"`
	LineAmountOverride *decimal.Decimal `json:"line_amount_override"`
	Note               *string          `json:"note"`
}

func (h *PurchaseHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req lineUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	line, err := h.engine.UpdateLine(ownerID, id, engine.LineUpdate{
		BrandProductID:     req.BrandProductID,
		Qty:                req.Qty,
		UnitID:             req.UnitID,
		UnitPrice:          req.UnitPrice,
		Checked:            req.Checked,
		LineAmountOverride: req.LineAmountOverride,
		Note:               req.Note,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.hub.BroadcastTo(ownerID, websocket.NewMessage("purchase_line", "updated", line.ID, map[string]any{
		"purchase_id": line.PurchaseID,
	}))
	writeJSON(w, http.StatusOK, line)
}

type addLineRequest struct {
	GenericItemID  int64            `json:"generic_item_id"`
	BrandProductID *int64           `json:"brand_product_id"`
	Qty            *decimal.Decimal `json:"qty"`
	UnitID         *int64           `json:"unit_id"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	Note           string           `json:"note"`
}

func (h *PurchaseHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	purchaseID, err := strconv.ParseInt(r.PathValue("purchase_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purchase_id"})
		return
	}

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	line, err := h.engine.AddLine(ownerID, purchaseID, model.PurchaseLine{
		GenericItemID:  req.GenericItemID,
		BrandProductID: req.BrandProductID,
		Qty:            req.Qty,
		UnitID:         req.UnitID,
		UnitPrice:      req.UnitPrice,
		Note:           req.Note,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.hub.BroadcastTo(ownerID, websocket.NewMessage("purchase_line", "created", line.ID, map[string]any{
		"purchase_id": purchaseID,
	}))
	writeJSON(w, http.StatusCreated, line)
}

func (h *PurchaseHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.engine.RemoveLine(ownerID, id); err != nil {
		writeEngineError(w, err)
		return
	}

	h.hub.BroadcastTo(ownerID, websocket.NewMessage("purchase_line", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type finishPurchaseRequest struct {
	TotalPaid  decimal.Decimal  `json:"total_paid"`
	Subtotal   *decimal.Decimal `json:"subtotal"`
	Discount   *decimal.Decimal `json:"discount"`
	Tax        *decimal.Decimal `json:"tax"`
	FinishedAt *time.Time       `json:"finished_at"`
}

func (h *PurchaseHandler) Finish(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req finishPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	purchase, err := h.engine.FinishPurchase(ownerID, id, req.TotalPaid, req.Subtotal, req.Discount, req.Tax, req.FinishedAt)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.hub.BroadcastTo(ownerID, websocket.NewMessage("purchase", "completed", purchase.ID, nil))
	writeJSON(w, http.StatusOK, purchase)
}

func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.engine.DeletePurchase(ownerID, id); err != nil {
		writeEngineError(w, err)
		return
	}

	h.hub.BroadcastTo(ownerID, websocket.NewMessage("purchase", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Recommend answers an ad hoc recommendation query, e.g. when the client
// adds a line by hand and wants the suggested brand and price.
func (h *PurchaseHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	itemID, err := strconv.ParseInt(r.URL.Query().Get("generic_item_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid generic_item_id"})
		return
	}

	var supermarketID *int64
	if s := r.URL.Query().Get("supermarket_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid supermarket_id"})
			return
		}
		supermarketID = &id
	}

	rec, err := h.engine.Recommend(ownerID, supermarketID, itemID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func purchaseResponse(purchase *model.Purchase, lines []model.PurchaseLine) map[string]any {
	if lines == nil {
		lines = []model.PurchaseLine{}
	}
	return map[string]any{
		"purchase": purchase,
		"lines":    lines,
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jthomaz/cartwise/internal/auth"
	"github.com/jthomaz/cartwise/internal/model"
	"github.com/jthomaz/cartwise/internal/store"
)

type SupermarketHandler struct {
	supermarketStore *store.SupermarketStore
}

func NewSupermarketHandler(ss *store.SupermarketStore) *SupermarketHandler {
	return &SupermarketHandler{supermarketStore: ss}
}

type supermarketRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (h *SupermarketHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req supermarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	market, err := h.supermarketStore.Create(ownerID, req.Name, req.Location)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create supermarket"})
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

func (h *SupermarketHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	markets, err := h.supermarketStore.ListByOwner(ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list supermarkets"})
		return
	}
	if markets == nil {
		markets = []model.Supermarket{}
	}
	writeJSON(w, http.StatusOK, markets)
}

func (h *SupermarketHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.supermarketStore.GetByID(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get supermarket"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "supermarket not found"})
		return
	}

	var req supermarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	market, err := h.supermarketStore.Update(ownerID, id, req.Name, req.Location)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update supermarket"})
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (h *SupermarketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.supermarketStore.Delete(ownerID, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete supermarket"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type UnitHandler struct {
	unitStore *store.UnitStore
}

func NewUnitHandler(us *store.UnitStore) *UnitHandler {
	return &UnitHandler{unitStore: us}
}

type unitRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

func (h *UnitHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req unitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	unit, err := h.unitStore.Create(ownerID, req.Name, req.Abbreviation)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create unit"})
		return
	}
	writeJSON(w, http.StatusCreated, unit)
}

func (h *UnitHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	units, err := h.unitStore.ListByOwner(ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list units"})
		return
	}
	if units == nil {
		units = []model.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

func (h *UnitHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.unitStore.GetByID(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get unit"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unit not found"})
		return
	}

	var req unitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	unit, err := h.unitStore.Update(ownerID, id, req.Name, req.Abbreviation)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update unit"})
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (h *UnitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.unitStore.Delete(ownerID, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete unit"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

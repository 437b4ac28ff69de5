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

type TemplateHandler struct {
	templateStore *store.TemplateStore
	catalogStore  *store.CatalogStore
}

func NewTemplateHandler(ts *store.TemplateStore, cs *store.CatalogStore) *TemplateHandler {
	return &TemplateHandler{templateStore: ts, catalogStore: cs}
}

type templateRequest struct {
	Name string `json:"name"`
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	tmpl, err := h.templateStore.Create(ownerID, req.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create template"})
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	tmpl, err := h.templateStore.GetByID(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get template"})
		return
	}
	if tmpl == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}

	items, err := h.templateStore.ListItems(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list items"})
		return
	}
	if items == nil {
		items = []model.TemplateItem{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"template": tmpl,
		"items":    items,
	})
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	templates, err := h.templateStore.ListByOwner(ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list templates"})
		return
	}
	if templates == nil {
		templates = []model.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.templateStore.GetByID(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get template"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	tmpl, err := h.templateStore.Rename(ownerID, id, req.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to rename template"})
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.templateStore.Delete(ownerID, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete template"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type templateItemRequest struct {
	GenericItemID int64            `json:"generic_item_id"`
	DefaultQty    *decimal.Decimal `json:"default_qty"`
	DefaultUnitID *int64           `json:"default_unit_id"`
	SortOrder     int              `json:"sort_order"`
}

func (h *TemplateHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	templateID, err := strconv.ParseInt(r.PathValue("template_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid template_id"})
		return
	}

	tmpl, err := h.templateStore.GetByID(ownerID, templateID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get template"})
		return
	}
	if tmpl == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}

	var req templateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	item, err := h.catalogStore.GetGenericItem(ownerID, req.GenericItemID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get item"})
		return
	}
	if item == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown generic_item_id"})
		return
	}

	// Each generic item appears at most once per template.
	added, err := h.templateStore.AddItem(templateID, req.GenericItemID, req.DefaultQty, req.DefaultUnitID, req.SortOrder)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "item already on template"})
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *TemplateHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.authorizeItem(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get item"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template item not found"})
		return
	}

	var req templateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	item, err := h.templateStore.UpdateItem(id, req.DefaultQty, req.DefaultUnitID, req.SortOrder)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update item"})
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *TemplateHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.authorizeItem(ownerID, id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get item"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template item not found"})
		return
	}

	if err := h.templateStore.RemoveItem(id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to remove item"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeItem resolves a template item and verifies its parent template
// belongs to the owner. Returns nil when either is missing.
func (h *TemplateHandler) authorizeItem(ownerID, itemID int64) (*model.TemplateItem, error) {
	item, err := h.templateStore.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	tmpl, err := h.templateStore.GetByID(ownerID, item.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, nil
	}
	return item, nil
}

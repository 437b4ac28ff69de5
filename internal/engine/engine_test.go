package engine

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jthomaz/cartwise/internal/database"
	"github.com/jthomaz/cartwise/internal/model"
	"github.com/jthomaz/cartwise/internal/store"
)

type engineFixture struct {
	engine       *Engine
	users        *store.UserStore
	supermarkets *store.SupermarketStore
	catalog      *store.CatalogStore
	templates    *store.TemplateStore
	purchases    *store.PurchaseStore
	observations *store.ObservationStore

	owner  *model.User
	market *model.Supermarket
}

func setupEngineTest(t *testing.T) *engineFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &engineFixture{
		users:        store.NewUserStore(db),
		supermarkets: store.NewSupermarketStore(db),
		catalog:      store.NewCatalogStore(db),
		templates:    store.NewTemplateStore(db),
		purchases:    store.NewPurchaseStore(db),
		observations: store.NewObservationStore(db),
	}
	f.engine = New(f.templates, f.catalog, f.purchases, f.observations, slog.Default())

	f.owner, err = f.users.Create("alice@example.com", "Alice", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.market, err = f.supermarkets.Create(f.owner.ID, "Corner Market", "Main St")
	if err != nil {
		t.Fatalf("create supermarket: %v", err)
	}
	return f
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	d := dec(t, s)
	return &d
}

func (f *engineFixture) item(t *testing.T, name string, globalPrice *decimal.Decimal) *model.GenericItem {
	t.Helper()
	item, err := f.catalog.CreateGenericItem(f.owner.ID, name, nil, globalPrice, nil)
	if err != nil {
		t.Fatalf("create generic item %q: %v", name, err)
	}
	return item
}

func (f *engineFixture) template(t *testing.T, name string, items ...model.TemplateItem) *model.Template {
	t.Helper()
	tpl, err := f.templates.Create(f.owner.ID, name)
	if err != nil {
		t.Fatalf("create template %q: %v", name, err)
	}
	for i, item := range items {
		if _, err := f.templates.AddItem(tpl.ID, item.GenericItemID, item.DefaultQty, item.DefaultUnitID, i); err != nil {
			t.Fatalf("add template item: %v", err)
		}
	}
	return tpl
}

// completedPurchase drives a purchase through the full lifecycle: check
// every line, price it, finish.
func (f *engineFixture) completedPurchase(t *testing.T, date time.Time, brandID *int64, price string, templateIDs ...int64) *model.Purchase {
	t.Helper()
	p, err := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, date, "USD", templateIDs)
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	lines, err := f.purchases.ListLines(p.ID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	checked := true
	for _, line := range lines {
		upd := LineUpdate{Checked: &checked, UnitPrice: decPtr(t, price)}
		if brandID != nil {
			upd.BrandProductID = brandID
		}
		if _, err := f.engine.UpdateLine(f.owner.ID, line.ID, upd); err != nil {
			t.Fatalf("update line: %v", err)
		}
	}
	finished, err := f.engine.FinishPurchase(f.owner.ID, p.ID, dec(t, "10.00"), nil, nil, nil, &date)
	if err != nil {
		t.Fatalf("finish purchase: %v", err)
	}
	return finished
}

// --- Consolidation ---

func TestConsolidateFirstSeenWins(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	bread := f.item(t, "Bread", nil)

	t1 := f.template(t, "Breakfast", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "2")})
	t2 := f.template(t, "Snack",
		model.TemplateItem{GenericItemID: bread.ID, DefaultQty: decPtr(t, "1")},
		model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "1")},
	)

	candidates, err := f.engine.Consolidate(f.owner.ID, []int64{t1.ID, t2.ID})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].GenericItemID != milk.ID {
		t.Errorf("candidates[0] = item %d, want milk %d", candidates[0].GenericItemID, milk.ID)
	}
	if candidates[0].Qty == nil || !candidates[0].Qty.Equal(dec(t, "2")) {
		t.Errorf("milk qty = %v, want 2 (from first template, never summed)", candidates[0].Qty)
	}
	if candidates[1].GenericItemID != bread.ID {
		t.Errorf("candidates[1] = item %d, want bread %d", candidates[1].GenericItemID, bread.ID)
	}
	if candidates[1].Qty == nil || !candidates[1].Qty.Equal(dec(t, "1")) {
		t.Errorf("bread qty = %v, want 1", candidates[1].Qty)
	}
}

func TestConsolidateOrderSensitive(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	t1 := f.template(t, "A", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "2")})
	t2 := f.template(t, "B", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "5")})

	// Reversing the caller's template order flips which template wins.
	candidates, err := f.engine.Consolidate(f.owner.ID, []int64{t2.ID, t1.ID})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if !candidates[0].Qty.Equal(dec(t, "5")) {
		t.Errorf("qty = %v, want 5 (first-seen template)", candidates[0].Qty)
	}
}

func TestConsolidateUnknownTemplate(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	t1 := f.template(t, "A", model.TemplateItem{GenericItemID: milk.ID})

	_, err := f.engine.Consolidate(f.owner.ID, []int64{t1.ID, 9999})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsolidateForeignTemplate(t *testing.T) {
	f := setupEngineTest(t)

	other, err := f.users.Create("bob@example.com", "Bob", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	tpl, err := f.templates.Create(other.ID, "Bob's list")
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	_, err = f.engine.Consolidate(f.owner.ID, []int64{tpl.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign template, got %v", err)
	}
}

func TestConsolidateNoTemplates(t *testing.T) {
	f := setupEngineTest(t)

	_, err := f.engine.Consolidate(f.owner.ID, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// --- Recommendation ---

func TestRecommendReferencePriceFallback(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", decPtr(t, "1.50"))

	rec, err := f.engine.Recommend(f.owner.ID, &f.market.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID != nil {
		t.Errorf("brand = %v, want nil", *rec.BrandProductID)
	}
	if rec.UnitPrice == nil || !rec.UnitPrice.Equal(dec(t, "1.50")) {
		t.Errorf("price = %v, want 1.50", rec.UnitPrice)
	}
}

func TestRecommendNoData(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)

	rec, err := f.engine.Recommend(f.owner.ID, &f.market.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID != nil || rec.UnitPrice != nil {
		t.Errorf("rec = {%v %v}, want all nil", rec.BrandProductID, rec.UnitPrice)
	}
}

func TestRecommendLastBoughtBrandWithObservation(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", decPtr(t, "1.00"))
	brand, err := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "Dairyland", "1L")
	if err != nil {
		t.Fatalf("create brand product: %v", err)
	}

	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "1")})

	// Old completed purchase with the line priced at 2.0.
	f.completedPurchase(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), &brand.ID, "2.00", tpl.ID)

	// A later observation for (brand, supermarket) at 2.5 outranks the old
	// line's own price.
	_, err = f.observations.Create(f.owner.ID, brand.ID, f.market.ID, "USD", decPtr(t, "2.50"),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		t.Fatalf("create observation: %v", err)
	}

	rec, err := f.engine.Recommend(f.owner.ID, &f.market.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID == nil || *rec.BrandProductID != brand.ID {
		t.Errorf("brand = %v, want %d", rec.BrandProductID, brand.ID)
	}
	if rec.UnitPrice == nil || !rec.UnitPrice.Equal(dec(t, "2.50")) {
		t.Errorf("price = %v, want 2.50 from latest observation", rec.UnitPrice)
	}
}

func TestRecommendMostRecentPurchaseWins(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	oldBrand, _ := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "OldBrand", "1L")
	newBrand, _ := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "NewBrand", "1L")

	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "1")})

	f.completedPurchase(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), &oldBrand.ID, "2.00", tpl.ID)
	f.completedPurchase(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), &newBrand.ID, "2.20", tpl.ID)

	rec, err := f.engine.Recommend(f.owner.ID, &f.market.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID == nil || *rec.BrandProductID != newBrand.ID {
		t.Errorf("brand = %v, want most recent %d (older choices ignored)", rec.BrandProductID, newBrand.ID)
	}
}

func TestRecommendBrandWithoutObservationUsesReferencePrice(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", decPtr(t, "1.75"))
	brand, _ := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "Dairyland", "1L")

	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "1")})
	f.completedPurchase(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), &brand.ID, "2.00", tpl.ID)

	// The completed purchase emitted an observation; recommendations should
	// pick that up rather than the reference price.
	rec, err := f.engine.Recommend(f.owner.ID, &f.market.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.UnitPrice == nil || !rec.UnitPrice.Equal(dec(t, "2.00")) {
		t.Errorf("price = %v, want 2.00 from emitted observation", rec.UnitPrice)
	}

	// At a different supermarket the brand has no observation, and the
	// history scan finds nothing either: reference price applies.
	elsewhere, _ := f.supermarkets.Create(f.owner.ID, "Elsewhere", "")
	rec, err = f.engine.Recommend(f.owner.ID, &elsewhere.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID != nil {
		t.Errorf("brand = %v, want nil (history is supermarket-scoped)", *rec.BrandProductID)
	}
	if rec.UnitPrice == nil || !rec.UnitPrice.Equal(dec(t, "1.75")) {
		t.Errorf("price = %v, want reference 1.75", rec.UnitPrice)
	}
}

func TestRecommendNilSupermarket(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", decPtr(t, "1.25"))

	rec, err := f.engine.Recommend(f.owner.ID, nil, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID != nil {
		t.Errorf("brand = %v, want nil", *rec.BrandProductID)
	}
	if rec.UnitPrice == nil || !rec.UnitPrice.Equal(dec(t, "1.25")) {
		t.Errorf("price = %v, want 1.25", rec.UnitPrice)
	}
}

func TestRecommendIgnoresDraftPurchases(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	brand, _ := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "Dairyland", "1L")

	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})

	// Draft purchase with a brand choice; never finished.
	p, err := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	lines, _ := f.purchases.ListLines(p.ID)
	if _, err := f.engine.UpdateLine(f.owner.ID, lines[0].ID, LineUpdate{BrandProductID: &brand.ID}); err != nil {
		t.Fatalf("update line: %v", err)
	}

	rec, err := f.engine.Recommend(f.owner.ID, &f.market.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID != nil {
		t.Errorf("brand = %v, want nil (drafts do not count as history)", *rec.BrandProductID)
	}
}

// --- Lifecycle ---

func TestCreatePurchaseDraftWithRecommendations(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", decPtr(t, "1.50"))
	bread := f.item(t, "Bread", nil)

	t1 := f.template(t, "Breakfast", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "2")})
	t2 := f.template(t, "Snack", model.TemplateItem{GenericItemID: bread.ID, DefaultQty: decPtr(t, "1")})

	p, err := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{t1.ID, t2.ID})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if p.Status != model.PurchaseDraft {
		t.Errorf("status = %q, want draft", p.Status)
	}
	if p.TotalPaid != nil {
		t.Errorf("total_paid = %v, want nil", p.TotalPaid)
	}
	if len(p.SelectedTemplateIDs) != 2 || p.SelectedTemplateIDs[0] != t1.ID || p.SelectedTemplateIDs[1] != t2.ID {
		t.Errorf("selected_template_ids = %v, want [%d %d]", p.SelectedTemplateIDs, t1.ID, t2.ID)
	}

	_, lines, err := f.engine.GetPurchase(f.owner.ID, p.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].GenericItemID != milk.ID {
		t.Errorf("lines[0] item = %d, want milk %d", lines[0].GenericItemID, milk.ID)
	}
	if lines[0].Checked || lines[1].Checked {
		t.Error("new lines must start unchecked")
	}
	if lines[0].UnitPrice == nil || !lines[0].UnitPrice.Equal(dec(t, "1.50")) {
		t.Errorf("milk price = %v, want reference 1.50", lines[0].UnitPrice)
	}
	if lines[1].UnitPrice != nil {
		t.Errorf("bread price = %v, want nil", lines[1].UnitPrice)
	}
}

func TestGetPurchaseStableLineOrder(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	bread := f.item(t, "Bread", nil)
	eggs := f.item(t, "Eggs", nil)

	tpl := f.template(t, "Weekly",
		model.TemplateItem{GenericItemID: milk.ID},
		model.TemplateItem{GenericItemID: bread.ID},
		model.TemplateItem{GenericItemID: eggs.ID},
	)

	p, err := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	_, first, err := f.engine.GetPurchase(f.owner.ID, p.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	_, second, err := f.engine.GetPurchase(f.owner.ID, p.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 lines, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("line order differs at %d: %d vs %d", i, first[i].ID, second[i].ID)
		}
	}
}

func TestUpdateLinePartial(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID, DefaultQty: decPtr(t, "2")})

	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})
	lines, _ := f.purchases.ListLines(p.ID)

	checked := true
	updated, err := f.engine.UpdateLine(f.owner.ID, lines[0].ID, LineUpdate{
		Checked:   &checked,
		UnitPrice: decPtr(t, "2.10"),
	})
	if err != nil {
		t.Fatalf("update line: %v", err)
	}
	if !updated.Checked {
		t.Error("expected checked = true")
	}
	if updated.UnitPrice == nil || !updated.UnitPrice.Equal(dec(t, "2.10")) {
		t.Errorf("price = %v, want 2.10", updated.UnitPrice)
	}
	if updated.Qty == nil || !updated.Qty.Equal(dec(t, "2")) {
		t.Errorf("qty = %v, want 2 (untouched)", updated.Qty)
	}
}

func TestUpdateLineForeignOwner(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})
	lines, _ := f.purchases.ListLines(p.ID)

	other, _ := f.users.Create("bob@example.com", "Bob", "x")
	checked := true
	_, err := f.engine.UpdateLine(other.ID, lines[0].ID, LineUpdate{Checked: &checked})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign line, got %v", err)
	}
}

func TestUpdateLineCompletedPurchase(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p := f.completedPurchase(t, time.Now().UTC(), nil, "2.00", tpl.ID)

	lines, _ := f.purchases.ListLines(p.ID)
	checked := false
	_, err := f.engine.UpdateLine(f.owner.ID, lines[0].ID, LineUpdate{Checked: &checked})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestAddAndRemoveLine(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	eggs := f.item(t, "Eggs", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})

	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})

	added, err := f.engine.AddLine(f.owner.ID, p.ID, model.PurchaseLine{GenericItemID: eggs.ID, Qty: decPtr(t, "12")})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	lines, _ := f.purchases.ListLines(p.ID)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	if err := f.engine.RemoveLine(f.owner.ID, added.ID); err != nil {
		t.Fatalf("remove line: %v", err)
	}
	lines, _ = f.purchases.ListLines(p.ID)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line after remove, got %d", len(lines))
	}
}

func TestAddLineUnknownItem(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})

	_, err := f.engine.AddLine(f.owner.ID, p.ID, model.PurchaseLine{GenericItemID: 9999})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAddLineCompletedPurchase(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	eggs := f.item(t, "Eggs", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p := f.completedPurchase(t, time.Now().UTC(), nil, "2.00", tpl.ID)

	_, err := f.engine.AddLine(f.owner.ID, p.ID, model.PurchaseLine{GenericItemID: eggs.ID})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestFinishMissingPrice(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})
	lines, _ := f.purchases.ListLines(p.ID)

	checked := true
	if _, err := f.engine.UpdateLine(f.owner.ID, lines[0].ID, LineUpdate{Checked: &checked}); err != nil {
		t.Fatalf("update line: %v", err)
	}

	_, err := f.engine.FinishPurchase(f.owner.ID, p.ID, dec(t, "5.00"), nil, nil, nil, nil)
	var mpe *MissingPriceError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MissingPriceError, got %v", err)
	}
	if len(mpe.LineIDs) != 1 || mpe.LineIDs[0] != lines[0].ID {
		t.Errorf("missing line ids = %v, want [%d]", mpe.LineIDs, lines[0].ID)
	}

	got, _, err := f.engine.GetPurchase(f.owner.ID, p.ID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if got.Status != model.PurchaseDraft {
		t.Errorf("status = %q, want draft (purchase must not be mutated)", got.Status)
	}
}

func TestFinishEmitsObservations(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	brand, _ := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "Dairyland", "1L")
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})

	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})
	lines, _ := f.purchases.ListLines(p.ID)

	checked := true
	if _, err := f.engine.UpdateLine(f.owner.ID, lines[0].ID, LineUpdate{
		Checked:        &checked,
		BrandProductID: &brand.ID,
		UnitPrice:      decPtr(t, "2.35"),
	}); err != nil {
		t.Fatalf("update line: %v", err)
	}

	finished, err := f.engine.FinishPurchase(f.owner.ID, p.ID, dec(t, "10.50"), nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("finish purchase: %v", err)
	}
	if finished.Status != model.PurchaseCompleted {
		t.Errorf("status = %q, want completed", finished.Status)
	}
	if finished.TotalPaid == nil || !finished.TotalPaid.Equal(dec(t, "10.50")) {
		t.Errorf("total_paid = %v, want 10.50", finished.TotalPaid)
	}
	if finished.FinishedAt == nil {
		t.Error("finished_at should be set")
	}

	observations, err := f.observations.ListByOwner(f.owner.ID)
	if err != nil {
		t.Fatalf("list observations: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected exactly 1 observation, got %d", len(observations))
	}
	obs := observations[0]
	if obs.BrandProductID != brand.ID {
		t.Errorf("observation brand = %d, want %d", obs.BrandProductID, brand.ID)
	}
	if obs.UnitPrice == nil || !obs.UnitPrice.Equal(dec(t, "2.35")) {
		t.Errorf("observation price = %v, want 2.35", obs.UnitPrice)
	}
	if obs.SourcePurchaseID == nil || *obs.SourcePurchaseID != p.ID {
		t.Errorf("observation source = %v, want %d", obs.SourcePurchaseID, p.ID)
	}
	if obs.SupermarketID != f.market.ID {
		t.Errorf("observation supermarket = %d, want %d", obs.SupermarketID, f.market.ID)
	}
}

func TestFinishSkipsGenericAndUnpricedLines(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	bread := f.item(t, "Bread", nil)
	tpl := f.template(t, "Weekly",
		model.TemplateItem{GenericItemID: milk.ID},
		model.TemplateItem{GenericItemID: bread.ID},
	)

	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})
	lines, _ := f.purchases.ListLines(p.ID)

	// Checked and priced but without a brand: contributes nothing reusable.
	checked := true
	if _, err := f.engine.UpdateLine(f.owner.ID, lines[0].ID, LineUpdate{Checked: &checked, UnitPrice: decPtr(t, "2.00")}); err != nil {
		t.Fatalf("update line: %v", err)
	}
	// Unchecked line: ignored entirely.

	if _, err := f.engine.FinishPurchase(f.owner.ID, p.ID, dec(t, "2.00"), nil, nil, nil, nil); err != nil {
		t.Fatalf("finish purchase: %v", err)
	}

	observations, _ := f.observations.ListByOwner(f.owner.ID)
	if len(observations) != 0 {
		t.Errorf("expected 0 observations, got %d", len(observations))
	}
}

func TestFinishTwiceRejected(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p := f.completedPurchase(t, time.Now().UTC(), nil, "2.00", tpl.ID)

	_, err := f.engine.FinishPurchase(f.owner.ID, p.ID, dec(t, "9.99"), nil, nil, nil, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double finish, got %v", err)
	}
}

func TestFinishStoresTotalsAndExplicitFinishedAt(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})

	at := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	finished, err := f.engine.FinishPurchase(f.owner.ID, p.ID, dec(t, "20.00"),
		decPtr(t, "19.00"), decPtr(t, "1.50"), decPtr(t, "2.50"), &at)
	if err != nil {
		t.Fatalf("finish purchase: %v", err)
	}
	if finished.Subtotal == nil || !finished.Subtotal.Equal(dec(t, "19.00")) {
		t.Errorf("subtotal = %v, want 19.00", finished.Subtotal)
	}
	if finished.Discount == nil || !finished.Discount.Equal(dec(t, "1.50")) {
		t.Errorf("discount = %v, want 1.50", finished.Discount)
	}
	if finished.Tax == nil || !finished.Tax.Equal(dec(t, "2.50")) {
		t.Errorf("tax = %v, want 2.50", finished.Tax)
	}
	if finished.FinishedAt == nil || !finished.FinishedAt.Equal(at) {
		t.Errorf("finished_at = %v, want %v", finished.FinishedAt, at)
	}
}

func TestFinishWithoutSupermarketEmitsNothing(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	brand, _ := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "Dairyland", "1L")
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})

	p, err := f.engine.CreatePurchase(f.owner.ID, nil, time.Now().UTC(), "USD", []int64{tpl.ID})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	lines, _ := f.purchases.ListLines(p.ID)
	checked := true
	if _, err := f.engine.UpdateLine(f.owner.ID, lines[0].ID, LineUpdate{
		Checked: &checked, BrandProductID: &brand.ID, UnitPrice: decPtr(t, "2.00"),
	}); err != nil {
		t.Fatalf("update line: %v", err)
	}

	if _, err := f.engine.FinishPurchase(f.owner.ID, p.ID, dec(t, "2.00"), nil, nil, nil, nil); err != nil {
		t.Fatalf("finish purchase: %v", err)
	}

	observations, _ := f.observations.ListByOwner(f.owner.ID)
	if len(observations) != 0 {
		t.Errorf("expected 0 observations without a supermarket, got %d", len(observations))
	}
}

func TestDeletePurchase(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})
	p, _ := f.engine.CreatePurchase(f.owner.ID, &f.market.ID, time.Now().UTC(), "USD", []int64{tpl.ID})

	if err := f.engine.DeletePurchase(f.owner.ID, p.ID); err != nil {
		t.Fatalf("delete purchase: %v", err)
	}

	_, _, err := f.engine.GetPurchase(f.owner.ID, p.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again reports not found.
	if err := f.engine.DeletePurchase(f.owner.ID, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestDeletedPurchaseExcludedFromHistory(t *testing.T) {
	f := setupEngineTest(t)

	milk := f.item(t, "Milk", nil)
	brand, _ := f.catalog.CreateBrandProduct(f.owner.ID, milk.ID, "Dairyland", "1L")
	tpl := f.template(t, "Weekly", model.TemplateItem{GenericItemID: milk.ID})

	p := f.completedPurchase(t, time.Now().UTC(), &brand.ID, "2.00", tpl.ID)
	if err := f.engine.DeletePurchase(f.owner.ID, p.ID); err != nil {
		t.Fatalf("delete purchase: %v", err)
	}

	rec, err := f.engine.Recommend(f.owner.ID, &f.market.ID, milk.ID)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if rec.BrandProductID != nil {
		t.Errorf("brand = %v, want nil (deleted purchases are not history)", *rec.BrandProductID)
	}
}

package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jthomaz/cartwise/internal/engine"
	"github.com/jthomaz/cartwise/internal/handler"
	"github.com/jthomaz/cartwise/internal/middleware"
	"github.com/jthomaz/cartwise/internal/store"
	ws "github.com/jthomaz/cartwise/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	supermarketH *handler.SupermarketHandler
	unitH        *handler.UnitHandler
	catalogH     *handler.CatalogHandler
	templateH    *handler.TemplateHandler
	purchaseH    *handler.PurchaseHandler
	observationH *handler.ObservationHandler
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	supermarketStore := store.NewSupermarketStore(db)
	unitStore := store.NewUnitStore(db)
	catalogStore := store.NewCatalogStore(db)
	templateStore := store.NewTemplateStore(db)
	purchaseStore := store.NewPurchaseStore(db)
	observationStore := store.NewObservationStore(db)

	eng := engine.New(templateStore, catalogStore, purchaseStore, observationStore, logger.With("component", "engine"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		supermarketH: handler.NewSupermarketHandler(supermarketStore),
		unitH:        handler.NewUnitHandler(unitStore),
		catalogH:     handler.NewCatalogHandler(catalogStore),
		templateH:    handler.NewTemplateHandler(templateStore, catalogStore),
		purchaseH:    handler.NewPurchaseHandler(eng, hub),
		observationH: handler.NewObservationHandler(observationStore, catalogStore, supermarketStore),
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Supermarket API routes
	mux.HandleFunc("POST /api/supermarkets", s.supermarketH.Create)
	mux.HandleFunc("GET /api/supermarkets", s.supermarketH.List)
	mux.HandleFunc("PUT /api/supermarkets/{id}", s.supermarketH.Update)
	mux.HandleFunc("DELETE /api/supermarkets/{id}", s.supermarketH.Delete)

	// Unit API routes
	mux.HandleFunc("POST /api/units", s.unitH.Create)
	mux.HandleFunc("GET /api/units", s.unitH.List)
	mux.HandleFunc("PUT /api/units/{id}", s.unitH.Update)
	mux.HandleFunc("DELETE /api/units/{id}", s.unitH.Delete)

	// Catalog API routes
	mux.HandleFunc("POST /api/items", s.catalogH.CreateItem)
	mux.HandleFunc("GET /api/items", s.catalogH.ListItems)
	mux.HandleFunc("GET /api/items/{id}", s.catalogH.GetItem)
	mux.HandleFunc("PUT /api/items/{id}", s.catalogH.UpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.catalogH.DeleteItem)
	mux.HandleFunc("POST /api/items/{item_id}/brands", s.catalogH.CreateBrandProduct)
	mux.HandleFunc("GET /api/items/{item_id}/brands", s.catalogH.ListBrandProducts)
	mux.HandleFunc("DELETE /api/brands/{id}", s.catalogH.DeleteBrandProduct)

	// Template API routes
	mux.HandleFunc("POST /api/templates", s.templateH.Create)
	mux.HandleFunc("GET /api/templates", s.templateH.List)
	mux.HandleFunc("GET /api/templates/{id}", s.templateH.Get)
	mux.HandleFunc("PUT /api/templates/{id}", s.templateH.Rename)
	mux.HandleFunc("DELETE /api/templates/{id}", s.templateH.Delete)
	mux.HandleFunc("POST /api/templates/{template_id}/items", s.templateH.AddItem)
	mux.HandleFunc("PUT /api/template-items/{id}", s.templateH.UpdateItem)
	mux.HandleFunc("DELETE /api/template-items/{id}", s.templateH.RemoveItem)

	// Purchase API routes
	mux.HandleFunc("POST /api/purchases", s.purchaseH.Create)
	mux.HandleFunc("GET /api/purchases", s.purchaseH.List)
	mux.HandleFunc("GET /api/purchases/{id}", s.purchaseH.Get)
	mux.HandleFunc("POST /api/purchases/{id}/finish", s.purchaseH.Finish)
	mux.HandleFunc("DELETE /api/purchases/{id}", s.purchaseH.Delete)
	mux.HandleFunc("POST /api/purchases/{purchase_id}/lines", s.purchaseH.AddLine)
	mux.HandleFunc("PUT /api/purchase-lines/{id}", s.purchaseH.UpdateLine)
	mux.HandleFunc("DELETE /api/purchase-lines/{id}", s.purchaseH.RemoveLine)
	mux.HandleFunc("GET /api/recommendations", s.purchaseH.Recommend)

	// Price observation API routes
	mux.HandleFunc("POST /api/observations", s.observationH.Create)
	mux.HandleFunc("GET /api/observations", s.observationH.List)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vitrine-shop/api/internal/auth"
	"github.com/vitrine-shop/api/internal/config"
	"github.com/vitrine-shop/api/internal/database"
	"github.com/vitrine-shop/api/internal/handler"
	mw "github.com/vitrine-shop/api/internal/middleware"
	"github.com/vitrine-shop/api/internal/service"
	"github.com/vitrine-shop/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(mw.RequestLogger)
	r.Use(chimw.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Public catalog with live price quotes
	catalogHandler := handler.NewCatalogHandler(queries)
	catalogHandler.RegisterRoutes(r)

	// Staff order feed (handles auth internally via query param)
	r.Get("/ws/staff/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// The lifecycle controller, shared by customer and staff surfaces.
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Customer checkout and own orders
		checkoutHandler := handler.NewCheckoutHandler(orderService, queries, hub)
		checkoutHandler.RegisterRoutes(r)

		// Staff back office
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(auth.RoleStaff, auth.RoleAdmin))

			orderHandler := handler.NewOrderHandler(orderService, queries, hub)
			r.Route("/staff/orders", orderHandler.RegisterRoutes)
		})
	})

	return r
}

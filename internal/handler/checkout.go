package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vitrine-shop/api/internal/database"
	"github.com/vitrine-shop/api/internal/middleware"
	"github.com/vitrine-shop/api/internal/order"
	"github.com/vitrine-shop/api/internal/service"
)

// CheckoutServicer defines the service methods needed by customer order
// handlers. Satisfied by *service.OrderService.
type CheckoutServicer interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*order.Order, error)
	Cancel(ctx context.Context, req service.CancelRequest) (*order.Order, error)
}

// CustomerOrderStore defines the read methods for a customer's own orders.
// Satisfied by *database.Queries.
type CustomerOrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// CheckoutHandler handles the customer-facing checkout and order endpoints.
type CheckoutHandler struct {
	svc   CheckoutServicer
	store CustomerOrderStore
	hub   Broadcaster
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc CheckoutServicer, store CustomerOrderStore, hub Broadcaster) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers customer order endpoints on the given Chi router.
// Expected to be mounted behind Authenticate.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
	r.Get("/orders/mine", h.ListMine)
	r.Get("/orders/mine/{id}", h.GetMine)
	r.Delete("/orders/mine/{id}", h.CancelMine)
}

// --- Request types ---

type checkoutRequest struct {
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	Items         []checkoutItemRequest `json:"items"`
}

type checkoutItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
}

type cancelMineRequest struct {
	Reason string `json:"reason"`
}

// --- Handlers ---

// Checkout handles POST /checkout. The order is created in pending_whatsapp;
// the storefront then opens the WhatsApp conversation with the order summary.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	name, phone := req.CustomerName, req.CustomerPhone
	if name == "" || phone == "" {
		user, err := h.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_name and customer_phone are required"})
			return
		}
		if name == "" {
			name = user.FullName
		}
		if phone == "" && user.Phone.Valid {
			phone = user.Phone.String
		}
	}
	if name == "" || phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_name and customer_phone are required"})
		return
	}

	items := make([]service.LineRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.LineRequest{VariantID: it.VariantID, Quantity: it.Quantity}
	}

	o, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		CustomerID:    claims.UserID,
		CustomerName:  name,
		CustomerPhone: phone,
		Items:         items,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	broadcastOrder(h.hub, EventOrderCreated, o)
	writeJSON(w, http.StatusCreated, o)
}

// ListMine handles GET /orders/mine.
func (h *CheckoutHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	rows, err := h.store.ListOrdersByCustomer(r.Context(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Msg("list customer orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orders := make([]*order.Order, 0, len(rows))
	for _, dbo := range rows {
		items, err := h.store.ListOrderItemsByOrder(r.Context(), dbo.ID)
		if err != nil {
			log.Error().Err(err).Msg("list order items")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		o, err := service.OrderFromRows(dbo, items)
		if err != nil {
			log.Error().Err(err).Msg("decode order")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		orders = append(orders, o)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// GetMine handles GET /orders/mine/{id}.
func (h *CheckoutHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	o, ok := h.loadOwnOrder(w, r, claims.UserID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// CancelMine handles DELETE /orders/mine/{id}. Customers can only cancel
// while the order is still pending_whatsapp; later cancellations go through
// staff.
func (h *CheckoutHandler) CancelMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	// Ownership check before touching the lifecycle.
	dbo, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Error().Err(err).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if dbo.CustomerID != claims.UserID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	var req cancelMineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		req.Reason = "cancelled by customer"
	}

	o, err := h.svc.Cancel(r.Context(), service.CancelRequest{
		OrderID: orderID,
		Reason:  req.Reason,
		Actor:   order.ActorCustomer,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	broadcastOrder(h.hub, EventOrderCancelled, o)
	writeJSON(w, http.StatusOK, o)
}

// --- Helpers ---

func (h *CheckoutHandler) loadOwnOrder(w http.ResponseWriter, r *http.Request, customerID uuid.UUID) (*order.Order, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return nil, false
	}

	dbo, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return nil, false
		}
		log.Error().Err(err).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil, false
	}
	// Orders of other customers are indistinguishable from missing ones.
	if dbo.CustomerID != customerID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return nil, false
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Msg("list order items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil, false
	}

	o, err := service.OrderFromRows(dbo, items)
	if err != nil {
		log.Error().Err(err).Msg("decode order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil, false
	}
	return o, true
}

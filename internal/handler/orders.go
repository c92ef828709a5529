package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/vitrine-shop/api/internal/database"
	"github.com/vitrine-shop/api/internal/order"
	"github.com/vitrine-shop/api/internal/service"
)

// OrderServicer defines the lifecycle operations needed by staff order
// handlers. Satisfied by *service.OrderService; narrow interface for
// testability.
type OrderServicer interface {
	Confirm(ctx context.Context, req service.ConfirmRequest) (*order.Order, error)
	AdvanceStatus(ctx context.Context, req service.AdvanceStatusRequest) (*order.Order, error)
	Cancel(ctx context.Context, req service.CancelRequest) (*order.Order, error)
	EditItems(ctx context.Context, req service.EditItemsRequest) (*order.Order, error)
	UpdateShippingCost(ctx context.Context, req service.UpdateShippingRequest) (*order.Order, error)
	MarkWhatsAppSent(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

// OrderStore defines the database read methods needed by staff order
// handlers. Satisfied by *database.Queries.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// OrderHandler handles the staff order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers staff order endpoints on the given Chi router.
// Expected to be mounted at /staff/orders behind RequireRole(STAFF, ADMIN).
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/confirm", h.Confirm)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
	r.Put("/{id}/items", h.EditItems)
	r.Patch("/{id}/shipping", h.UpdateShipping)
	r.Post("/{id}/whatsapp-sent", h.WhatsAppSent)
}

// --- Request / Response types ---

type confirmRequest struct {
	ShippingCost     int64  `json:"shipping_cost"`
	AdminNotes       string `json:"admin_notes"`
	ExpectedRevision int64  `json:"expected_revision"`
}

type updateStatusRequest struct {
	Status           string `json:"status"`
	AdminNotes       string `json:"admin_notes"`
	ExpectedRevision int64  `json:"expected_revision"`
}

type cancelRequest struct {
	Reason           string `json:"reason"`
	ExpectedRevision int64  `json:"expected_revision"`
}

type editItemsRequest struct {
	Items            []checkoutItemRequest `json:"items"`
	AdminNotes       string                `json:"admin_notes"`
	ExpectedRevision int64                 `json:"expected_revision"`
}

type updateShippingRequest struct {
	ShippingCost     int64 `json:"shipping_cost"`
	ExpectedRevision int64 `json:"expected_revision"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []*order.Order `json:"orders"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// --- Handlers ---

// List handles GET /staff/orders with optional status/date filters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !order.Status(s).Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		// End date is inclusive: filter up to the start of the next day.
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	rows, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("list orders")
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

	writeJSON(w, http.StatusOK, orderListResponse{Orders: orders, Limit: limit, Offset: offset})
}

// Get handles GET /staff/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

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

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
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

	writeJSON(w, http.StatusOK, o)
}

// Confirm handles POST /staff/orders/{id}/confirm.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	o, err := h.svc.Confirm(r.Context(), service.ConfirmRequest{
		OrderID:          orderID,
		ShippingCost:     req.ShippingCost,
		AdminNotes:       req.AdminNotes,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	broadcastOrder(h.hub, EventOrderUpdated, o)
	writeJSON(w, http.StatusOK, o)
}

// UpdateStatus handles PATCH /staff/orders/{id}/status. Only the immediate
// next forward state or "cancelled" is accepted.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	o, err := h.svc.AdvanceStatus(r.Context(), service.AdvanceStatusRequest{
		OrderID:          orderID,
		NewStatus:        order.Status(req.Status),
		AdminNotes:       req.AdminNotes,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	broadcastOrder(h.hub, EventOrderUpdated, o)
	writeJSON(w, http.StatusOK, o)
}

// Cancel handles DELETE /staff/orders/{id}. A reason is required.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	o, err := h.svc.Cancel(r.Context(), service.CancelRequest{
		OrderID:          orderID,
		Reason:           req.Reason,
		Actor:            order.ActorStaff,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	broadcastOrder(h.hub, EventOrderCancelled, o)
	writeJSON(w, http.StatusOK, o)
}

// EditItems handles PUT /staff/orders/{id}/items: the request's item list
// replaces the order's lines wholesale, re-snapshotted and re-priced.
func (h *OrderHandler) EditItems(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req editItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.LineRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.LineRequest{VariantID: it.VariantID, Quantity: it.Quantity}
	}

	o, err := h.svc.EditItems(r.Context(), service.EditItemsRequest{
		OrderID:          orderID,
		Items:            items,
		AdminNotes:       req.AdminNotes,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	broadcastOrder(h.hub, EventOrderUpdated, o)
	writeJSON(w, http.StatusOK, o)
}

// UpdateShipping handles PATCH /staff/orders/{id}/shipping.
func (h *OrderHandler) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req updateShippingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	o, err := h.svc.UpdateShippingCost(r.Context(), service.UpdateShippingRequest{
		OrderID:          orderID,
		ShippingCost:     req.ShippingCost,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	broadcastOrder(h.hub, EventOrderUpdated, o)
	writeJSON(w, http.StatusOK, o)
}

// WhatsAppSent handles POST /staff/orders/{id}/whatsapp-sent. Idempotent.
func (h *OrderHandler) WhatsAppSent(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.MarkWhatsAppSent(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// --- Helpers ---

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return orderID, true
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vitrine-shop/api/internal/database"
	"github.com/vitrine-shop/api/internal/inventory"
	"github.com/vitrine-shop/api/internal/order"
	"github.com/vitrine-shop/api/internal/pricing"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service. The first four are the lifecycle
// taxonomy; the rest are input validation.
var (
	ErrNotFound               = errors.New("order not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInvalidOrderEdit       = errors.New("invalid order edit")
	ErrConcurrentModification = errors.New("order was modified concurrently")

	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrInvalidVariantID    = errors.New("invalid variant_id")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrVariantUnavailable  = errors.New("variant is not available")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidShippingCost = errors.New("shipping cost must be >= 0")
	ErrCancelReason        = errors.New("cancellation reason is required")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the lifecycle controller needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	SetOrderWhatsAppSent(ctx context.Context, id uuid.UUID, sentAt pgtype.Timestamptz) (database.Order, error)
	GetVariantForOrder(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error)
	AdjustVariantStock(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService owns the order lifecycle: creation, status transitions, item
// and shipping edits. Every mutation runs in one transaction with the order
// row locked, and re-prices items through the pricing engine where the
// lifecycle demands it.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	now      func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, now: time.Now}
}

// --- Request types ---

// LineRequest is one requested order line.
type LineRequest struct {
	VariantID string
	Quantity  int64
}

// CheckoutRequest creates a new order in pending_whatsapp.
type CheckoutRequest struct {
	CustomerID    uuid.UUID
	CustomerName  string
	CustomerPhone string
	Items         []LineRequest
}

// ConfirmRequest confirms a pending order and sets its shipping cost.
type ConfirmRequest struct {
	OrderID          uuid.UUID
	ShippingCost     int64
	AdminNotes       string
	ExpectedRevision int64
}

// AdvanceStatusRequest moves an order to its next forward state, or cancels it.
type AdvanceStatusRequest struct {
	OrderID          uuid.UUID
	NewStatus        order.Status
	AdminNotes       string
	ExpectedRevision int64
}

// CancelRequest cancels an order on behalf of the given actor.
type CancelRequest struct {
	OrderID          uuid.UUID
	Reason           string
	Actor            order.Actor
	ExpectedRevision int64
}

// EditItemsRequest replaces an order's item list wholesale.
type EditItemsRequest struct {
	OrderID          uuid.UUID
	Items            []LineRequest
	AdminNotes       string
	ExpectedRevision int64
}

// UpdateShippingRequest changes the shipping cost of an editable order.
type UpdateShippingRequest struct {
	OrderID          uuid.UUID
	ShippingCost     int64
	ExpectedRevision int64
}

// --- Operations ---

// Checkout validates the cart, snapshots and prices every line, decrements
// stock, and creates the order in pending_whatsapp. Retries on order number
// unique constraint violations (concurrent checkouts race for the same MAX).
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (*order.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.checkoutTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) checkoutTx(ctx context.Context, req CheckoutRequest) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	now := s.now()

	items, err := s.buildItems(ctx, store, req.Items, now)
	if err != nil {
		return nil, err
	}

	// Stock is checked against the cart's total per variant, so the same
	// variant split across lines cannot slip past the guard.
	required := make(map[uuid.UUID]int64)
	for _, it := range items {
		required[it.item.VariantID] += it.item.Quantity
	}
	for i, it := range items {
		if it.row.Stock < required[it.item.VariantID] && !it.row.AllowBackorder {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInsufficientStock)
		}
	}

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("VIT-%05d", nextNum)

	domain := &order.Order{
		OrderNumber:   orderNumber,
		Status:        order.StatusPendingWhatsApp,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	}
	for _, it := range items {
		domain.Items = append(domain.Items, it.item)
	}
	domain.Recalculate()

	created, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:   orderNumber,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Status:        string(order.StatusPendingWhatsApp),
		Subtotal:      domain.Subtotal,
		TotalDiscount: domain.TotalDiscount,
		ShippingCost:  domain.ShippingCost,
		Total:         domain.Total,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	inv := inventory.New(store)
	for _, it := range items {
		snapshot, err := json.Marshal(it.item.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot: %w", err)
		}
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:         created.ID,
			VariantID:       it.item.VariantID,
			VariantSnapshot: snapshot,
			PricePerUnit:    it.item.PricePerUnit,
			Quantity:        it.item.Quantity,
			Discount:        it.item.Discount,
			Subtotal:        it.item.Subtotal,
		}); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		if err := inv.AdjustStock(ctx, it.item.VariantID, -it.item.Quantity, inventory.ReasonOrderPlaced); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	domain.ID = created.ID
	domain.Revision = created.Revision
	domain.CreatedAt = created.CreatedAt
	domain.UpdatedAt = created.UpdatedAt
	return domain, nil
}

// Confirm moves a pending_whatsapp order to confirmed, sets the shipping
// cost, and recomputes the total.
func (s *OrderService) Confirm(ctx context.Context, req ConfirmRequest) (*order.Order, error) {
	if req.ShippingCost < 0 {
		return nil, ErrInvalidShippingCost
	}
	return s.mutate(ctx, req.OrderID, req.ExpectedRevision, func(ctx context.Context, store OrderStore, o *order.Order) error {
		if !order.CanConfirm(o.Status) {
			return fmt.Errorf("%w: cannot confirm from %s", ErrInvalidTransition, o.Status)
		}
		o.Status = order.StatusConfirmed
		o.ShippingCost = req.ShippingCost
		o.AppendAdminNotes(req.AdminNotes)
		o.Recalculate()
		return nil
	})
}

// AdvanceStatus moves the order to the single next forward state, or cancels
// it. Skipping intermediate states is rejected. Totals are not recomputed.
func (s *OrderService) AdvanceStatus(ctx context.Context, req AdvanceStatusRequest) (*order.Order, error) {
	if !req.NewStatus.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.NewStatus)
	}
	return s.mutate(ctx, req.OrderID, req.ExpectedRevision, func(ctx context.Context, store OrderStore, o *order.Order) error {
		if !order.CanTransition(o.Status, req.NewStatus) {
			return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, o.Status, req.NewStatus)
		}
		if req.NewStatus == order.StatusCancelled {
			o.AppendAdminNotes(req.AdminNotes)
			return s.applyCancel(ctx, store, o, "cancelled by staff")
		}
		o.Status = req.NewStatus
		o.AppendAdminNotes(req.AdminNotes)
		return nil
	})
}

// Cancel cancels the order. Staff may cancel any non-terminal order;
// customers only while it is still pending_whatsapp. Stock decremented for
// the order's items is restored.
func (s *OrderService) Cancel(ctx context.Context, req CancelRequest) (*order.Order, error) {
	if req.Reason == "" {
		return nil, ErrCancelReason
	}
	return s.mutate(ctx, req.OrderID, req.ExpectedRevision, func(ctx context.Context, store OrderStore, o *order.Order) error {
		if !order.CanCancel(o.Status, req.Actor) {
			return fmt.Errorf("%w: cannot cancel from %s as %s", ErrInvalidTransition, o.Status, req.Actor)
		}
		return s.applyCancel(ctx, store, o, req.Reason)
	})
}

// applyCancel flips the order to cancelled and restores its stock.
func (s *OrderService) applyCancel(ctx context.Context, store OrderStore, o *order.Order, reason string) error {
	now := s.now()
	o.Status = order.StatusCancelled
	o.CancellationReason = reason
	o.CancelledAt = &now

	inv := inventory.New(store)
	for _, it := range o.Items {
		if err := inv.AdjustStock(ctx, it.VariantID, it.Quantity, inventory.ReasonOrderCancelled); err != nil {
			return err
		}
	}
	return nil
}

// EditItems replaces the order's items wholesale. Every line is
// re-snapshotted from the live catalog and re-priced at its new quantity;
// stock is adjusted by the per-variant delta between the old and new lists.
func (s *OrderService) EditItems(ctx context.Context, req EditItemsRequest) (*order.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: resulting item list is empty", ErrInvalidOrderEdit)
	}
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	return s.mutate(ctx, req.OrderID, req.ExpectedRevision, func(ctx context.Context, store OrderStore, o *order.Order) error {
		if !order.Editable(o.Status) {
			return fmt.Errorf("%w: order is %s", ErrInvalidOrderEdit, o.Status)
		}

		items, err := s.buildItems(ctx, store, req.Items, s.now())
		if err != nil {
			return err
		}

		// Per-variant stock delta between the old and new item lists.
		// Positive restores stock, negative consumes it.
		deltas := make(map[uuid.UUID]int64)
		for _, it := range o.Items {
			deltas[it.VariantID] += it.Quantity
		}
		for _, it := range items {
			deltas[it.item.VariantID] -= it.item.Quantity
		}
		for i, it := range items {
			needed := -deltas[it.item.VariantID]
			if needed > 0 && it.row.Stock < needed && !it.row.AllowBackorder {
				return fmt.Errorf("item[%d]: %w", i, ErrInsufficientStock)
			}
		}

		inv := inventory.New(store)
		for variantID, delta := range deltas {
			if err := inv.AdjustStock(ctx, variantID, delta, inventory.ReasonOrderEdited); err != nil {
				return err
			}
		}

		if err := store.DeleteOrderItems(ctx, o.ID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		o.Items = o.Items[:0]
		for _, it := range items {
			snapshot, err := json.Marshal(it.item.Snapshot)
			if err != nil {
				return fmt.Errorf("marshal snapshot: %w", err)
			}
			if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
				OrderID:         o.ID,
				VariantID:       it.item.VariantID,
				VariantSnapshot: snapshot,
				PricePerUnit:    it.item.PricePerUnit,
				Quantity:        it.item.Quantity,
				Discount:        it.item.Discount,
				Subtotal:        it.item.Subtotal,
			}); err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			o.Items = append(o.Items, it.item)
		}

		o.AppendAdminNotes(req.AdminNotes)
		o.Recalculate()
		return nil
	})
}

// UpdateShippingCost changes the shipping cost within the same editable
// window as item edits and recomputes the total.
func (s *OrderService) UpdateShippingCost(ctx context.Context, req UpdateShippingRequest) (*order.Order, error) {
	if req.ShippingCost < 0 {
		return nil, ErrInvalidShippingCost
	}
	return s.mutate(ctx, req.OrderID, req.ExpectedRevision, func(ctx context.Context, store OrderStore, o *order.Order) error {
		if !order.Editable(o.Status) {
			return fmt.Errorf("%w: order is %s", ErrInvalidOrderEdit, o.Status)
		}
		o.ShippingCost = req.ShippingCost
		o.Recalculate()
		return nil
	})
}

// MarkWhatsAppSent records that the checkout message went out. Idempotent;
// the sent flag is write-once and no other operation touches it.
func (s *OrderService) MarkWhatsAppSent(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	dbo, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !dbo.WhatsappSent {
		dbo, err = store.SetOrderWhatsAppSent(ctx, orderID, pgtype.Timestamptz{Time: s.now(), Valid: true})
		if err != nil {
			return nil, fmt.Errorf("mark whatsapp sent: %w", err)
		}
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return OrderFromRows(dbo, items)
}

// --- Shared plumbing ---

// mutate runs fn against the locked, fully loaded order inside one
// transaction, then persists whatever fn changed. The persist path cannot
// write the WhatsApp notification fields, so they survive every operation
// untouched.
func (s *OrderService) mutate(
	ctx context.Context,
	orderID uuid.UUID,
	expectedRevision int64,
	fn func(ctx context.Context, store OrderStore, o *order.Order) error,
) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	dbo, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if expectedRevision > 0 && dbo.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: revision %d, expected %d", ErrConcurrentModification, dbo.Revision, expectedRevision)
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	o, err := OrderFromRows(dbo, items)
	if err != nil {
		return nil, err
	}

	if err := fn(ctx, store, o); err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:                 o.ID,
		Status:             string(o.Status),
		Subtotal:           o.Subtotal,
		TotalDiscount:      o.TotalDiscount,
		ShippingCost:       o.ShippingCost,
		Total:              o.Total,
		CancellationReason: textOrNull(o.CancellationReason),
		AdminNotes:         textOrNull(o.AdminNotes),
		CancelledAt:        timestamptzOrNull(o.CancelledAt),
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.Revision = updated.Revision
	o.UpdatedAt = updated.UpdatedAt
	return o, nil
}

// builtItem pairs a priced domain item with the variant row it came from,
// so callers can run stock checks.
type builtItem struct {
	item order.Item
	row  database.GetVariantForOrderRow
}

// buildItems resolves, snapshots, and prices every requested line as the
// catalog stands right now.
func (s *OrderService) buildItems(ctx context.Context, store OrderStore, lines []LineRequest, now time.Time) ([]builtItem, error) {
	items := make([]builtItem, 0, len(lines))
	for i, line := range lines {
		variantID, err := uuid.Parse(line.VariantID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidVariantID)
		}
		row, err := store.GetVariantForOrder(ctx, variantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrVariantNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get variant: %w", i, err)
		}
		if !row.Active || !row.ProductActive {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrVariantUnavailable)
		}

		variant, parent := pricingInputs(row)
		res := pricing.PriceVariant(variant, line.Quantity, parent, now)

		items = append(items, builtItem{
			item: order.Item{
				VariantID:    variantID,
				Snapshot:     snapshotFromRow(row),
				PricePerUnit: row.Price,
				Quantity:     line.Quantity,
				Discount:     res.TotalDiscount,
				Subtotal:     row.Price*line.Quantity - res.TotalDiscount,
			},
			row: row,
		})
	}
	return items, nil
}

// pricingInputs converts a variant row into the engine's input types.
// Unreadable discount JSON is treated as no discount, matching the engine's
// degrade-to-absent contract.
func pricingInputs(row database.GetVariantForOrderRow) (pricing.Variant, *pricing.ProductParent) {
	v := pricing.Variant{
		ID:             row.ID,
		SKU:            row.SKU,
		Name:           row.Name,
		Price:          row.Price,
		Stock:          row.Stock,
		AllowBackorder: row.AllowBackorder,
	}
	if len(row.FixedDiscount) > 0 {
		var fd pricing.FixedDiscount
		if err := json.Unmarshal(row.FixedDiscount, &fd); err == nil {
			v.FixedDiscount = &fd
		}
	}
	if len(row.TieredDiscount) > 0 {
		var td pricing.TieredDiscount
		if err := json.Unmarshal(row.TieredDiscount, &td); err == nil {
			v.TieredDiscount = &td
		}
	}

	parent := &pricing.ProductParent{
		ID:   row.ProductID,
		Name: row.ProductName,
	}
	if len(row.ProductLegacyDiscounts) > 0 {
		var legacy []pricing.LegacyDiscount
		if err := json.Unmarshal(row.ProductLegacyDiscounts, &legacy); err == nil {
			parent.LegacyDiscounts = legacy
		}
	}
	return v, parent
}

func snapshotFromRow(row database.GetVariantForOrderRow) order.VariantSnapshot {
	snap := order.VariantSnapshot{
		SKU:  row.SKU,
		Name: row.Name,
	}
	if row.Image.Valid {
		snap.Image = row.Image.String
	}
	if len(row.Attributes) > 0 {
		var attrs map[string]string
		if err := json.Unmarshal(row.Attributes, &attrs); err == nil {
			snap.Attributes = attrs
		}
	}
	return snap
}

// OrderFromRows maps database rows to the domain order, decoding the frozen
// variant snapshots as stored.
func OrderFromRows(dbo database.Order, items []database.OrderItem) (*order.Order, error) {
	o := &order.Order{
		ID:            dbo.ID,
		OrderNumber:   dbo.OrderNumber,
		Status:        order.Status(dbo.Status),
		Subtotal:      dbo.Subtotal,
		TotalDiscount: dbo.TotalDiscount,
		ShippingCost:  dbo.ShippingCost,
		Total:         dbo.Total,
		CustomerID:    dbo.CustomerID,
		CustomerName:  dbo.CustomerName,
		CustomerPhone: dbo.CustomerPhone,
		WhatsAppSent:  dbo.WhatsappSent,
		Revision:      dbo.Revision,
		CreatedAt:     dbo.CreatedAt,
		UpdatedAt:     dbo.UpdatedAt,
	}
	if dbo.CancellationReason.Valid {
		o.CancellationReason = dbo.CancellationReason.String
	}
	if dbo.AdminNotes.Valid {
		o.AdminNotes = dbo.AdminNotes.String
	}
	if dbo.WhatsappSentAt.Valid {
		t := dbo.WhatsappSentAt.Time
		o.WhatsAppSentAt = &t
	}
	if dbo.CancelledAt.Valid {
		t := dbo.CancelledAt.Time
		o.CancelledAt = &t
	}

	for _, it := range items {
		var snap order.VariantSnapshot
		if len(it.VariantSnapshot) > 0 {
			if err := json.Unmarshal(it.VariantSnapshot, &snap); err != nil {
				return nil, fmt.Errorf("decode snapshot for item %s: %w", it.ID, err)
			}
		}
		o.Items = append(o.Items, order.Item{
			VariantID:    it.VariantID,
			Snapshot:     snap,
			PricePerUnit: it.PricePerUnit,
			Quantity:     it.Quantity,
			Discount:     it.Discount,
			Subtotal:     it.Subtotal,
		})
	}
	return o, nil
}

// isOrderNumberConflict checks for a unique constraint violation on the
// order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func timestamptzOrNull(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

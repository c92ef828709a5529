package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/vitrine-shop/api/internal/database"
	"github.com/vitrine-shop/api/internal/order"
	"github.com/vitrine-shop/api/internal/pricing"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr == nil {
		m.committed = true
	}
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior and
// records writes so tests can assert on side effects.
type mockOrderStore struct {
	getNextOrderNumberFn  func(ctx context.Context) (int32, error)
	createOrderFn         func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn     func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderForUpdateFn   func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrderItemsFn      func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	deleteOrderItemsFn    func(ctx context.Context, orderID uuid.UUID) error
	updateOrderFn         func(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	setWhatsAppSentFn     func(ctx context.Context, id uuid.UUID, sentAt pgtype.Timestamptz) (database.Order, error)
	getVariantForOrderFn  func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error)
	adjustVariantStockFn  func(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
	createStockMovementFn func(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)

	createdItems  []database.CreateOrderItemParams
	deletedOrders []uuid.UUID
	updatedOrders []database.UpdateOrderParams
	movements     []database.CreateStockMovementParams
}

func (m *mockOrderStore) GetNextOrderNumber(ctx context.Context) (int32, error) {
	if m.getNextOrderNumberFn != nil {
		return m.getNextOrderNumberFn(ctx)
	}
	return 1, nil
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, arg)
	}
	return database.Order{
		ID:            uuid.New(),
		OrderNumber:   arg.OrderNumber,
		CustomerID:    arg.CustomerID,
		CustomerName:  arg.CustomerName,
		CustomerPhone: arg.CustomerPhone,
		Status:        arg.Status,
		Subtotal:      arg.Subtotal,
		TotalDiscount: arg.TotalDiscount,
		ShippingCost:  arg.ShippingCost,
		Total:         arg.Total,
		Revision:      1,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}, nil
}

func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	m.createdItems = append(m.createdItems, arg)
	if m.createOrderItemFn != nil {
		return m.createOrderItemFn(ctx, arg)
	}
	return database.OrderItem{
		ID:              uuid.New(),
		OrderID:         arg.OrderID,
		VariantID:       arg.VariantID,
		VariantSnapshot: arg.VariantSnapshot,
		PricePerUnit:    arg.PricePerUnit,
		Quantity:        arg.Quantity,
		Discount:        arg.Discount,
		Subtotal:        arg.Subtotal,
	}, nil
}

func (m *mockOrderStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderForUpdateFn != nil {
		return m.getOrderForUpdateFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsFn != nil {
		return m.listOrderItemsFn(ctx, orderID)
	}
	return nil, nil
}

func (m *mockOrderStore) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	m.deletedOrders = append(m.deletedOrders, orderID)
	if m.deleteOrderItemsFn != nil {
		return m.deleteOrderItemsFn(ctx, orderID)
	}
	return nil
}

func (m *mockOrderStore) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	m.updatedOrders = append(m.updatedOrders, arg)
	if m.updateOrderFn != nil {
		return m.updateOrderFn(ctx, arg)
	}
	return database.Order{
		ID:                 arg.ID,
		Status:             arg.Status,
		Subtotal:           arg.Subtotal,
		TotalDiscount:      arg.TotalDiscount,
		ShippingCost:       arg.ShippingCost,
		Total:              arg.Total,
		CancellationReason: arg.CancellationReason,
		AdminNotes:         arg.AdminNotes,
		CancelledAt:        arg.CancelledAt,
		Revision:           2,
		UpdatedAt:          testNow,
	}, nil
}

func (m *mockOrderStore) SetOrderWhatsAppSent(ctx context.Context, id uuid.UUID, sentAt pgtype.Timestamptz) (database.Order, error) {
	if m.setWhatsAppSentFn != nil {
		return m.setWhatsAppSentFn(ctx, id, sentAt)
	}
	return database.Order{ID: id, WhatsappSent: true, WhatsappSentAt: sentAt}, nil
}

func (m *mockOrderStore) GetVariantForOrder(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
	if m.getVariantForOrderFn != nil {
		return m.getVariantForOrderFn(ctx, id)
	}
	return database.GetVariantForOrderRow{}, pgx.ErrNoRows
}

func (m *mockOrderStore) AdjustVariantStock(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	if m.adjustVariantStockFn != nil {
		return m.adjustVariantStockFn(ctx, id, delta)
	}
	return 0, nil
}

func (m *mockOrderStore) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
	m.movements = append(m.movements, arg)
	if m.createStockMovementFn != nil {
		return m.createStockMovementFn(ctx, arg)
	}
	return database.StockMovement{VariantID: arg.VariantID, Delta: arg.Delta, Reason: arg.Reason}, nil
}

// --- Test helpers ---

func newTestService(store *mockOrderStore) *OrderService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	svc := NewOrderService(pool, func(db database.DBTX) OrderStore { return store })
	svc.now = func() time.Time { return testNow }
	return svc
}

// variantRow builds a plain in-stock variant row.
func variantRow(id uuid.UUID, price, stock int64) database.GetVariantForOrderRow {
	return database.GetVariantForOrderRow{
		Variant: database.Variant{
			ID:        id,
			ProductID: uuid.New(),
			SKU:       "CAF-500",
			Name:      "Café Torrado 500g",
			Price:     price,
			Stock:     stock,
			Active:    true,
			CreatedAt: testNow,
			UpdatedAt: testNow,
		},
		ProductName:   "Café Torrado",
		ProductActive: true,
	}
}

func withFixedDiscount(row database.GetVariantForOrderRow, percent int64) database.GetVariantForOrderRow {
	fd := pricing.FixedDiscount{
		Enabled: true,
		Type:    pricing.DiscountTypePercentage,
		Value:   decimal.NewFromInt(percent),
	}
	raw, _ := json.Marshal(fd)
	row.FixedDiscount = raw
	return row
}

// orderRow builds an order row at the given status with one existing item.
func orderRow(id uuid.UUID, status order.Status) database.Order {
	return database.Order{
		ID:            id,
		OrderNumber:   "VIT-00042",
		CustomerID:    uuid.New(),
		CustomerName:  "Maria Souza",
		CustomerPhone: "+5511999990000",
		Status:        string(status),
		Subtotal:      2000,
		TotalDiscount: 0,
		ShippingCost:  0,
		Total:         2000,
		Revision:      1,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
}

func itemRow(orderID, variantID uuid.UUID, price, qty int64) database.OrderItem {
	snap, _ := json.Marshal(order.VariantSnapshot{SKU: "CAF-500", Name: "Café Torrado 500g"})
	return database.OrderItem{
		ID:              uuid.New(),
		OrderID:         orderID,
		VariantID:       variantID,
		VariantSnapshot: snap,
		PricePerUnit:    price,
		Quantity:        qty,
		Discount:        0,
		Subtotal:        price * qty,
	}
}

// storeForOrder wires a mock store around one order row and its items.
func storeForOrder(dbo database.Order, items []database.OrderItem) *mockOrderStore {
	return &mockOrderStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			if id == dbo.ID {
				return dbo, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
		listOrderItemsFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			return items, nil
		},
	}
}

func checkInvariant(t *testing.T, o *order.Order) {
	t.Helper()
	if o.Total != o.Subtotal-o.TotalDiscount+o.ShippingCost {
		t.Fatalf("aggregate invariant violated: total=%d subtotal=%d discount=%d shipping=%d",
			o.Total, o.Subtotal, o.TotalDiscount, o.ShippingCost)
	}
}

// =====================
// Checkout
// =====================

func TestCheckout_EmptyItems(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{CustomerID: uuid.New()})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

func TestCheckout_InvalidQuantity(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: uuid.New(),
		Items:      []LineRequest{{VariantID: uuid.NewString(), Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestCheckout_VariantNotFound(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: uuid.New(),
		Items:      []LineRequest{{VariantID: uuid.NewString(), Quantity: 1}},
	})
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got: %v", err)
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	variantID := uuid.New()
	store := &mockOrderStore{
		getVariantForOrderFn: func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
			return variantRow(variantID, 1000, 2), nil
		},
	}
	svc := newTestService(store)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: uuid.New(),
		Items:      []LineRequest{{VariantID: variantID.String(), Quantity: 5}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestCheckout_InsufficientStockAcrossDuplicateLines(t *testing.T) {
	variantID := uuid.New()
	store := &mockOrderStore{
		getVariantForOrderFn: func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
			return variantRow(variantID, 1000, 6), nil
		},
	}
	svc := newTestService(store)

	// Each line alone fits within stock 6; together they do not.
	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: uuid.New(),
		Items: []LineRequest{
			{VariantID: variantID.String(), Quantity: 5},
			{VariantID: variantID.String(), Quantity: 5},
		},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if len(store.movements) != 0 {
		t.Fatalf("expected no stock movements, got %+v", store.movements)
	}
}

func TestCheckout_BackorderAllowed(t *testing.T) {
	variantID := uuid.New()
	row := variantRow(variantID, 1000, 0)
	row.AllowBackorder = true
	store := &mockOrderStore{
		getVariantForOrderFn: func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
			return row, nil
		},
	}
	svc := newTestService(store)

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: uuid.New(),
		Items:      []LineRequest{{VariantID: variantID.String(), Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != order.StatusPendingWhatsApp {
		t.Fatalf("expected pending_whatsapp, got %s", o.Status)
	}
}

func TestCheckout_AppliesDiscountsAndDecrementsStock(t *testing.T) {
	variantID := uuid.New()
	store := &mockOrderStore{
		getVariantForOrderFn: func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
			return withFixedDiscount(variantRow(variantID, 1000, 50), 10), nil
		},
	}
	svc := newTestService(store)

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID:    uuid.New(),
		CustomerName:  "Maria Souza",
		CustomerPhone: "+5511999990000",
		Items:         []LineRequest{{VariantID: variantID.String(), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.OrderNumber != "VIT-00001" {
		t.Fatalf("expected VIT-00001, got %s", o.OrderNumber)
	}
	it := o.Items[0]
	if it.PricePerUnit != 1000 {
		t.Fatalf("price per unit must be the base price, got %d", it.PricePerUnit)
	}
	if it.Discount != 200 {
		t.Fatalf("expected discount 200 (10%% x 2), got %d", it.Discount)
	}
	if it.Subtotal != 1800 {
		t.Fatalf("expected item subtotal 1800, got %d", it.Subtotal)
	}
	checkInvariant(t, o)

	if len(store.movements) != 1 || store.movements[0].Delta != -2 {
		t.Fatalf("expected one -2 stock movement, got %+v", store.movements)
	}
	if store.movements[0].Reason != "order_placed" {
		t.Fatalf("unexpected movement reason %q", store.movements[0].Reason)
	}
}

func TestCheckout_RetriesOnOrderNumberConflict(t *testing.T) {
	variantID := uuid.New()
	attempts := 0
	store := &mockOrderStore{
		getVariantForOrderFn: func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
			return variantRow(variantID, 1000, 10), nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			attempts++
			if attempts == 1 {
				return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
			}
			return database.Order{ID: uuid.New(), OrderNumber: arg.OrderNumber, Status: arg.Status, Revision: 1}, nil
		},
	}
	svc := newTestService(store)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: uuid.New(),
		Items:      []LineRequest{{VariantID: variantID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected a retry after the conflict, got %d attempts", attempts)
	}
}

// =====================
// Confirm
// =====================

func TestConfirm_FromPending(t *testing.T) {
	orderID := uuid.New()
	variantID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusPendingWhatsApp),
		[]database.OrderItem{itemRow(orderID, variantID, 1000, 2)})
	svc := newTestService(store)

	o, err := svc.Confirm(context.Background(), ConfirmRequest{
		OrderID:      orderID,
		ShippingCost: 1500,
		AdminNotes:   "confirmed by phone",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != order.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", o.Status)
	}
	if o.ShippingCost != 1500 || o.Total != 3500 {
		t.Fatalf("expected total 3500, got shipping=%d total=%d", o.ShippingCost, o.Total)
	}
	if o.AdminNotes != "confirmed by phone" {
		t.Fatalf("expected admin notes, got %q", o.AdminNotes)
	}
	checkInvariant(t, o)
}

func TestConfirm_RejectedOutsidePending(t *testing.T) {
	for _, status := range []order.Status{
		order.StatusConfirmed, order.StatusPreparing, order.StatusShipped,
		order.StatusCompleted, order.StatusCancelled,
	} {
		orderID := uuid.New()
		store := storeForOrder(orderRow(orderID, status), nil)
		svc := newTestService(store)

		_, err := svc.Confirm(context.Background(), ConfirmRequest{OrderID: orderID, ShippingCost: 100})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("status %s: expected ErrInvalidTransition, got: %v", status, err)
		}
	}
}

func TestConfirm_NegativeShipping(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.Confirm(context.Background(), ConfirmRequest{OrderID: uuid.New(), ShippingCost: -1})
	if !errors.Is(err, ErrInvalidShippingCost) {
		t.Fatalf("expected ErrInvalidShippingCost, got: %v", err)
	}
}

func TestConfirm_NotFound(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.Confirm(context.Background(), ConfirmRequest{OrderID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestConfirm_RevisionMismatch(t *testing.T) {
	orderID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusPendingWhatsApp), nil)
	svc := newTestService(store)

	_, err := svc.Confirm(context.Background(), ConfirmRequest{
		OrderID:          orderID,
		ShippingCost:     100,
		ExpectedRevision: 7,
	})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got: %v", err)
	}
}

// =====================
// AdvanceStatus
// =====================

func TestAdvanceStatus_Forward(t *testing.T) {
	orderID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusConfirmed), nil)
	svc := newTestService(store)

	o, err := svc.AdvanceStatus(context.Background(), AdvanceStatusRequest{
		OrderID:   orderID,
		NewStatus: order.StatusPreparing,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != order.StatusPreparing {
		t.Fatalf("expected preparing, got %s", o.Status)
	}
}

func TestAdvanceStatus_SkipRejected(t *testing.T) {
	orderID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusPendingWhatsApp), nil)
	svc := newTestService(store)

	_, err := svc.AdvanceStatus(context.Background(), AdvanceStatusRequest{
		OrderID:   orderID,
		NewStatus: order.StatusShipped,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for skip, got: %v", err)
	}
}

func TestAdvanceStatus_UnknownStatus(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.AdvanceStatus(context.Background(), AdvanceStatusRequest{
		OrderID:   uuid.New(),
		NewStatus: order.Status("delivered"),
	})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}
}

func TestAdvanceStatus_ToCancelledRestoresStock(t *testing.T) {
	orderID := uuid.New()
	variantID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusConfirmed),
		[]database.OrderItem{itemRow(orderID, variantID, 1000, 3)})
	svc := newTestService(store)

	o, err := svc.AdvanceStatus(context.Background(), AdvanceStatusRequest{
		OrderID:   orderID,
		NewStatus: order.StatusCancelled,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != order.StatusCancelled || o.CancelledAt == nil {
		t.Fatalf("expected cancelled with timestamp, got %+v", o)
	}
	if len(store.movements) != 1 || store.movements[0].Delta != 3 {
		t.Fatalf("expected +3 stock restore, got %+v", store.movements)
	}
}

func TestAdvanceStatus_ToCancelledAppendsAdminNotes(t *testing.T) {
	orderID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusConfirmed), nil)
	svc := newTestService(store)

	o, err := svc.AdvanceStatus(context.Background(), AdvanceStatusRequest{
		OrderID:    orderID,
		NewStatus:  order.StatusCancelled,
		AdminNotes: "customer asked to cancel via WhatsApp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.AdminNotes != "customer asked to cancel via WhatsApp" {
		t.Fatalf("expected admin notes recorded, got %q", o.AdminNotes)
	}
	if o.CancellationReason != "cancelled by staff" {
		t.Fatalf("expected default cancel reason, got %q", o.CancellationReason)
	}
}

// =====================
// Cancel
// =====================

func TestCancel_StaffFromShipped(t *testing.T) {
	orderID := uuid.New()
	variantID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusShipped),
		[]database.OrderItem{itemRow(orderID, variantID, 1000, 2)})
	svc := newTestService(store)

	o, err := svc.Cancel(context.Background(), CancelRequest{
		OrderID: orderID,
		Reason:  "customer unreachable",
		Actor:   order.ActorStaff,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.CancellationReason != "customer unreachable" {
		t.Fatalf("expected reason recorded, got %q", o.CancellationReason)
	}
	if len(store.movements) != 1 || store.movements[0].Delta != 2 || store.movements[0].Reason != "order_cancelled" {
		t.Fatalf("expected stock restore movement, got %+v", store.movements)
	}
}

func TestCancel_TerminalRejected(t *testing.T) {
	for _, status := range []order.Status{order.StatusCompleted, order.StatusCancelled} {
		orderID := uuid.New()
		store := storeForOrder(orderRow(orderID, status), nil)
		svc := newTestService(store)

		_, err := svc.Cancel(context.Background(), CancelRequest{
			OrderID: orderID,
			Reason:  "too late",
			Actor:   order.ActorStaff,
		})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("status %s: expected ErrInvalidTransition, got: %v", status, err)
		}
	}
}

func TestCancel_CustomerOnlyFromPending(t *testing.T) {
	orderID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusPendingWhatsApp), nil)
	svc := newTestService(store)

	if _, err := svc.Cancel(context.Background(), CancelRequest{
		OrderID: orderID,
		Reason:  "changed my mind",
		Actor:   order.ActorCustomer,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orderID = uuid.New()
	store = storeForOrder(orderRow(orderID, order.StatusConfirmed), nil)
	svc = newTestService(store)

	_, err := svc.Cancel(context.Background(), CancelRequest{
		OrderID: orderID,
		Reason:  "changed my mind",
		Actor:   order.ActorCustomer,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for customer cancel after confirm, got: %v", err)
	}
}

func TestCancel_ReasonRequired(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.Cancel(context.Background(), CancelRequest{OrderID: uuid.New(), Actor: order.ActorStaff})
	if !errors.Is(err, ErrCancelReason) {
		t.Fatalf("expected ErrCancelReason, got: %v", err)
	}
}

// =====================
// EditItems
// =====================

func TestEditItems_EmptyRejected(t *testing.T) {
	svc := newTestService(&mockOrderStore{})

	_, err := svc.EditItems(context.Background(), EditItemsRequest{OrderID: uuid.New()})
	if !errors.Is(err, ErrInvalidOrderEdit) {
		t.Fatalf("expected ErrInvalidOrderEdit for empty items, got: %v", err)
	}
}

func TestEditItems_OutsideEditableWindow(t *testing.T) {
	for _, status := range []order.Status{order.StatusShipped, order.StatusCompleted, order.StatusCancelled} {
		orderID := uuid.New()
		store := storeForOrder(orderRow(orderID, status), nil)
		svc := newTestService(store)

		_, err := svc.EditItems(context.Background(), EditItemsRequest{
			OrderID: orderID,
			Items:   []LineRequest{{VariantID: uuid.NewString(), Quantity: 1}},
		})
		if !errors.Is(err, ErrInvalidOrderEdit) {
			t.Fatalf("status %s: expected ErrInvalidOrderEdit, got: %v", status, err)
		}
	}
}

func TestEditItems_RepricesAndAdjustsStock(t *testing.T) {
	orderID := uuid.New()
	variantID := uuid.New()
	existing := itemRow(orderID, variantID, 1000, 2)
	store := storeForOrder(orderRow(orderID, order.StatusConfirmed), []database.OrderItem{existing})
	store.getVariantForOrderFn = func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
		if id == variantID {
			return withFixedDiscount(variantRow(variantID, 1200, 10), 10), nil
		}
		return database.GetVariantForOrderRow{}, pgx.ErrNoRows
	}
	svc := newTestService(store)

	o, err := svc.EditItems(context.Background(), EditItemsRequest{
		OrderID: orderID,
		Items:   []LineRequest{{VariantID: variantID.String(), Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	it := o.Items[0]
	// The variant was re-snapshotted at its current price of 1200 with a 10%
	// fixed discount: per-unit discount 120, total 600.
	if it.PricePerUnit != 1200 {
		t.Fatalf("expected re-snapshotted base price 1200, got %d", it.PricePerUnit)
	}
	if it.Discount != 600 {
		t.Fatalf("expected discount 600, got %d", it.Discount)
	}
	if it.Subtotal != 1200*5-600 {
		t.Fatalf("expected subtotal 5400, got %d", it.Subtotal)
	}
	checkInvariant(t, o)

	// Old quantity 2, new 5: net stock delta -3.
	if len(store.movements) != 1 || store.movements[0].Delta != -3 {
		t.Fatalf("expected -3 stock movement, got %+v", store.movements)
	}
	if len(store.deletedOrders) != 1 {
		t.Fatal("expected wholesale item replacement")
	}
}

func TestEditItems_RemovedVariantRestoresStock(t *testing.T) {
	orderID := uuid.New()
	removedID := uuid.New()
	keptID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusPendingWhatsApp), []database.OrderItem{
		itemRow(orderID, removedID, 1000, 2),
		itemRow(orderID, keptID, 500, 1),
	})
	store.getVariantForOrderFn = func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
		if id == keptID {
			return variantRow(keptID, 500, 10), nil
		}
		return database.GetVariantForOrderRow{}, pgx.ErrNoRows
	}
	svc := newTestService(store)

	_, err := svc.EditItems(context.Background(), EditItemsRequest{
		OrderID: orderID,
		Items:   []LineRequest{{VariantID: keptID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The removed variant's quantity comes back; the kept variant's net
	// delta is zero and produces no movement.
	if len(store.movements) != 1 {
		t.Fatalf("expected one movement, got %+v", store.movements)
	}
	m := store.movements[0]
	if m.VariantID != removedID || m.Delta != 2 {
		t.Fatalf("expected +2 restore for removed variant, got %+v", m)
	}
}

func TestEditItems_InsufficientStockForIncrease(t *testing.T) {
	orderID := uuid.New()
	variantID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusConfirmed),
		[]database.OrderItem{itemRow(orderID, variantID, 1000, 1)})
	store.getVariantForOrderFn = func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
		return variantRow(variantID, 1000, 2), nil
	}
	svc := newTestService(store)

	_, err := svc.EditItems(context.Background(), EditItemsRequest{
		OrderID: orderID,
		Items:   []LineRequest{{VariantID: variantID.String(), Quantity: 10}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
}

// =====================
// UpdateShippingCost
// =====================

func TestUpdateShippingCost(t *testing.T) {
	orderID := uuid.New()
	variantID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusPreparing),
		[]database.OrderItem{itemRow(orderID, variantID, 1000, 2)})
	svc := newTestService(store)

	o, err := svc.UpdateShippingCost(context.Background(), UpdateShippingRequest{
		OrderID:      orderID,
		ShippingCost: 2500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ShippingCost != 2500 || o.Total != 4500 {
		t.Fatalf("expected total 4500, got %d", o.Total)
	}
	checkInvariant(t, o)
}

func TestUpdateShippingCost_ReadOnlyAfterShipped(t *testing.T) {
	orderID := uuid.New()
	store := storeForOrder(orderRow(orderID, order.StatusShipped), nil)
	svc := newTestService(store)

	_, err := svc.UpdateShippingCost(context.Background(), UpdateShippingRequest{
		OrderID:      orderID,
		ShippingCost: 100,
	})
	if !errors.Is(err, ErrInvalidOrderEdit) {
		t.Fatalf("expected ErrInvalidOrderEdit, got: %v", err)
	}
}

// =====================
// MarkWhatsAppSent
// =====================

func TestMarkWhatsAppSent_Idempotent(t *testing.T) {
	orderID := uuid.New()
	setCalls := 0
	dbo := orderRow(orderID, order.StatusPendingWhatsApp)
	store := &mockOrderStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return dbo, nil
		},
		setWhatsAppSentFn: func(ctx context.Context, id uuid.UUID, sentAt pgtype.Timestamptz) (database.Order, error) {
			setCalls++
			updated := dbo
			updated.WhatsappSent = true
			updated.WhatsappSentAt = sentAt
			dbo = updated
			return updated, nil
		},
	}
	svc := newTestService(store)

	o, err := svc.MarkWhatsAppSent(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.WhatsAppSent || o.WhatsAppSentAt == nil {
		t.Fatalf("expected sent flag, got %+v", o)
	}

	if _, err := svc.MarkWhatsAppSent(context.Background(), orderID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if setCalls != 1 {
		t.Fatalf("expected sent flag to be write-once, got %d writes", setCalls)
	}
}

// The persisted update carries no WhatsApp columns at all, so a mutation can
// never clobber the notification flag.
func TestMutations_PreserveWhatsAppFields(t *testing.T) {
	orderID := uuid.New()
	dbo := orderRow(orderID, order.StatusPendingWhatsApp)
	dbo.WhatsappSent = true
	dbo.WhatsappSentAt = pgtype.Timestamptz{Time: testNow.Add(-time.Hour), Valid: true}
	store := storeForOrder(dbo, nil)
	svc := newTestService(store)

	o, err := svc.Confirm(context.Background(), ConfirmRequest{OrderID: orderID, ShippingCost: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.WhatsAppSent || o.WhatsAppSentAt == nil {
		t.Fatal("confirm must not clear the whatsapp_sent flag")
	}
}

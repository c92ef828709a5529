package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_id, customer_name, customer_phone, status,
subtotal, total_discount, shipping_cost, total,
cancellation_reason, admin_notes, whatsapp_sent, whatsapp_sent_at,
revision, created_at, updated_at, cancelled_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.CustomerPhone, &o.Status,
		&o.Subtotal, &o.TotalDiscount, &o.ShippingCost, &o.Total,
		&o.CancellationReason, &o.AdminNotes, &o.WhatsappSent, &o.WhatsappSentAt,
		&o.Revision, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt,
	)
	return o, err
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1
FROM orders
`

// GetNextOrderNumber returns the next sequential human-facing order number.
// Concurrent callers can race to the same value; the unique constraint on
// order_number catches that and the service retries.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber)
	var n int32
	err := row.Scan(&n)
	return n, err
}

const createOrder = `
INSERT INTO orders (order_number, customer_id, customer_name, customer_phone, status,
                    subtotal, total_discount, shipping_cost, total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns

// CreateOrderParams are the inputs for CreateOrder.
type CreateOrderParams struct {
	OrderNumber   string
	CustomerID    uuid.UUID
	CustomerName  string
	CustomerPhone string
	Status        string
	Subtotal      int64
	TotalDiscount int64
	ShippingCost  int64
	Total         int64
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber, arg.CustomerID, arg.CustomerName, arg.CustomerPhone, arg.Status,
		arg.Subtotal, arg.TotalDiscount, arg.ShippingCost, arg.Total,
	)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR UPDATE
`

// GetOrderForUpdate locks the order row for the duration of the enclosing
// transaction, serializing concurrent mutations of the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

// ListOrdersParams are the optional filters plus pagination for ListOrders.
type ListOrdersParams struct {
	Status    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrdersByCustomer = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomer, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const updateOrder = `
UPDATE orders
SET status = $2,
    subtotal = $3,
    total_discount = $4,
    shipping_cost = $5,
    total = $6,
    cancellation_reason = $7,
    admin_notes = $8,
    cancelled_at = $9,
    revision = revision + 1,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

// UpdateOrderParams carry every staff-mutable order column. The WhatsApp
// notification fields are deliberately absent: no lifecycle operation may
// touch them.
type UpdateOrderParams struct {
	ID                 uuid.UUID
	Status             string
	Subtotal           int64
	TotalDiscount      int64
	ShippingCost       int64
	Total              int64
	CancellationReason pgtype.Text
	AdminNotes         pgtype.Text
	CancelledAt        pgtype.Timestamptz
}

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID, arg.Status, arg.Subtotal, arg.TotalDiscount, arg.ShippingCost, arg.Total,
		arg.CancellationReason, arg.AdminNotes, arg.CancelledAt,
	)
	return scanOrder(row)
}

const setOrderWhatsAppSent = `
UPDATE orders
SET whatsapp_sent = true,
    whatsapp_sent_at = $2,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) SetOrderWhatsAppSent(ctx context.Context, id uuid.UUID, sentAt pgtype.Timestamptz) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderWhatsAppSent, id, sentAt))
}

const createOrderItem = `
INSERT INTO order_items (order_id, variant_id, variant_snapshot, price_per_unit, quantity, discount, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, variant_id, variant_snapshot, price_per_unit, quantity, discount, subtotal, created_at
`

// CreateOrderItemParams are the inputs for CreateOrderItem.
type CreateOrderItemParams struct {
	OrderID         uuid.UUID
	VariantID       uuid.UUID
	VariantSnapshot []byte
	PricePerUnit    int64
	Quantity        int64
	Discount        int64
	Subtotal        int64
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.VariantID, arg.VariantSnapshot,
		arg.PricePerUnit, arg.Quantity, arg.Discount, arg.Subtotal,
	)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.VariantSnapshot,
		&it.PricePerUnit, &it.Quantity, &it.Discount, &it.Subtotal, &it.CreatedAt)
	return it, err
}

const listOrderItemsByOrder = `
SELECT id, order_id, variant_id, variant_snapshot, price_per_unit, quantity, discount, subtotal, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.VariantSnapshot,
			&it.PricePerUnit, &it.Quantity, &it.Discount, &it.Subtotal, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteOrderItems = `
DELETE FROM order_items
WHERE order_id = $1
`

// DeleteOrderItems removes all lines of an order; item edits replace the
// item list wholesale.
func (q *Queries) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItems, orderID)
	return err
}

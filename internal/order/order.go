package order

import (
	"time"

	"github.com/google/uuid"
)

// VariantSnapshot is the frozen copy of a variant's display data, captured
// when the item is added or edited. It is never re-derived from the live
// catalog, so later product edits or deletions cannot rewrite history.
type VariantSnapshot struct {
	SKU        string            `json:"sku"`
	Name       string            `json:"name"`
	Image      string            `json:"image,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Item is one order line: an immutable variant snapshot plus the quantity
// and the prices computed for it. All money is integer minor units.
type Item struct {
	VariantID    uuid.UUID       `json:"variant_id"`
	Snapshot     VariantSnapshot `json:"variant_snapshot"`
	PricePerUnit int64           `json:"price_per_unit"`
	Quantity     int64           `json:"quantity"`
	Discount     int64           `json:"discount"`
	Subtotal     int64           `json:"subtotal"`
}

// Order is the domain view of a customer order.
type Order struct {
	ID                 uuid.UUID  `json:"id"`
	OrderNumber        string     `json:"order_number"`
	Status             Status     `json:"status"`
	Items              []Item     `json:"items"`
	Subtotal           int64      `json:"subtotal"`
	TotalDiscount      int64      `json:"total_discount"`
	ShippingCost       int64      `json:"shipping_cost"`
	Total              int64      `json:"total"`
	CustomerID         uuid.UUID  `json:"customer_id"`
	CustomerName       string     `json:"customer_name"`
	CustomerPhone      string     `json:"customer_phone"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	AdminNotes         string     `json:"admin_notes,omitempty"`
	WhatsAppSent       bool       `json:"whatsapp_sent"`
	WhatsAppSentAt     *time.Time `json:"whatsapp_sent_at,omitempty"`
	Revision           int64      `json:"revision"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

// Recalculate rebuilds the order aggregates from its items, maintaining
// total == subtotal - totalDiscount + shippingCost. Item subtotals are never
// negative (the pricing engine clamps at zero), so neither is the total.
func (o *Order) Recalculate() {
	var subtotal, discount int64
	for _, it := range o.Items {
		subtotal += it.PricePerUnit * it.Quantity
		discount += it.Discount
	}
	o.Subtotal = subtotal
	o.TotalDiscount = discount
	o.Total = subtotal - discount + o.ShippingCost
}

// AppendAdminNotes adds a note to the order's running admin notes.
func (o *Order) AppendAdminNotes(notes string) {
	if notes == "" {
		return
	}
	if o.AdminNotes == "" {
		o.AdminNotes = notes
		return
	}
	o.AdminNotes += "\n" + notes
}

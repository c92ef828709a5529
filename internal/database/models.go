package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// User is an account that can authenticate. Role is one of CLIENT, STAFF,
// ADMIN.
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Phone          pgtype.Text
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Product is a catalog product. LegacyDiscounts holds the deprecated
// product-level tiered discount schedules as JSON.
type Product struct {
	ID              uuid.UUID
	Name            string
	Description     pgtype.Text
	LegacyDiscounts []byte
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Variant is a sellable SKU. Price is integer minor units. FixedDiscount and
// TieredDiscount hold the variant's discount configuration as JSON; either
// may be null.
type Variant struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	SKU            string
	Name           string
	Image          pgtype.Text
	Attributes     []byte
	Price          int64
	Stock          int64
	AllowBackorder bool
	FixedDiscount  []byte
	TieredDiscount []byte
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GetVariantForOrderRow is a variant joined with the pricing-relevant fields
// of its parent product.
type GetVariantForOrderRow struct {
	Variant
	ProductName            string
	ProductLegacyDiscounts []byte
	ProductActive          bool
}

// Order is an order row. All money columns are integer minor units.
type Order struct {
	ID                 uuid.UUID
	OrderNumber        string
	CustomerID         uuid.UUID
	CustomerName       string
	CustomerPhone      string
	Status             string
	Subtotal           int64
	TotalDiscount      int64
	ShippingCost       int64
	Total              int64
	CancellationReason pgtype.Text
	AdminNotes         pgtype.Text
	WhatsappSent       bool
	WhatsappSentAt     pgtype.Timestamptz
	Revision           int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        pgtype.Timestamptz
}

// OrderItem is one order line. VariantSnapshot is the frozen display data
// captured when the line was written; it is never refreshed on read.
type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	VariantID       uuid.UUID
	VariantSnapshot []byte
	PricePerUnit    int64
	Quantity        int64
	Discount        int64
	Subtotal        int64
	CreatedAt       time.Time
}

// StockMovement is one inventory adjustment, kept as an audit trail.
type StockMovement struct {
	ID        uuid.UUID
	VariantID uuid.UUID
	Delta     int64
	Reason    string
	CreatedAt time.Time
}

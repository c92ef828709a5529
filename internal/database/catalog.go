package database

import (
	"context"

	"github.com/google/uuid"
)

const listProducts = `
SELECT id, name, description, legacy_discounts, active, created_at, updated_at
FROM products
WHERE active = true
ORDER BY name
`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.LegacyDiscounts, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getProduct = `
SELECT id, name, description, legacy_discounts, active, created_at, updated_at
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, id)
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.LegacyDiscounts, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const listVariantsByProduct = `
SELECT id, product_id, sku, name, image, attributes, price, stock, allow_backorder,
       fixed_discount, tiered_discount, active, created_at, updated_at
FROM variants
WHERE product_id = $1 AND active = true
ORDER BY sku
`

func (q *Queries) ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]Variant, error) {
	rows, err := q.db.Query(ctx, listVariantsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(
			&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Image, &v.Attributes,
			&v.Price, &v.Stock, &v.AllowBackorder,
			&v.FixedDiscount, &v.TieredDiscount, &v.Active, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const getVariantForOrder = `
SELECT v.id, v.product_id, v.sku, v.name, v.image, v.attributes, v.price, v.stock,
       v.allow_backorder, v.fixed_discount, v.tiered_discount, v.active,
       v.created_at, v.updated_at,
       p.name, p.legacy_discounts, p.active
FROM variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`

// GetVariantForOrder loads a variant together with its parent product's
// pricing fields, for snapshotting and re-pricing order lines.
func (q *Queries) GetVariantForOrder(ctx context.Context, id uuid.UUID) (GetVariantForOrderRow, error) {
	row := q.db.QueryRow(ctx, getVariantForOrder, id)
	var r GetVariantForOrderRow
	err := row.Scan(
		&r.ID, &r.ProductID, &r.SKU, &r.Name, &r.Image, &r.Attributes,
		&r.Price, &r.Stock, &r.AllowBackorder,
		&r.FixedDiscount, &r.TieredDiscount, &r.Active, &r.CreatedAt, &r.UpdatedAt,
		&r.ProductName, &r.ProductLegacyDiscounts, &r.ProductActive,
	)
	return r, err
}

const adjustVariantStock = `
UPDATE variants
SET stock = stock + $2, updated_at = now()
WHERE id = $1
RETURNING stock
`

// AdjustVariantStock applies a signed delta to the variant's stock and
// returns the new level.
func (q *Queries) AdjustVariantStock(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	row := q.db.QueryRow(ctx, adjustVariantStock, id, delta)
	var stock int64
	err := row.Scan(&stock)
	return stock, err
}

const createStockMovement = `
INSERT INTO stock_movements (variant_id, delta, reason)
VALUES ($1, $2, $3)
RETURNING id, variant_id, delta, reason, created_at
`

// CreateStockMovementParams are the inputs for CreateStockMovement.
type CreateStockMovementParams struct {
	VariantID uuid.UUID
	Delta     int64
	Reason    string
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	row := q.db.QueryRow(ctx, createStockMovement, arg.VariantID, arg.Delta, arg.Reason)
	var m StockMovement
	err := row.Scan(&m.ID, &m.VariantID, &m.Delta, &m.Reason, &m.CreatedAt)
	return m, err
}

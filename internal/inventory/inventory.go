// Package inventory is the stock collaborator consumed by the order
// lifecycle: every order-driven stock change goes through AdjustStock so the
// variant level and the audit trail move together.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vitrine-shop/api/internal/database"
)

// Adjustment reasons recorded in the stock_movements audit trail.
const (
	ReasonOrderPlaced    = "order_placed"
	ReasonOrderEdited    = "order_edited"
	ReasonOrderCancelled = "order_cancelled"
)

// Store defines the database methods the inventory service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	AdjustVariantStock(ctx context.Context, id uuid.UUID, delta int64) (int64, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
}

// Service applies stock adjustments. Bind it to a transaction-scoped store
// so adjustments commit or roll back with the order mutation that caused
// them.
type Service struct {
	store Store
}

// New creates an inventory Service over the given store.
func New(store Store) *Service {
	return &Service{store: store}
}

// AdjustStock applies a signed delta to a variant's stock and records the
// movement. A zero delta is a no-op.
func (s *Service) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int64, reason string) error {
	if delta == 0 {
		return nil
	}
	if _, err := s.store.AdjustVariantStock(ctx, variantID, delta); err != nil {
		return fmt.Errorf("adjust stock for variant %s: %w", variantID, err)
	}
	if _, err := s.store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		VariantID: variantID,
		Delta:     delta,
		Reason:    reason,
	}); err != nil {
		return fmt.Errorf("record stock movement for variant %s: %w", variantID, err)
	}
	return nil
}

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
	"github.com/rs/zerolog/log"
	"github.com/vitrine-shop/api/internal/database"
	"github.com/vitrine-shop/api/internal/pricing"
)

// CatalogStore defines the database methods needed by catalog handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogStore interface {
	ListProducts(ctx context.Context) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.Variant, error)
	GetVariantForOrder(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error)
}

// CatalogHandler serves the public storefront catalog with live price quotes.
type CatalogHandler struct {
	store CatalogStore
	now   func() time.Time
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store, now: time.Now}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog/products", h.ListProducts)
	r.Get("/catalog/products/{id}", h.GetProduct)
	r.Get("/catalog/variants/{id}/quote", h.Quote)
}

// --- Response types ---

type productResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Variants    []variantResponse `json:"variants"`
}

type variantResponse struct {
	ID             uuid.UUID           `json:"id"`
	SKU            string              `json:"sku"`
	Name           string              `json:"name"`
	Image          string              `json:"image,omitempty"`
	Attributes     map[string]string   `json:"attributes,omitempty"`
	Price          int64               `json:"price"`
	FinalPrice     int64               `json:"final_price"`
	Stock          int64               `json:"stock"`
	AllowBackorder bool                `json:"allow_backorder"`
	Badge          string              `json:"badge,omitempty"`
	Tiers          []pricing.Tier      `json:"tiers,omitempty"`
	Quote          pricing.PriceResult `json:"quote"`
}

type quoteResponse struct {
	VariantID uuid.UUID           `json:"variant_id"`
	Quantity  int64               `json:"quantity"`
	Quote     pricing.PriceResult `json:"quote"`
	Tiers     []pricing.Tier      `json:"tiers,omitempty"`
	Badge     string              `json:"badge,omitempty"`
}

// --- Handlers ---

// ListProducts handles GET /catalog/products.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list products")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	now := h.now()
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		pr, err := h.productResponse(r.Context(), p, now)
		if err != nil {
			log.Error().Err(err).Str("product_id", p.ID.String()).Msg("list product variants")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp = append(resp, pr)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"products": resp})
}

// GetProduct handles GET /catalog/products/{id}.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	p, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Error().Err(err).Msg("get product")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !p.Active {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}

	pr, err := h.productResponse(r.Context(), p, h.now())
	if err != nil {
		log.Error().Err(err).Msg("get product variants")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, pr)
}

// Quote handles GET /catalog/variants/{id}/quote?quantity=N.
// It prices the variant at the requested quantity with the same engine the
// checkout path uses, so the quote shown is the price charged.
func (h *CatalogHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid variant ID"})
		return
	}

	quantity := int64(1)
	if s := r.URL.Query().Get("quantity"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be a positive integer"})
			return
		}
		quantity = v
	}

	row, err := h.store.GetVariantForOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "variant not found"})
			return
		}
		log.Error().Err(err).Msg("get variant")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !row.Active || !row.ProductActive {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "variant not found"})
		return
	}

	now := h.now()
	v, parent := pricingVariantFromRow(row)
	writeJSON(w, http.StatusOK, quoteResponse{
		VariantID: row.ID,
		Quantity:  quantity,
		Quote:     pricing.PriceVariant(v, quantity, parent, now),
		Tiers:     pricing.DiscountTiers(v, parent, now),
		Badge:     pricing.DiscountBadge(v, parent, now),
	})
}

// --- Helpers ---

func (h *CatalogHandler) productResponse(ctx context.Context, p database.Product, now time.Time) (productResponse, error) {
	variants, err := h.store.ListVariantsByProduct(ctx, p.ID)
	if err != nil {
		return productResponse{}, err
	}

	parent := pricingParent(p)
	resp := productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Variants: make([]variantResponse, 0, len(variants)),
	}
	if p.Description.Valid {
		resp.Description = p.Description.String
	}

	for _, dv := range variants {
		v := pricingVariant(dv)
		quote := pricing.PriceVariant(v, 1, parent, now)

		vr := variantResponse{
			ID:             dv.ID,
			SKU:            dv.SKU,
			Name:           dv.Name,
			Price:          dv.Price,
			FinalPrice:     quote.FinalPrice,
			Stock:          dv.Stock,
			AllowBackorder: dv.AllowBackorder,
			Badge:          pricing.DiscountBadge(v, parent, now),
			Tiers:          pricing.DiscountTiers(v, parent, now),
			Quote:          quote,
		}
		if dv.Image.Valid {
			vr.Image = dv.Image.String
		}
		if len(dv.Attributes) > 0 {
			var attrs map[string]string
			if err := json.Unmarshal(dv.Attributes, &attrs); err == nil {
				vr.Attributes = attrs
			}
		}
		resp.Variants = append(resp.Variants, vr)
	}
	return resp, nil
}

// pricingVariant maps a variant row to the engine's input type. Unreadable
// discount JSON degrades to no discount.
func pricingVariant(dv database.Variant) pricing.Variant {
	v := pricing.Variant{
		ID:             dv.ID,
		SKU:            dv.SKU,
		Name:           dv.Name,
		Price:          dv.Price,
		Stock:          dv.Stock,
		AllowBackorder: dv.AllowBackorder,
	}
	if len(dv.FixedDiscount) > 0 {
		var fd pricing.FixedDiscount
		if err := json.Unmarshal(dv.FixedDiscount, &fd); err == nil {
			v.FixedDiscount = &fd
		}
	}
	if len(dv.TieredDiscount) > 0 {
		var td pricing.TieredDiscount
		if err := json.Unmarshal(dv.TieredDiscount, &td); err == nil {
			v.TieredDiscount = &td
		}
	}
	return v
}

func pricingParent(p database.Product) *pricing.ProductParent {
	parent := &pricing.ProductParent{ID: p.ID, Name: p.Name}
	if len(p.LegacyDiscounts) > 0 {
		var legacy []pricing.LegacyDiscount
		if err := json.Unmarshal(p.LegacyDiscounts, &legacy); err == nil {
			parent.LegacyDiscounts = legacy
		}
	}
	return parent
}

func pricingVariantFromRow(row database.GetVariantForOrderRow) (pricing.Variant, *pricing.ProductParent) {
	v := pricingVariant(row.Variant)
	parent := &pricing.ProductParent{ID: row.ProductID, Name: row.ProductName}
	if len(row.ProductLegacyDiscounts) > 0 {
		var legacy []pricing.LegacyDiscount
		if err := json.Unmarshal(row.ProductLegacyDiscounts, &legacy); err == nil {
			parent.LegacyDiscounts = legacy
		}
	}
	return v, parent
}

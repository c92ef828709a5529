// Package pricing computes discounted prices for catalog variants.
//
// All money values are integer minor units (centavos). Percentage math goes
// through shopspring/decimal and rounds half-up to a whole minor unit, so two
// calls with the same inputs and the same now always produce the same result.
package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Discount types.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeAmount     = "amount"
)

// Discount sources reported in PriceResult.
const (
	SourceFixed      = "fixed"
	SourceTier       = "tier"
	SourceLegacyTier = "legacy_tier"
)

// FixedDiscount is a quantity-independent reduction with an optional
// active date window.
type FixedDiscount struct {
	Enabled   bool            `json:"enabled"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	StartDate *time.Time      `json:"start_date,omitempty"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	Badge     string          `json:"badge,omitempty"`
}

// Tier is one row of a quantity-based discount schedule. MaxQuantity nil
// means the range is open-ended.
type Tier struct {
	MinQuantity int64           `json:"min_quantity"`
	MaxQuantity *int64          `json:"max_quantity"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
}

// TieredDiscount is a variant-level quantity discount schedule.
type TieredDiscount struct {
	Active    bool       `json:"active"`
	Tiers     []Tier     `json:"tiers"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Badge     string     `json:"badge,omitempty"`
}

// LegacyDiscount is the deprecated product-level schedule. Percentage-only;
// applies as a fallback when the variant defines no active discount, and is
// always computed against the variant's base price.
type LegacyDiscount struct {
	Active  bool       `json:"active"`
	EndDate *time.Time `json:"end_date,omitempty"`
	Tiers   []Tier     `json:"tiers"`
}

// Variant is a sellable SKU as the engine sees it.
type Variant struct {
	ID             uuid.UUID
	SKU            string
	Name           string
	Price          int64
	Stock          int64
	AllowBackorder bool
	FixedDiscount  *FixedDiscount
	TieredDiscount *TieredDiscount
}

// ProductParent is the variant's owning product, carrying legacy discounts.
type ProductParent struct {
	ID              uuid.UUID
	Name            string
	LegacyDiscounts []LegacyDiscount
}

// Applied describes one discount that contributed to the final price.
type Applied struct {
	Source string          `json:"source"`
	Type   string          `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Amount int64           `json:"amount"`
	Badge  string          `json:"badge,omitempty"`
}

// PriceResult is the outcome of pricing a variant at a given quantity.
type PriceResult struct {
	OriginalPrice   int64    `json:"original_price"`
	FinalPrice      int64    `json:"final_price"`
	DiscountPerUnit int64    `json:"discount_per_unit"`
	TotalDiscount   int64    `json:"total_discount"`
	AppliedFixed    *Applied `json:"applied_fixed,omitempty"`
	AppliedTier     *Applied `json:"applied_tier,omitempty"`
	Details         string   `json:"details,omitempty"`
}

// PriceVariant prices one variant at the given quantity.
//
// Application order: the fixed discount first, then the variant tier on the
// already-discounted price. The parent's legacy schedule is a fallback only:
// it applies when neither variant discount produced a reduction, and its
// percentage is taken from the original base price, never compounded.
// Malformed or expired configuration degrades to "no discount".
func PriceVariant(v Variant, quantity int64, parent *ProductParent, now time.Time) PriceResult {
	res := PriceResult{
		OriginalPrice: v.Price,
		FinalPrice:    v.Price,
	}
	if quantity < 1 {
		quantity = 1
	}

	price := v.Price
	var details []string

	// 1. Fixed discount.
	if fd := v.FixedDiscount; fd != nil && fd.Enabled && windowActive(fd.StartDate, fd.EndDate, now) {
		amount := discountAmount(price, fd.Type, fd.Value)
		if amount > 0 {
			price -= amount
			res.AppliedFixed = &Applied{
				Source: SourceFixed,
				Type:   fd.Type,
				Value:  fd.Value,
				Amount: amount,
				Badge:  fd.Badge,
			}
			details = append(details, describeDiscount("fixed discount", fd.Type, fd.Value, amount))
		}
	}

	// 2. Variant tier, compounding on the post-fixed price.
	if td := v.TieredDiscount; td != nil && td.Active && len(td.Tiers) > 0 && windowActive(td.StartDate, td.EndDate, now) {
		if tier := selectTier(td.Tiers, quantity); tier != nil {
			amount := discountAmount(price, tier.Type, tier.Value)
			if amount > 0 {
				price -= amount
				res.AppliedTier = &Applied{
					Source: SourceTier,
					Type:   tier.Type,
					Value:  tier.Value,
					Amount: amount,
					Badge:  td.Badge,
				}
				details = append(details, describeDiscount(
					fmt.Sprintf("tier %d+", tier.MinQuantity), tier.Type, tier.Value, amount))
			}
		}
	}

	// 3. Legacy parent fallback: only when nothing applied above, and always
	// against the original base price.
	if res.AppliedFixed == nil && res.AppliedTier == nil && parent != nil {
		if tier, ok := selectLegacyTier(parent.LegacyDiscounts, quantity, now); ok {
			amount := discountAmount(v.Price, tier.Type, tier.Value)
			if amount > 0 {
				price -= amount
				res.AppliedTier = &Applied{
					Source: SourceLegacyTier,
					Type:   tier.Type,
					Value:  tier.Value,
					Amount: amount,
				}
				details = append(details, describeDiscount(
					fmt.Sprintf("legacy tier %d+", tier.MinQuantity), tier.Type, tier.Value, amount))
			}
		}
	}

	if price < 0 {
		price = 0
	}

	res.FinalPrice = price
	res.DiscountPerUnit = res.OriginalPrice - res.FinalPrice
	res.TotalDiscount = res.DiscountPerUnit * quantity
	res.Details = strings.Join(details, "; ")
	return res
}

// selectTier picks the qualifying tier with the highest min_quantity.
// Every presentation helper goes through this same routine so the tier shown
// and the tier charged can never diverge.
func selectTier(tiers []Tier, quantity int64) *Tier {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinQuantity > sorted[j].MinQuantity
	})
	for i := range sorted {
		t := sorted[i]
		if t.MinQuantity < 1 {
			continue
		}
		if quantity < t.MinQuantity {
			continue
		}
		if t.MaxQuantity != nil && quantity > *t.MaxQuantity {
			continue
		}
		return &t
	}
	return nil
}

// selectLegacyTier finds the best tier across the parent's active legacy
// schedules. A schedule is active when flagged so and its end_date, if any,
// has not passed.
func selectLegacyTier(discounts []LegacyDiscount, quantity int64, now time.Time) (Tier, bool) {
	for _, ld := range discounts {
		if !ld.Active || len(ld.Tiers) == 0 {
			continue
		}
		if ld.EndDate != nil && now.After(*ld.EndDate) {
			continue
		}
		if tier := selectTier(ld.Tiers, quantity); tier != nil {
			return *tier, true
		}
	}
	return Tier{}, false
}

// discountAmount converts a discount config into minor units against the
// given base. Percentages round half-up to a whole minor unit. Non-positive
// or unknown configs yield zero.
func discountAmount(base int64, typ string, value decimal.Decimal) int64 {
	if value.IsNegative() || value.IsZero() {
		return 0
	}
	switch typ {
	case DiscountTypePercentage:
		amt := decimal.NewFromInt(base).Mul(value).Div(decimal.NewFromInt(100))
		return amt.Round(0).IntPart()
	case DiscountTypeAmount:
		return value.Round(0).IntPart()
	}
	return 0
}

// windowActive reports whether now falls inside [start, end]. Either bound
// may be absent, meaning unbounded on that side. Bounds are inclusive.
func windowActive(start, end *time.Time, now time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}

func describeDiscount(label, typ string, value decimal.Decimal, amount int64) string {
	if typ == DiscountTypePercentage {
		return fmt.Sprintf("%s: %s%% (-%d)", label, value.String(), amount)
	}
	return fmt.Sprintf("%s: -%d", label, amount)
}

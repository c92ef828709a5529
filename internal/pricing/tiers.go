package pricing

import "time"

// DiscountTiers returns the tier schedule in effect for display purposes:
// the variant's own schedule when it is active, otherwise the parent's first
// active legacy schedule. Nil when no schedule is in effect.
func DiscountTiers(v Variant, parent *ProductParent, now time.Time) []Tier {
	if td := v.TieredDiscount; td != nil && td.Active && len(td.Tiers) > 0 && windowActive(td.StartDate, td.EndDate, now) {
		return td.Tiers
	}
	if parent == nil {
		return nil
	}
	for _, ld := range parent.LegacyDiscounts {
		if !ld.Active || len(ld.Tiers) == 0 {
			continue
		}
		if ld.EndDate != nil && now.After(*ld.EndDate) {
			continue
		}
		return ld.Tiers
	}
	return nil
}

// TierFor returns the tier that would be charged for the given quantity.
// It reuses the engine's selection rule, so the tier highlighted in the UI is
// always the tier PriceVariant applies.
func TierFor(v Variant, parent *ProductParent, quantity int64, now time.Time) *Tier {
	tiers := DiscountTiers(v, parent, now)
	if len(tiers) == 0 {
		return nil
	}
	return selectTier(tiers, quantity)
}

// DiscountBadge returns the badge of the discount currently advertised on
// the variant: the fixed discount's badge wins, then the tiered schedule's.
// Empty when nothing is active or no badge is configured.
func DiscountBadge(v Variant, parent *ProductParent, now time.Time) string {
	if fd := v.FixedDiscount; fd != nil && fd.Enabled && windowActive(fd.StartDate, fd.EndDate, now) && fd.Badge != "" {
		return fd.Badge
	}
	if td := v.TieredDiscount; td != nil && td.Active && len(td.Tiers) > 0 && windowActive(td.StartDate, td.EndDate, now) {
		return td.Badge
	}
	return ""
}

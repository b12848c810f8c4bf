package entitlements

// PlanTier is the tier metadata of a plan. IsPurchasable defaults to true
// when nil.
type PlanTier struct {
	TierLevel     int   `json:"tier_level"`
	IsPurchasable *bool `json:"is_purchasable,omitempty"`
}

func (p PlanTier) purchasable() bool {
	return p.IsPurchasable == nil || *p.IsPurchasable
}

// IsMaxPlanTier reports whether userTier is at or above the highest
// purchasable tier. With no purchasable plans there is nothing to upgrade to,
// so any non-nil tier is the max. A nil tier is never the max.
func IsMaxPlanTier(userTier *int, plans []PlanTier) bool {
	highest := 0
	found := false
	for _, p := range plans {
		if !p.purchasable() {
			continue
		}
		if !found || p.TierLevel > highest {
			highest = p.TierLevel
			found = true
		}
	}
	if userTier == nil {
		return false
	}
	if !found {
		return true
	}
	return *userTier >= highest
}

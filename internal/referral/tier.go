package referral

import "strings"

// BaseCommissionRate is the contract-level referral cut on each purchase.
const BaseCommissionRate = 0.1

// Membership tiers scale the referrer's earnings. Unknown or empty tiers fall
// back to the bronze multiplier.
const (
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

var tierMultipliers = map[string]float64{
	TierBronze:   1.0,
	TierSilver:   1.2,
	TierGold:     1.5,
	TierPlatinum: 2.0,
}

func TierMultiplier(tier string) float64 {
	if m, ok := tierMultipliers[strings.ToLower(tier)]; ok {
		return m
	}
	return 1.0
}

// MultiplierIn resolves tier against a configured multiplier table. Tiers the
// table does not name, or names with a non-positive value, fall back to the
// built-in multipliers.
func MultiplierIn(tiers map[string]float64, tier string) float64 {
	if m, ok := tiers[strings.ToLower(tier)]; ok && m > 0 {
		return m
	}
	return TierMultiplier(tier)
}

// BonusCommissionIn is BonusCommission with the multiplier taken from a
// configured table instead of the built-in one.
func BonusCommissionIn(tiers map[string]float64, baseCommission float64, tier string) float64 {
	return baseCommission * (MultiplierIn(tiers, tier) - 1)
}

// BonusCommission is the extra on top of the base commission that the tier
// grants: base * (multiplier - 1). Bronze earns no bonus.
func BonusCommission(baseCommission float64, tier string) float64 {
	return baseCommission * (TierMultiplier(tier) - 1)
}

// TotalCommission is base plus bonus, i.e. base * multiplier.
func TotalCommission(baseCommission float64, tier string) float64 {
	return baseCommission * TierMultiplier(tier)
}

package domain

// Tier is a user's subscription level, carried in the JWT plan claim.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// TierFromPlan maps a token plan claim onto a known tier, defaulting to free.
func TierFromPlan(plan string) Tier {
	switch Tier(plan) {
	case TierPremium:
		return TierPremium
	case TierPro:
		return TierPro
	default:
		return TierFree
	}
}

// MonthlyTryOnLimit returns the tier's try-on quota per calendar month.
func (t Tier) MonthlyTryOnLimit() int {
	switch t {
	case TierPremium:
		return 100
	case TierPro:
		return 500
	default:
		return 10
	}
}

// ActiveSessionCap returns how many non-terminal sessions the tier may hold
// at once.
func (t Tier) ActiveSessionCap() int {
	switch t {
	case TierPremium:
		return 3
	case TierPro:
		return 5
	default:
		return 1
	}
}

package entitlements

import (
	"time"

	"github.com/ManuelReschke/LinkFox/app/models"
)

// Limits is the set of feature limits unlocked for a user. All numeric
// fields are upper bounds; boolean fields are feature flags.
type Limits struct {
	MaxPages       int  `json:"max_pages"`
	MaxRedirects   int  `json:"max_redirects"`
	CustomThemes   bool `json:"custom_themes"`
	RemoveBranding bool `json:"remove_branding"`
}

// Tier baselines. Roles and premium state only ever raise limits, never
// lower them.
var (
	freeTier = Limits{
		MaxPages:     1,
		MaxRedirects: 5,
	}
	premiumTier = Limits{
		MaxPages:       5,
		MaxRedirects:   50,
		CustomThemes:   true,
		RemoveBranding: true,
	}
	staffTier = Limits{
		MaxPages:       25,
		MaxRedirects:   250,
		CustomThemes:   true,
		RemoveBranding: true,
	}
)

// roleFloor returns the minimum tier a role guarantees regardless of
// billing state. Staff and admins always float to the staff tier, partners
// to premium.
func roleFloor(role string) Limits {
	switch role {
	case models.ROLE_STAFF, models.ROLE_ADMIN:
		return staffTier
	case models.ROLE_PARTNER:
		return premiumTier
	default:
		return freeTier
	}
}

// ComputeLimits derives the effective limits for a user from their role,
// entitlement record and the current time. Numeric limits are the maximum
// across role floor and premium tier, plus the purchased extra counters;
// flags are OR-ed. Premium expiry is evaluated lazily here, nothing sweeps
// the stored record.
func ComputeLimits(role string, ent *models.Entitlement, now time.Time) Limits {
	limits := maxLimits(freeTier, roleFloor(role))
	if ent != nil && ent.PremiumActive(now) {
		limits = maxLimits(limits, premiumTier)
	}
	if ent != nil {
		limits.MaxPages += ent.ExtraPages
		limits.MaxRedirects += ent.ExtraRedirects
	}
	return limits
}

func maxLimits(a, b Limits) Limits {
	return Limits{
		MaxPages:       maxInt(a.MaxPages, b.MaxPages),
		MaxRedirects:   maxInt(a.MaxRedirects, b.MaxRedirects),
		CustomThemes:   a.CustomThemes || b.CustomThemes,
		RemoveBranding: a.RemoveBranding || b.RemoveBranding,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package entitlements

import (
	"testing"
	"time"

	"github.com/ManuelReschke/LinkFox/app/models"
)

func TestComputeLimitsFreeDefaults(t *testing.T) {
	ent := &models.Entitlement{PremiumSource: models.PremiumSourceNone}
	got := ComputeLimits(models.ROLE_USER, ent, time.Now())

	if got != freeTier {
		t.Fatalf("free user limits = %+v, want %+v", got, freeTier)
	}
}

func TestComputeLimitsPremiumIsMonotone(t *testing.T) {
	now := time.Now()
	free := ComputeLimits(models.ROLE_USER, &models.Entitlement{}, now)
	premium := ComputeLimits(models.ROLE_USER, &models.Entitlement{
		IsPremium:     true,
		PremiumSource: models.PremiumSourceProvider,
	}, now)

	if premium.MaxPages < free.MaxPages || premium.MaxRedirects < free.MaxRedirects {
		t.Fatalf("premium limits %+v must dominate free limits %+v", premium, free)
	}
	if !premium.CustomThemes || !premium.RemoveBranding {
		t.Fatalf("expected premium feature flags to be set, got %+v", premium)
	}
}

func TestComputeLimitsExpiredPremium(t *testing.T) {
	now := time.Now()
	expired := now.Add(-time.Hour)
	got := ComputeLimits(models.ROLE_USER, &models.Entitlement{
		IsPremium:     true,
		PremiumUntil:  &expired,
		PremiumSource: models.PremiumSourceProvider,
	}, now)

	if got != freeTier {
		t.Fatalf("expired premium limits = %+v, want free tier %+v", got, freeTier)
	}
}

func TestComputeLimitsPermanentGrant(t *testing.T) {
	// Nil PremiumUntil means the grant never expires.
	got := ComputeLimits(models.ROLE_USER, &models.Entitlement{
		IsPremium:     true,
		PremiumSource: models.PremiumSourceManual,
	}, time.Now())

	if !got.CustomThemes {
		t.Fatalf("permanent grant should unlock premium features, got %+v", got)
	}
}

func TestComputeLimitsRoleFloors(t *testing.T) {
	now := time.Now()
	tests := []struct {
		role string
		want Limits
	}{
		{role: models.ROLE_USER, want: freeTier},
		{role: models.ROLE_PARTNER, want: premiumTier},
		{role: models.ROLE_STAFF, want: staffTier},
		{role: models.ROLE_ADMIN, want: staffTier},
	}

	for _, tt := range tests {
		if got := ComputeLimits(tt.role, &models.Entitlement{}, now); got != tt.want {
			t.Fatalf("ComputeLimits(%q) = %+v, want %+v", tt.role, got, tt.want)
		}
	}
}

func TestComputeLimitsExtrasAreAdditive(t *testing.T) {
	now := time.Now()
	ent := &models.Entitlement{ExtraPages: 3, ExtraRedirects: 10}

	got := ComputeLimits(models.ROLE_USER, ent, now)
	if got.MaxPages != freeTier.MaxPages+3 {
		t.Fatalf("MaxPages = %d, want %d", got.MaxPages, freeTier.MaxPages+3)
	}
	if got.MaxRedirects != freeTier.MaxRedirects+10 {
		t.Fatalf("MaxRedirects = %d, want %d", got.MaxRedirects, freeTier.MaxRedirects+10)
	}

	// Extras stack on top of the staff floor as well.
	staff := ComputeLimits(models.ROLE_STAFF, ent, now)
	if staff.MaxPages != staffTier.MaxPages+3 {
		t.Fatalf("staff MaxPages = %d, want %d", staff.MaxPages, staffTier.MaxPages+3)
	}
}

func TestComputeLimitsNilEntitlement(t *testing.T) {
	if got := ComputeLimits(models.ROLE_USER, nil, time.Now()); got != freeTier {
		t.Fatalf("nil entitlement limits = %+v, want %+v", got, freeTier)
	}
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Premium source constants. The source records which mechanism currently
// claims responsibility for a user's premium state; webhook-driven mutations
// must never overwrite a manual grant.
const (
	PremiumSourceNone     = "none"
	PremiumSourceProvider = "provider"
	PremiumSourceManual   = "manual"
)

// Entitlement stores the billing-derived feature state for one user. The row
// is created with free-tier defaults the first time it is touched and is
// never deleted; fields are cleared instead.
type Entitlement struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	StripeCustomerID string         `gorm:"type:varchar(191);default:null;uniqueIndex" json:"-"`
	IsPremium        bool           `gorm:"default:false" json:"is_premium"`
	PremiumUntil     *time.Time     `gorm:"type:timestamp;default:null" json:"premium_until,omitempty"`
	PremiumSource    string         `gorm:"type:varchar(20);not null;default:'none'" json:"premium_source"`
	ExtraPages       int            `gorm:"not null;default:0" json:"extra_pages"`
	ExtraRedirects   int            `gorm:"not null;default:0" json:"extra_redirects"`
	ProviderStateAt  *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetOrCreateEntitlement returns existing entitlements or creates free-tier defaults
func GetOrCreateEntitlement(db *gorm.DB, userID uint) (*Entitlement, error) {
	var ent Entitlement
	if err := db.Where("user_id = ?", userID).First(&ent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			ent = Entitlement{UserID: userID, PremiumSource: PremiumSourceNone}
			if err := db.Create(&ent).Error; err != nil {
				return nil, err
			}
			return &ent, nil
		}
		return nil, err
	}
	return &ent, nil
}

// PremiumActive reports whether the premium flag is effective at the given
// instant. A nil PremiumUntil is a permanent grant; expiry is lazy, no sweep
// ever flips the stored flag.
func (e *Entitlement) PremiumActive(now time.Time) bool {
	if e == nil || !e.IsPremium {
		return false
	}
	if e.PremiumUntil == nil {
		return true
	}
	return e.PremiumUntil.After(now)
}

// HasManualGrant reports whether premium was granted by staff rather than
// the billing provider.
func (e *Entitlement) HasManualGrant() bool {
	return e != nil && e.PremiumSource == PremiumSourceManual
}

// ClearProviderPremium resets the premium fields in place. Callers must
// check HasManualGrant first; this helper does not guard on the source.
func (e *Entitlement) ClearProviderPremium() {
	e.IsPremium = false
	e.PremiumUntil = nil
	e.PremiumSource = PremiumSourceNone
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase kinds. A purchase records one completed checkout; the unique
// stripe_session_id is the idempotency key that makes re-delivered
// checkout events a no-op.
const (
	PurchaseKindPremium       = "premium"
	PurchaseKindExtraPage     = "extra_page"
	PurchaseKindExtraRedirect = "extra_redirect"
)

type Purchase struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UUID            string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Kind            string    `gorm:"type:varchar(20);not null;index" json:"kind"`
	AmountCents     int64     `gorm:"not null;default:0" json:"amount_cents"`
	Quantity        int       `gorm:"not null;default:1" json:"quantity"`
	StripeSessionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_session_id"`
	StripePaymentID string    `gorm:"type:varchar(191);default:''" json:"stripe_payment_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the public identifier.
func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}

// FindPurchaseBySessionID looks a purchase up by its checkout session id.
func FindPurchaseBySessionID(db *gorm.DB, sessionID string) (*Purchase, error) {
	var p Purchase
	err := db.Where("stripe_session_id = ?", sessionID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPurchasesByUser returns a user's purchase history, newest first.
func ListPurchasesByUser(db *gorm.DB, userID uint) ([]Purchase, error) {
	var purchases []Purchase
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&purchases).Error
	return purchases, err
}

package billing

import (
	"errors"
	"time"

	"github.com/ManuelReschke/LinkFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
// Correctness of the idempotency guarantees rests on the unique
// constraints on purchases.stripe_session_id and
// entitlements.stripe_customer_id, not on check-then-insert sequences.
type Repository interface {
	GetUser(userID uint) (*models.User, error)
	GetOrCreateEntitlement(userID uint) (*models.Entitlement, error)
	GetEntitlementByCustomerID(customerID string) (*models.Entitlement, error)
	// ClaimCustomerID stores the customer id on the user's entitlement row
	// only if none is set yet, and returns the id that won. claimed is
	// false when a concurrent resolver got there first.
	ClaimCustomerID(userID uint, customerID string) (winner string, claimed bool, err error)
	FindPurchaseBySessionID(sessionID string) (*models.Purchase, error)
	// ApplyCheckout inserts the purchase and applies the entitlement
	// mutation in one transaction. When the session id is already in the
	// ledger the whole call is a no-op and created is false.
	ApplyCheckout(purchase *models.Purchase, mutate func(ent *models.Entitlement)) (created bool, err error)
	SaveEntitlement(ent *models.Entitlement) error
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetOrCreateEntitlement(userID uint) (*models.Entitlement, error) {
	return models.GetOrCreateEntitlement(r.db, userID)
}

func (r *gormRepository) GetEntitlementByCustomerID(customerID string) (*models.Entitlement, error) {
	var ent models.Entitlement
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownCustomer
		}
		return nil, err
	}
	return &ent, nil
}

func (r *gormRepository) ClaimCustomerID(userID uint, customerID string) (string, bool, error) {
	res := r.db.Model(&models.Entitlement{}).
		Where("user_id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", userID).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return "", false, res.Error
	}
	if res.RowsAffected > 0 {
		return customerID, true, nil
	}

	// A concurrent first-time resolve won the row; use its customer id.
	var ent models.Entitlement
	if err := r.db.Where("user_id = ?", userID).First(&ent).Error; err != nil {
		return "", false, err
	}
	return ent.StripeCustomerID, false, nil
}

func (r *gormRepository) FindPurchaseBySessionID(sessionID string) (*models.Purchase, error) {
	return models.FindPurchaseBySessionID(r.db, sessionID)
}

func (r *gormRepository) ApplyCheckout(purchase *models.Purchase, mutate func(ent *models.Entitlement)) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_session_id"}},
			DoNothing: true,
		}).Create(purchase)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Duplicate delivery: the ledger row exists, so the mutation
			// already happened in the same transaction that inserted it.
			return nil
		}
		created = true

		ent, err := models.GetOrCreateEntitlement(tx, purchase.UserID)
		if err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", purchase.UserID).First(ent).Error; err != nil {
			return err
		}
		mutate(ent)
		return tx.Save(ent).Error
	})
	return created, err
}

func (r *gormRepository) SaveEntitlement(ent *models.Entitlement) error {
	return r.db.Save(ent).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("stripe_event_id = ?", event.StripeEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

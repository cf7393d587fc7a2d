package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Redirect is a user-owned short link. The per-user redirect quota is
// gated by the entitlements package.
type Redirect struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Slug      string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"slug" validate:"required,min=1,max=64"`
	TargetURL string         `gorm:"type:varchar(2048);not null" json:"target_url" validate:"required,url,max=2048"`
	HitCount  uint64         `gorm:"not null;default:0" json:"hit_count"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Redirect) Validate() error {
	v := validator.New()
	return v.Struct(r)
}

func FindRedirectBySlug(db *gorm.DB, slug string) (*Redirect, error) {
	var redirect Redirect
	err := db.Where("slug = ? AND is_active = ?", slug, true).First(&redirect).Error
	if err != nil {
		return nil, err
	}
	return &redirect, nil
}

func ListRedirectsByUser(db *gorm.DB, userID uint) ([]Redirect, error) {
	var redirects []Redirect
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&redirects).Error
	return redirects, err
}

func CountRedirectsByUser(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&Redirect{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// RecordRedirectHit increments the hit counter without touching updated_at.
func RecordRedirectHit(db *gorm.DB, id uint) error {
	return db.Model(&Redirect{}).Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
}

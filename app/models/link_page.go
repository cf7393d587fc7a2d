package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// LinkPage is a user's public profile page. How many of these a user may
// own is gated by the entitlements package.
type LinkPage struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=1,max=255"`
	Slug      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug" validate:"required,min=1,max=255"`
	Content   string         `gorm:"type:longtext;not null" json:"content" validate:"required,min=1"`
	Theme     string         `gorm:"type:varchar(50);not null;default:'default'" json:"theme"`
	ViewCount uint64         `gorm:"not null;default:0" json:"view_count"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *LinkPage) Validate() error {
	v := validator.New()
	return v.Struct(p)
}

func FindLinkPageBySlug(db *gorm.DB, slug string) (*LinkPage, error) {
	var page LinkPage
	err := db.Where("slug = ? AND is_active = ?", slug, true).First(&page).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func FindLinkPageByID(db *gorm.DB, id uint) (*LinkPage, error) {
	var page LinkPage
	err := db.First(&page, id).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func ListLinkPagesByUser(db *gorm.DB, userID uint) ([]LinkPage, error) {
	var pages []LinkPage
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&pages).Error
	return pages, err
}

func CountLinkPagesByUser(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&LinkPage{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

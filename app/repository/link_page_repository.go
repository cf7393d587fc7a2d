package repository

import (
	"github.com/ManuelReschke/LinkFox/app/models"
	"gorm.io/gorm"
)

// linkPageRepository implements the LinkPageRepository interface
type linkPageRepository struct {
	db *gorm.DB
}

// NewLinkPageRepository creates a new link page repository instance
func NewLinkPageRepository(db *gorm.DB) LinkPageRepository {
	return &linkPageRepository{db: db}
}

// Create creates a new page in the database
func (r *linkPageRepository) Create(page *models.LinkPage) error {
	return r.db.Create(page).Error
}

// GetByID retrieves a page by its ID
func (r *linkPageRepository) GetByID(id uint) (*models.LinkPage, error) {
	var page models.LinkPage
	err := r.db.First(&page, id).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetBySlug retrieves an active page by its slug
func (r *linkPageRepository) GetBySlug(slug string) (*models.LinkPage, error) {
	var page models.LinkPage
	err := r.db.Where("slug = ? AND is_active = ?", slug, true).First(&page).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetByUserID retrieves all pages of a user
func (r *linkPageRepository) GetByUserID(userID uint) ([]models.LinkPage, error) {
	var pages []models.LinkPage
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&pages).Error
	return pages, err
}

// Update updates an existing page in the database
func (r *linkPageRepository) Update(page *models.LinkPage) error {
	return r.db.Save(page).Error
}

// Delete soft deletes a page by its ID
func (r *linkPageRepository) Delete(id uint) error {
	return r.db.Delete(&models.LinkPage{}, id).Error
}

// Count returns the total number of pages
func (r *linkPageRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.LinkPage{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of pages a user owns
func (r *linkPageRepository) CountByUserID(userID uint) (int64, error) {
	return models.CountLinkPagesByUser(r.db, userID)
}

// SlugExists checks if a slug already exists
func (r *linkPageRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.LinkPage{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// SlugExistsExceptID checks if a slug exists excluding a specific ID
func (r *linkPageRepository) SlugExistsExceptID(slug string, id uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.LinkPage{}).Where("slug = ? AND id != ?", slug, id).Count(&count).Error
	return count > 0, err
}

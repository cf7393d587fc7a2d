package repository

import (
	"github.com/ManuelReschke/LinkFox/app/models"
	"gorm.io/gorm"
)

// redirectRepository implements the RedirectRepository interface
type redirectRepository struct {
	db *gorm.DB
}

// NewRedirectRepository creates a new redirect repository instance
func NewRedirectRepository(db *gorm.DB) RedirectRepository {
	return &redirectRepository{db: db}
}

// Create creates a new redirect in the database
func (r *redirectRepository) Create(redirect *models.Redirect) error {
	return r.db.Create(redirect).Error
}

// GetByID retrieves a redirect by its ID
func (r *redirectRepository) GetByID(id uint) (*models.Redirect, error) {
	var redirect models.Redirect
	err := r.db.First(&redirect, id).Error
	if err != nil {
		return nil, err
	}
	return &redirect, nil
}

// GetBySlug retrieves an active redirect by its slug
func (r *redirectRepository) GetBySlug(slug string) (*models.Redirect, error) {
	return models.FindRedirectBySlug(r.db, slug)
}

// GetByUserID retrieves all redirects of a user
func (r *redirectRepository) GetByUserID(userID uint) ([]models.Redirect, error) {
	return models.ListRedirectsByUser(r.db, userID)
}

// Update updates an existing redirect in the database
func (r *redirectRepository) Update(redirect *models.Redirect) error {
	return r.db.Save(redirect).Error
}

// Delete soft deletes a redirect by its ID
func (r *redirectRepository) Delete(id uint) error {
	return r.db.Delete(&models.Redirect{}, id).Error
}

// Count returns the total number of redirects
func (r *redirectRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Redirect{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of redirects a user owns
func (r *redirectRepository) CountByUserID(userID uint) (int64, error) {
	return models.CountRedirectsByUser(r.db, userID)
}

// RecordHit increments the hit counter for a redirect
func (r *redirectRepository) RecordHit(id uint) error {
	return models.RecordRedirectHit(r.db, id)
}

// TopByHits returns the most used redirects for the admin dashboard
func (r *redirectRepository) TopByHits(limit int) ([]models.Redirect, error) {
	var redirects []models.Redirect
	err := r.db.Order("hit_count DESC").Limit(limit).Find(&redirects).Error
	return redirects, err
}

package repository

import (
	"time"

	"github.com/ManuelReschke/LinkFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	GetStatsByUserID(userID uint) (*UserStats, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	GetWithStats(offset, limit int) ([]UserWithStats, error)
	SearchWithStats(query string) ([]UserWithStats, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// LinkPageRepository defines the interface for link page operations
type LinkPageRepository interface {
	Create(page *models.LinkPage) error
	GetByID(id uint) (*models.LinkPage, error)
	GetBySlug(slug string) (*models.LinkPage, error)
	GetByUserID(userID uint) ([]models.LinkPage, error)
	Update(page *models.LinkPage) error
	Delete(id uint) error
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	SlugExists(slug string) (bool, error)
	SlugExistsExceptID(slug string, id uint) (bool, error)
}

// RedirectRepository defines the interface for short link operations
type RedirectRepository interface {
	Create(redirect *models.Redirect) error
	GetByID(id uint) (*models.Redirect, error)
	GetBySlug(slug string) (*models.Redirect, error)
	GetByUserID(userID uint) ([]models.Redirect, error)
	Update(redirect *models.Redirect) error
	Delete(id uint) error
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	RecordHit(id uint) error
	TopByHits(limit int) ([]models.Redirect, error)
}

// QueueRepository defines the interface for cache/queue operations
type QueueRepository interface {
	GetAllKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// UserWithStats represents a user with additional statistics
type UserWithStats struct {
	User          models.User
	PageCount     int64
	RedirectCount int64
	TotalHits     int64
}

// UserStats provides aggregated counts for a single user (pages, redirects, hits).
type UserStats struct {
	PageCount     int64
	RedirectCount int64
	TotalHits     int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User     UserRepository
	LinkPage LinkPageRepository
	Redirect RedirectRepository
	Queue    QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		LinkPage: NewLinkPageRepository(db),
		Redirect: NewRedirectRepository(db),
		Queue:    NewQueueRepository(),
	}
}

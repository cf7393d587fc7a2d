package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ManuelReschke/LinkFox/app/models"
	"github.com/ManuelReschke/LinkFox/internal/pkg/cache"
	"github.com/ManuelReschke/LinkFox/internal/pkg/database"
)

const (
	CacheKeyUsers     = "statistics:users:total"
	CacheKeyPages     = "statistics:pages:total"
	CacheKeyRedirects = "statistics:redirects:total"
	CacheExpiration   = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on the landing page
type StatisticsData struct {
	TotalUsers     int
	TotalPages     int
	TotalRedirects int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached totals are due for a refresh
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached totals when the interval elapsed
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Failed to update statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded call to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	var totalPages int64
	if err := db.Model(&models.LinkPage{}).Count(&totalPages).Error; err != nil {
		log.Printf("Error counting total link pages: %v", err)
		return err
	}

	var totalRedirects int64
	if err := db.Model(&models.Redirect{}).Count(&totalRedirects).Error; err != nil {
		log.Printf("Error counting total redirects: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyPages, strconv.FormatInt(totalPages, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total link pages: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyRedirects, strconv.FormatInt(totalRedirects, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total redirects: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Users: %d, Pages: %d, Redirects: %d",
		totalUsers, totalPages, totalRedirects)

	return nil
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalPages returns the total number of link pages from cache or database
func GetTotalPages() int {
	val, err := cache.Get(CacheKeyPages)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.LinkPage{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total link pages: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyPages, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total link pages: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalRedirects returns the total number of short links from cache or database
func GetTotalRedirects() int {
	val, err := cache.Get(CacheKeyRedirects)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Redirect{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total short links: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyRedirects, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total short links: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalUsers:     GetTotalUsers(),
		TotalPages:     GetTotalPages(),
		TotalRedirects: GetTotalRedirects(),
	}
}

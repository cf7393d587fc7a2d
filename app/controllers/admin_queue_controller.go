package controllers

import (
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/LinkFox/app/repository"
	"github.com/ManuelReschke/LinkFox/internal/pkg/usercontext"
)

// AdminQueueController exposes the Redis cache contents for operators.
type AdminQueueController struct {
	queueRepo repository.QueueRepository
}

// NewAdminQueueController creates a new admin queue controller with repository
func NewAdminQueueController(queueRepo repository.QueueRepository) *AdminQueueController {
	return &AdminQueueController{
		queueRepo: queueRepo,
	}
}

// CacheEntry is one Redis key with its value preview and TTL.
type CacheEntry struct {
	Key   string
	Value string
	TTL   string
}

// HandleAdminQueues displays the cache monitor page
func (aqc *AdminQueueController) HandleAdminQueues(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	entries, err := aqc.getCacheEntries()
	if err != nil {
		entries = []CacheEntry{}
	}

	return c.Render("admin/queues", fiber.Map{
		"Title":       "Cache Monitor",
		"Flash":       flash.Get(c),
		"IsAdmin":     userCtx.IsAdmin,
		"Entries":     entries,
		"RefreshedAt": time.Now().Format("15:04:05"),
		"CSRF":        c.Locals("csrf"),
	})
}

// HandleAdminQueueDelete removes a single cache key
func (aqc *AdminQueueController) HandleAdminQueueDelete(c *fiber.Ctx) error {
	key := c.FormValue("key")
	if key == "" {
		fm := fiber.Map{"type": "error", "message": "No cache key given"}
		return flash.WithError(c, fm).Redirect("/admin/queues")
	}

	if _, err := aqc.queueRepo.DeleteKey(key); err != nil {
		fm := fiber.Map{"type": "error", "message": "Failed to delete key: " + err.Error()}
		return flash.WithError(c, fm).Redirect("/admin/queues")
	}

	fm := fiber.Map{"type": "success", "message": "Cache key deleted"}
	return flash.WithSuccess(c, fm).Redirect("/admin/queues")
}

func (aqc *AdminQueueController) getCacheEntries() ([]CacheEntry, error) {
	keys, err := aqc.queueRepo.GetAllKeys()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	entries := make([]CacheEntry, 0, len(keys))
	for _, key := range keys {
		value, err := aqc.queueRepo.GetValue(key)
		if err != nil {
			// Lists and hashes have no plain string value.
			value = "(non-string)"
		}
		if len(value) > 120 {
			value = value[:120] + "…"
		}

		ttlText := "none"
		if ttl, err := aqc.queueRepo.GetTTL(key); err == nil && ttl > 0 {
			ttlText = ttl.Round(time.Second).String()
		}

		entries = append(entries, CacheEntry{
			Key:   strings.TrimSpace(key),
			Value: value,
			TTL:   ttlText,
		})
	}
	return entries, nil
}

// Global admin queue controller instance
var adminQueueController *AdminQueueController

// GetAdminQueueController returns the global admin queue controller
func GetAdminQueueController() *AdminQueueController {
	if adminQueueController == nil {
		adminQueueController = NewAdminQueueController(repository.GetGlobalRepositories().Queue)
	}
	return adminQueueController
}

// HandleAdminQueuesPage - Adapter for the cache monitor page
func HandleAdminQueuesPage(c *fiber.Ctx) error {
	return GetAdminQueueController().HandleAdminQueues(c)
}

// HandleAdminQueuesDelete - Adapter for cache key deletion
func HandleAdminQueuesDelete(c *fiber.Ctx) error {
	return GetAdminQueueController().HandleAdminQueueDelete(c)
}

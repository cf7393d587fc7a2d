package controllers

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/LinkFox/app/models"
	"github.com/ManuelReschke/LinkFox/internal/pkg/database"
	"github.com/ManuelReschke/LinkFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/LinkFox/internal/pkg/shortener"
	"github.com/ManuelReschke/LinkFox/internal/pkg/usercontext"
)

const generatedSlugLength = 7

type redirectRequest struct {
	Slug      string `json:"slug" form:"slug"`
	TargetURL string `json:"target_url" form:"target_url"`
	IsActive  *bool  `json:"is_active" form:"is_active"`
}

// HandleListRedirects returns the caller's short links with quota info.
func HandleListRedirects(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	db := database.GetDB()
	redirects, err := models.ListRedirectsByUser(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load redirects"})
	}

	ent, err := models.GetOrCreateEntitlement(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}
	limits := currentLimits(c, ent)

	return c.JSON(fiber.Map{
		"redirects": redirects,
		"limits": fiber.Map{
			"max_redirects": limits.MaxRedirects,
			"used":          len(redirects),
		},
	})
}

// HandleCreateRedirect creates a short link if the caller still has quota.
// Without an explicit slug a random one is generated.
func HandleCreateRedirect(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req redirectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	db := database.GetDB()
	ent, err := models.GetOrCreateEntitlement(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}
	limits := currentLimits(c, ent)

	count, err := models.CountRedirectsByUser(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count redirects"})
	}
	if count >= int64(limits.MaxRedirects) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "quota_exceeded",
			"message": "Redirect limit reached. Upgrade your plan or buy an extra redirect.",
		})
	}

	slug := normalizeSlug(req.Slug)
	if slug == "" {
		slug, err = shortener.GenerateSecureSlug(generatedSlugLength)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to generate slug"})
		}
	}

	redirect := models.Redirect{
		UserID:    userCtx.UserID,
		Slug:      slug,
		TargetURL: strings.TrimSpace(req.TargetURL),
		IsActive:  true,
	}
	if err := redirect.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := db.Create(&redirect).Error; err != nil {
		if isDuplicateKeyError(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "slug_taken", "message": "This slug is already in use"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create redirect"})
	}

	return c.Status(fiber.StatusCreated).JSON(redirect)
}

// HandleUpdateRedirect updates a short link the caller owns.
func HandleUpdateRedirect(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	redirect, status, errMap := loadOwnRedirect(c, userCtx.UserID)
	if errMap != nil {
		return c.Status(status).JSON(errMap)
	}

	var req redirectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	if req.TargetURL != "" {
		redirect.TargetURL = strings.TrimSpace(req.TargetURL)
	}
	if req.Slug != "" {
		redirect.Slug = normalizeSlug(req.Slug)
	}
	if req.IsActive != nil {
		redirect.IsActive = *req.IsActive
	}

	if err := redirect.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := database.GetDB().Save(redirect).Error; err != nil {
		if isDuplicateKeyError(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "slug_taken", "message": "This slug is already in use"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update redirect"})
	}

	return c.JSON(redirect)
}

// HandleDeleteRedirect soft-deletes a short link the caller owns.
func HandleDeleteRedirect(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	redirect, status, errMap := loadOwnRedirect(c, userCtx.UserID)
	if errMap != nil {
		return c.Status(status).JSON(errMap)
	}

	if err := database.GetDB().Delete(redirect).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete redirect"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleFollowRedirect resolves a public short link and counts the hit.
func HandleFollowRedirect(c *fiber.Ctx) error {
	slug := c.Params("slug")

	db := database.GetDB()
	redirect, err := models.FindRedirectBySlug(db, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).Render("errors/404", fiber.Map{})
		}
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to resolve link")
	}

	// Hits are buffered in Redis and flushed in batches. Fall back to a
	// direct update when the cache is unavailable.
	if err := counter.AddRedirectHit(redirect.ID); err != nil {
		if err := models.RecordRedirectHit(db, redirect.ID); err != nil {
			// The redirect still works when hit counting fails.
			ipv4, _ := GetClientIP(c)
			log.Printf("redirect: hit count for %s (client %s) failed: %v", redirect.Slug, ipv4, err)
		}
	}

	return c.Redirect(redirect.TargetURL, fiber.StatusFound)
}

func loadOwnRedirect(c *fiber.Ctx, userID uint) (*models.Redirect, int, fiber.Map) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return nil, fiber.StatusBadRequest, fiber.Map{"error": "bad_request", "message": "Invalid redirect id"}
	}

	var redirect models.Redirect
	if err := database.GetDB().First(&redirect, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, fiber.Map{"error": "not_found", "message": "Redirect not found"}
		}
		return nil, fiber.StatusInternalServerError, fiber.Map{"error": "internal_server_error", "message": "Failed to load redirect"}
	}
	if redirect.UserID != userID {
		return nil, fiber.StatusNotFound, fiber.Map{"error": "not_found", "message": "Redirect not found"}
	}
	return &redirect, fiber.StatusOK, nil
}

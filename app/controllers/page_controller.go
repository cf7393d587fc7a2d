package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/LinkFox/app/models"
	"github.com/ManuelReschke/LinkFox/internal/pkg/database"
	"github.com/ManuelReschke/LinkFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/LinkFox/internal/pkg/usercontext"
	"github.com/ManuelReschke/LinkFox/internal/pkg/utils"
)

type linkPageRequest struct {
	Title    string `json:"title" form:"title"`
	Slug     string `json:"slug" form:"slug"`
	Content  string `json:"content" form:"content"`
	Theme    string `json:"theme" form:"theme"`
	IsActive *bool  `json:"is_active" form:"is_active"`
}

// HandleListLinkPages returns the caller's pages together with the quota
// still available to them.
func HandleListLinkPages(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	db := database.GetDB()
	pages, err := models.ListLinkPagesByUser(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load pages"})
	}

	ent, err := models.GetOrCreateEntitlement(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}
	limits := currentLimits(c, ent)

	return c.JSON(fiber.Map{
		"pages": pages,
		"limits": fiber.Map{
			"max_pages": limits.MaxPages,
			"used":      len(pages),
		},
	})
}

// HandleCreateLinkPage creates a page if the caller still has quota.
func HandleCreateLinkPage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req linkPageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	db := database.GetDB()
	ent, err := models.GetOrCreateEntitlement(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}
	limits := currentLimits(c, ent)

	count, err := models.CountLinkPagesByUser(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count pages"})
	}
	if count >= int64(limits.MaxPages) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "quota_exceeded",
			"message": "Page limit reached. Upgrade your plan or buy an extra page.",
		})
	}

	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		theme = "default"
	}
	if theme != "default" && !limits.CustomThemes {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "quota_exceeded", "message": "Custom themes require a premium plan"})
	}

	page := models.LinkPage{
		UserID:   userCtx.UserID,
		Title:    strings.TrimSpace(req.Title),
		Slug:     normalizeSlug(req.Slug),
		Content:  req.Content,
		Theme:    theme,
		IsActive: true,
	}
	if err := page.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := db.Create(&page).Error; err != nil {
		if isDuplicateKeyError(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "slug_taken", "message": "This slug is already in use"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create page"})
	}

	return c.Status(fiber.StatusCreated).JSON(page)
}

// HandleUpdateLinkPage updates a page the caller owns.
func HandleUpdateLinkPage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	page, status, errMap := loadOwnLinkPage(c, userCtx.UserID)
	if errMap != nil {
		return c.Status(status).JSON(errMap)
	}

	var req linkPageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	db := database.GetDB()
	if req.Title != "" {
		page.Title = strings.TrimSpace(req.Title)
	}
	if req.Slug != "" {
		page.Slug = normalizeSlug(req.Slug)
	}
	if req.Content != "" {
		page.Content = req.Content
	}
	if req.IsActive != nil {
		page.IsActive = *req.IsActive
	}
	if theme := strings.TrimSpace(req.Theme); theme != "" && theme != page.Theme {
		ent, err := models.GetOrCreateEntitlement(db, userCtx.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
		}
		if theme != "default" && !currentLimits(c, ent).CustomThemes {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "quota_exceeded", "message": "Custom themes require a premium plan"})
		}
		page.Theme = theme
	}

	if err := page.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := db.Save(page).Error; err != nil {
		if isDuplicateKeyError(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "slug_taken", "message": "This slug is already in use"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update page"})
	}

	return c.JSON(page)
}

// HandleDeleteLinkPage soft-deletes a page the caller owns.
func HandleDeleteLinkPage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	page, status, errMap := loadOwnLinkPage(c, userCtx.UserID)
	if errMap != nil {
		return c.Status(status).JSON(errMap)
	}

	if err := database.GetDB().Delete(page).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete page"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleShowLinkPage renders a public page by slug.
func HandleShowLinkPage(c *fiber.Ctx) error {
	slug := c.Params("slug")

	db := database.GetDB()
	page, err := models.FindLinkPageBySlug(db, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).Render("errors/404", fiber.Map{})
		}
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load page")
	}

	owner, err := models.FindUserByID(db, page.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load page")
	}
	ent, err := models.GetOrCreateEntitlement(db, page.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load page")
	}
	// Branding follows the owner's limits, not the viewer's.
	ownerLimits := ownerLimitsFor(owner, ent)

	// View counting is best effort, buffered in Redis.
	_ = counter.AddPageView(page.ID)

	return c.Render("page", fiber.Map{
		"Title":        page.Title,
		"Content":      utils.ProcessHTMLContent(page.Content),
		"Theme":        page.Theme,
		"ShowBranding": !ownerLimits.RemoveBranding,
	})
}

func loadOwnLinkPage(c *fiber.Ctx, userID uint) (*models.LinkPage, int, fiber.Map) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return nil, fiber.StatusBadRequest, fiber.Map{"error": "bad_request", "message": "Invalid page id"}
	}

	page, err := models.FindLinkPageByID(database.GetDB(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, fiber.Map{"error": "not_found", "message": "Page not found"}
		}
		return nil, fiber.StatusInternalServerError, fiber.Map{"error": "internal_server_error", "message": "Failed to load page"}
	}
	if page.UserID != userID {
		// Ownership is not leaked; foreign ids look like missing ones.
		return nil, fiber.StatusNotFound, fiber.Map{"error": "not_found", "message": "Page not found"}
	}
	return page, fiber.StatusOK, nil
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}

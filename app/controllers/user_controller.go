package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/LinkFox/app/models"
	"github.com/ManuelReschke/LinkFox/internal/pkg/database"
	"github.com/ManuelReschke/LinkFox/internal/pkg/usercontext"
	"github.com/ManuelReschke/LinkFox/internal/pkg/utils"
)

func HandleUserProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	user, err := models.FindUserByID(db, userCtx.UserID)
	if err != nil {
		flash.WithError(c, fiber.Map{"message": "User not found"})
		return c.Redirect("/")
	}

	pageCount, _ := models.CountLinkPagesByUser(db, userCtx.UserID)
	redirectCount, _ := models.CountRedirectsByUser(db, userCtx.UserID)

	return c.Render("user/profile", fiber.Map{
		"Title":         "Profile",
		"Flash":         flash.Get(c),
		"User":          user,
		"AvatarURL":     utils.GetGravatarURL(user.Email, 200),
		"PageCount":     pageCount,
		"RedirectCount": redirectCount,
		"IsAdmin":       userCtx.IsAdmin,
	})
}

func HandleUserSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	return c.Render("user/settings", fiber.Map{
		"Title":    "Settings",
		"Flash":    flash.Get(c),
		"Username": userCtx.Username,
		"IsAdmin":  userCtx.IsAdmin,
		"CSRF":     c.Locals("csrf"),
	})
}

// HandleUserBillingSettings renders the billing page with the current
// entitlement state, effective limits and purchase history. The hosted
// checkout redirects back here with ?checkout=success|cancelled.
func HandleUserBillingSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	ent, err := models.GetOrCreateEntitlement(db, userCtx.UserID)
	if err != nil {
		flash.WithError(c, fiber.Map{"message": "Failed to load billing state"})
		return c.Redirect("/user/settings")
	}
	limits := currentLimits(c, ent)

	purchases, err := models.ListPurchasesByUser(db, userCtx.UserID)
	if err != nil {
		flash.WithError(c, fiber.Map{"message": "Failed to load purchase history"})
		return c.Redirect("/user/settings")
	}

	// Entitlements flip via webhook, which may lag the redirect by a
	// moment; the banner manages expectations instead of polling.
	checkoutBanner := ""
	switch c.Query("checkout") {
	case "success":
		checkoutBanner = "Payment received! Your new limits will be active within a minute."
	case "cancelled":
		checkoutBanner = "Checkout cancelled. Nothing was charged."
	}

	return c.Render("user/billing", fiber.Map{
		"Title":          "Billing",
		"Flash":          flash.Get(c),
		"Username":       userCtx.Username,
		"IsAdmin":        userCtx.IsAdmin,
		"CSRF":           c.Locals("csrf"),
		"Entitlement":    ent,
		"Limits":         limits,
		"Purchases":      purchases,
		"CheckoutBanner": checkoutBanner,
	})
}

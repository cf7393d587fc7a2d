package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/LinkFox/app/models"
	"github.com/ManuelReschke/LinkFox/internal/pkg/billing"
	"github.com/ManuelReschke/LinkFox/internal/pkg/database"
	"github.com/ManuelReschke/LinkFox/internal/pkg/usercontext"
)

type planChangeRequest struct {
	Premium        bool `json:"premium"`
	ExtraPages     int  `json:"extra_pages" validate:"min=0,max=100"`
	ExtraRedirects int  `json:"extra_redirects" validate:"min=0,max=1000"`
}

func (r *planChangeRequest) Validate() error {
	v := validator.New()
	return v.Struct(r)
}

// HandleBillingPlan converges the caller's subscription toward the
// requested plan. The response either carries a checkout URL to redirect
// to or reports the synchronous outcome; entitlements only change once the
// corresponding webhook arrives.
func HandleBillingPlan(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
	}

	var req planChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantities out of range"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	desired := billing.DesiredPlanConfig{
		Premium:        req.Premium,
		ExtraPages:     req.ExtraPages,
		ExtraRedirects: req.ExtraRedirects,
	}
	result, err := svc.ChangePlan(ctx, userCtx.UserID, desired, c.BaseURL())
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"outcome":      result.Outcome,
		"checkout_url": result.CheckoutURL,
		"message":      result.Message,
	})
}

// HandleBillingCancel cancels the caller's active subscription. Without
// one this is a no-op.
func HandleBillingCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := svc.CancelPlan(ctx, userCtx.UserID)
	if err != nil {
		return billingErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"outcome": result.Outcome, "message": result.Message})
}

// HandleBillingWebhook receives Stripe events. Anything the reconciler
// handled, deduplicated or deliberately ignored is acknowledged with 200;
// only signature rejections and transient processing failures return
// non-200 so Stripe retries.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := svc.HandleWebhookEvent(ctx, rawBody, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.JSON(fiber.Map{"ok": true, "duplicate": result.Duplicate, "ignored": result.Ignored})
}

// HandleBillingStatus reports the caller's current entitlement state and
// effective limits.
func HandleBillingStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login required"})
	}

	db := database.GetDB()
	ent, err := models.GetOrCreateEntitlement(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "entitlement lookup failed"})
	}
	limits := currentLimits(c, ent)

	purchases, err := models.ListPurchasesByUser(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "purchase lookup failed"})
	}

	return c.JSON(fiber.Map{
		"entitlement": ent,
		"limits":      limits,
		"purchases":   purchases,
	})
}

func billingErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrBillingDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing is not available"})
	case billing.IsProviderError(err):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "billing provider request failed"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "billing request failed"})
	}
}

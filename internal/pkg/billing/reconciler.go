package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ManuelReschke/LinkFox/app/models"
)

// premiumSafetyNet is the provisional premium duration applied on checkout
// completion. The first subscription-updated event carrying the real
// current_period_end supersedes it.
const premiumSafetyNet = 32 * 24 * time.Hour

// checkoutSessionEvent is the slice of a checkout.session.completed
// payload the reconciler needs. Declaring it locally keeps the handler
// independent of SDK struct drift across API versions.
type checkoutSessionEvent struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      string            `json:"customer"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// subscriptionEvent is the slice of a customer.subscription.* payload the
// reconciler needs. current_period_end lives on the items in newer API
// versions and on the subscription itself in older ones; both are read.
type subscriptionEvent struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (e *subscriptionEvent) periodEnd() *time.Time {
	end := e.CurrentPeriodEnd
	for _, item := range e.Items.Data {
		if item.CurrentPeriodEnd > end {
			end = item.CurrentPeriodEnd
		}
	}
	if end == 0 {
		return nil
	}
	t := time.Unix(end, 0)
	return &t
}

// HandleWebhookEvent verifies and applies one inbound provider event.
// Every successfully handled variant (applied, duplicate, ignored) maps to
// HTTP 200; the reconciler never retries on its own — the provider's
// retry-on-non-200 policy is the sole delivery-failure recovery mechanism.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	event, err := s.verifyEvent(payload, signatureHeader)
	if err != nil {
		return nil, err
	}
	result := &WebhookResult{EventType: string(event.Type)}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
		StripeEventID:  event.ID,
		EventType:      string(event.Type),
		PayloadJSON:    string(payload),
		SignatureValid: s.cfg.WebhookSecret != "",
	})
	if err != nil {
		return nil, err
	}
	// A redelivered event that previously processed cleanly is a no-op. A
	// redelivery of a failed event runs again instead of short-circuiting.
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		result.Duplicate = true
		return result, nil
	}

	handleErr := s.dispatchEvent(ctx, event, result)
	errMsg := ""
	if handleErr != nil {
		errMsg = handleErr.Error()
	}
	if markErr := s.repo.MarkWebhookProcessed(stored.ID, errMsg); markErr != nil {
		log.Printf("billing: mark webhook %s processed: %v", event.ID, markErr)
	}
	if handleErr != nil {
		return nil, handleErr
	}
	return result, nil
}

func (s *Service) verifyEvent(payload []byte, signatureHeader string) (*stripe.Event, error) {
	if s.cfg.WebhookSecret != "" {
		event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return &event, nil
	}

	// Acceptable only outside production: without a signing secret the
	// event is trusted as delivered.
	log.Printf("billing: accepting webhook without signature verification, no STRIPE_WEBHOOK_SECRET configured")
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: unparseable payload: %v", ErrInvalidSignature, err)
	}
	return &event, nil
}

func (s *Service) dispatchEvent(ctx context.Context, event *stripe.Event, result *WebhookResult) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event, result)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event, result)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event, result)
	default:
		// Unknown event kinds are acknowledged and ignored.
		result.Ignored = true
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(_ context.Context, event *stripe.Event, result *WebhookResult) error {
	var sess checkoutSessionEvent
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("billing: decode checkout session: %w", err)
	}

	userID, err := metadataUserID(sess.Metadata)
	if err != nil {
		// Not a checkout this engine opened; acknowledge and move on.
		log.Printf("billing: checkout %s without user metadata ignored", sess.ID)
		result.Ignored = true
		return nil
	}

	premium := sess.Metadata[MetadataPremium] == "true"
	extraPages := metadataInt(sess.Metadata, MetadataExtraPages)
	extraRedirects := metadataInt(sess.Metadata, MetadataExtraRedirects)
	if !premium && extraPages == 0 && extraRedirects == 0 {
		result.Ignored = true
		return nil
	}

	purchase := &models.Purchase{
		UserID:          userID,
		Kind:            purchaseKindFor(premium, extraPages, extraRedirects),
		AmountCents:     sess.AmountTotal,
		Quantity:        purchaseQuantityFor(premium, extraPages, extraRedirects),
		StripeSessionID: sess.ID,
		StripePaymentID: sess.PaymentIntent,
	}

	eventTime := time.Unix(event.Created, 0)
	created, err := s.repo.ApplyCheckout(purchase, func(ent *models.Entitlement) {
		if premium && !ent.HasManualGrant() {
			until := eventTime.Add(premiumSafetyNet)
			ent.IsPremium = true
			ent.PremiumSource = models.PremiumSourceProvider
			ent.PremiumUntil = &until
		}
		// Counters only ever increase, even if the recurring line item is
		// later removed again.
		ent.ExtraPages += extraPages
		ent.ExtraRedirects += extraRedirects
	})
	if err != nil {
		return fmt.Errorf("billing: apply checkout %s: %w", sess.ID, err)
	}
	if !created {
		result.Duplicate = true
	}
	return nil
}

func (s *Service) handleSubscriptionUpdated(_ context.Context, event *stripe.Event, result *WebhookResult) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("billing: decode subscription: %w", err)
	}
	if sub.Status != string(stripe.SubscriptionStatusActive) {
		result.Ignored = true
		return nil
	}

	ent, err := s.repo.GetEntitlementByCustomerID(sub.Customer)
	if err != nil {
		if err == ErrUnknownCustomer {
			log.Printf("billing: subscription %s for unknown customer %s ignored", sub.ID, sub.Customer)
			result.Ignored = true
			return nil
		}
		return err
	}
	if ent.HasManualGrant() {
		result.Ignored = true
		return nil
	}

	eventTime := time.Unix(event.Created, 0)
	if ent.ProviderStateAt != nil && eventTime.Before(*ent.ProviderStateAt) {
		// Out-of-order delivery: a newer event already wrote this row.
		result.Ignored = true
		return nil
	}

	// Full overwrite, not additive, so redelivery is harmless.
	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceProvider
	ent.PremiumUntil = sub.periodEnd()
	ent.ProviderStateAt = &eventTime
	return s.repo.SaveEntitlement(ent)
}

func (s *Service) handleSubscriptionDeleted(_ context.Context, event *stripe.Event, result *WebhookResult) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("billing: decode subscription: %w", err)
	}

	ent, err := s.repo.GetEntitlementByCustomerID(sub.Customer)
	if err != nil {
		if err == ErrUnknownCustomer {
			result.Ignored = true
			return nil
		}
		return err
	}
	// A manual grant is never touched by provider lifecycle events.
	if ent.PremiumSource != models.PremiumSourceProvider {
		result.Ignored = true
		return nil
	}

	eventTime := time.Unix(event.Created, 0)
	if ent.ProviderStateAt != nil && eventTime.Before(*ent.ProviderStateAt) {
		result.Ignored = true
		return nil
	}

	ent.ClearProviderPremium()
	ent.ProviderStateAt = &eventTime
	return s.repo.SaveEntitlement(ent)
}

func metadataUserID(metadata map[string]string) (uint, error) {
	raw, ok := metadata[MetadataUserID]
	if !ok || raw == "" {
		return 0, fmt.Errorf("billing: metadata missing %s", MetadataUserID)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("billing: invalid %s %q", MetadataUserID, raw)
	}
	return uint(id), nil
}

func metadataInt(metadata map[string]string, key string) int {
	n, err := strconv.Atoi(metadata[key])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func purchaseKindFor(premium bool, extraPages, extraRedirects int) string {
	switch {
	case premium:
		return models.PurchaseKindPremium
	case extraPages > 0:
		return models.PurchaseKindExtraPage
	case extraRedirects > 0:
		return models.PurchaseKindExtraRedirect
	default:
		return models.PurchaseKindPremium
	}
}

func purchaseQuantityFor(premium bool, extraPages, extraRedirects int) int {
	if premium {
		return 1
	}
	return extraPages + extraRedirects
}

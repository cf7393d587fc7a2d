package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/LinkFox/app/models"
)

func checkoutObject(sessionID string, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"mode":           "subscription",
		"customer":       "cus_test",
		"payment_intent": "pi_test",
		"amount_total":   1498,
		"metadata":       metadata,
	}
}

func subscriptionObject(status string, periodEnd int64) map[string]interface{} {
	return map[string]interface{}{
		"id":       "sub_1",
		"customer": "cus_test",
		"status":   status,
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"current_period_end": periodEnd},
			},
		},
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeProvider{})

	payload, _ := signedEvent(t, testWebhookSecret, "evt_1", "checkout.session.completed", time.Now().Unix(), checkoutObject("cs_1", nil))
	_, badHeader := signedEvent(t, "whsec_wrong", "evt_1", "checkout.session.completed", time.Now().Unix(), checkoutObject("cs_1", nil))

	_, err := svc.HandleWebhookEvent(context.Background(), payload, badHeader)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(svc.repo.(*fakeRepo).events) != 0 {
		t.Fatal("rejected event must not be stored")
	}
}

func TestCheckoutCompletedAppliesExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProvider{})

	created := time.Now().Unix()
	metadata := map[string]string{
		MetadataUserID:         "7",
		MetadataPremium:        "true",
		MetadataExtraPages:     "2",
		MetadataExtraRedirects: "0",
	}
	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "checkout.session.completed", created, checkoutObject("cs_1", metadata))

	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if res.Duplicate || res.Ignored {
		t.Fatalf("first delivery must apply, got %+v", res)
	}

	ent := repo.entitlements[7]
	if ent == nil || !ent.IsPremium || ent.PremiumSource != models.PremiumSourceProvider {
		t.Fatalf("premium not granted: %+v", ent)
	}
	if ent.ExtraPages != 2 || ent.ExtraRedirects != 0 {
		t.Fatalf("extras wrong: %+v", ent)
	}
	if ent.PremiumUntil == nil {
		t.Fatal("expected provisional premium expiry")
	}
	wantUntil := time.Unix(created, 0).Add(premiumSafetyNet)
	if !ent.PremiumUntil.Equal(wantUntil) {
		t.Fatalf("provisional expiry wrong: got %v want %v", ent.PremiumUntil, wantUntil)
	}

	purchase := repo.purchases["cs_1"]
	if purchase == nil || purchase.UserID != 7 || purchase.Kind != models.PurchaseKindPremium || purchase.AmountCents != 1498 {
		t.Fatalf("purchase row wrong: %+v", purchase)
	}

	// Redelivery of the same event id acknowledges without re-applying.
	res, err = svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !res.Duplicate {
		t.Fatalf("expected duplicate ack, got %+v", res)
	}
	if repo.entitlements[7].ExtraPages != 2 {
		t.Fatalf("redelivery mutated extras: %+v", repo.entitlements[7])
	}
	if len(repo.purchases) != 1 {
		t.Fatalf("expected one purchase row, got %d", len(repo.purchases))
	}
}

func TestCheckoutCompletedSameSessionDifferentEventID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProvider{})

	metadata := map[string]string{MetadataUserID: "7", MetadataExtraPages: "1"}
	created := time.Now().Unix()
	for _, eventID := range []string{"evt_1", "evt_2"} {
		payload, header := signedEvent(t, testWebhookSecret, eventID, "checkout.session.completed", created, checkoutObject("cs_1", metadata))
		if _, err := svc.HandleWebhookEvent(context.Background(), payload, header); err != nil {
			t.Fatalf("HandleWebhookEvent(%s): %v", eventID, err)
		}
	}

	// The ledger keys on the session id, so even distinct event ids for
	// the same session apply once.
	if repo.entitlements[7].ExtraPages != 1 {
		t.Fatalf("session applied more than once: %+v", repo.entitlements[7])
	}
	if len(repo.purchases) != 1 {
		t.Fatalf("expected one purchase row, got %d", len(repo.purchases))
	}
}

func TestCheckoutCompletedKeepsManualGrant(t *testing.T) {
	repo := newFakeRepo()
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceManual
	ent.PremiumUntil = nil // permanent staff grant
	svc := newTestService(repo, &fakeProvider{})

	metadata := map[string]string{MetadataUserID: "7", MetadataPremium: "true", MetadataExtraPages: "1"}
	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "checkout.session.completed", time.Now().Unix(), checkoutObject("cs_1", metadata))
	if _, err := svc.HandleWebhookEvent(context.Background(), payload, header); err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if ent.PremiumSource != models.PremiumSourceManual || ent.PremiumUntil != nil {
		t.Fatalf("manual grant clobbered: %+v", ent)
	}
	// Paid add-ons still count even under a manual grant.
	if ent.ExtraPages != 1 {
		t.Fatalf("extras not applied: %+v", ent)
	}
}

func TestCheckoutCompletedForeignSessionIgnored(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProvider{})

	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "checkout.session.completed", time.Now().Unix(), checkoutObject("cs_1", nil))
	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if !res.Ignored {
		t.Fatalf("expected ignored ack, got %+v", res)
	}
	if len(repo.purchases) != 0 {
		t.Fatal("no purchase expected for a session without metadata")
	}
}

func TestSubscriptionUpdatedOverwritesProvisionalExpiry(t *testing.T) {
	repo := newFakeRepo()
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_test"
	provisional := time.Now().Add(premiumSafetyNet)
	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceProvider
	ent.PremiumUntil = &provisional
	svc := newTestService(repo, &fakeProvider{})

	periodEnd := time.Now().AddDate(0, 1, 0).Truncate(time.Second)
	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "customer.subscription.updated", time.Now().Unix(), subscriptionObject("active", periodEnd.Unix()))

	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if res.Ignored {
		t.Fatalf("expected applied, got %+v", res)
	}
	if ent.PremiumUntil == nil || !ent.PremiumUntil.Equal(periodEnd) {
		t.Fatalf("period end not adopted: got %v want %v", ent.PremiumUntil, periodEnd)
	}
	if ent.ProviderStateAt == nil {
		t.Fatal("provider state timestamp not recorded")
	}
}

func TestSubscriptionUpdatedIgnoresStaleEvent(t *testing.T) {
	repo := newFakeRepo()
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_test"
	newer := time.Now()
	freshEnd := newer.AddDate(0, 1, 0)
	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceProvider
	ent.PremiumUntil = &freshEnd
	ent.ProviderStateAt = &newer
	svc := newTestService(repo, &fakeProvider{})

	staleCreated := newer.Add(-time.Hour).Unix()
	stalePeriodEnd := newer.AddDate(0, 0, 2).Unix()
	payload, header := signedEvent(t, testWebhookSecret, "evt_stale", "customer.subscription.updated", staleCreated, subscriptionObject("active", stalePeriodEnd))

	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if !res.Ignored {
		t.Fatalf("stale event must be ignored, got %+v", res)
	}
	if !ent.PremiumUntil.Equal(freshEnd) {
		t.Fatalf("stale event overwrote newer state: %+v", ent)
	}
}

func TestSubscriptionUpdatedUnknownCustomerAcked(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeProvider{})
	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "customer.subscription.updated", time.Now().Unix(), subscriptionObject("active", time.Now().AddDate(0, 1, 0).Unix()))

	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("unknown customer must ack, got %v", err)
	}
	if !res.Ignored {
		t.Fatalf("expected ignored ack, got %+v", res)
	}
}

func TestSubscriptionUpdatedKeepsManualGrant(t *testing.T) {
	repo := newFakeRepo()
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_test"
	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceManual
	svc := newTestService(repo, &fakeProvider{})

	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "customer.subscription.updated", time.Now().Unix(), subscriptionObject("active", time.Now().AddDate(0, 1, 0).Unix()))
	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if !res.Ignored || ent.PremiumSource != models.PremiumSourceManual || ent.PremiumUntil != nil {
		t.Fatalf("manual grant touched: res=%+v ent=%+v", res, ent)
	}
}

func TestSubscriptionDeletedClearsProviderPremium(t *testing.T) {
	repo := newFakeRepo()
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_test"
	until := time.Now().AddDate(0, 1, 0)
	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceProvider
	ent.PremiumUntil = &until
	ent.ExtraPages = 3
	svc := newTestService(repo, &fakeProvider{})

	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "customer.subscription.deleted", time.Now().Unix(), subscriptionObject("canceled", 0))
	if _, err := svc.HandleWebhookEvent(context.Background(), payload, header); err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	if ent.IsPremium || ent.PremiumUntil != nil || ent.PremiumSource != models.PremiumSourceNone {
		t.Fatalf("provider premium not cleared: %+v", ent)
	}
	// Pay-once counters survive subscription teardown.
	if ent.ExtraPages != 3 {
		t.Fatalf("extras must survive cancellation: %+v", ent)
	}
}

func TestSubscriptionDeletedKeepsManualGrant(t *testing.T) {
	repo := newFakeRepo()
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_test"
	ent.IsPremium = true
	ent.PremiumSource = models.PremiumSourceManual
	svc := newTestService(repo, &fakeProvider{})

	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "customer.subscription.deleted", time.Now().Unix(), subscriptionObject("canceled", 0))
	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if !res.Ignored || !ent.IsPremium || ent.PremiumSource != models.PremiumSourceManual {
		t.Fatalf("manual grant touched: res=%+v ent=%+v", res, ent)
	}
}

func TestUnknownEventTypeAcked(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeProvider{})

	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "invoice.paid", time.Now().Unix(), map[string]interface{}{"id": "in_1"})
	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if !res.Ignored {
		t.Fatalf("expected ignored ack, got %+v", res)
	}

	stored := repo.events["evt_1"]
	if stored == nil || stored.ProcessedAt == nil || stored.ProcessingError != "" {
		t.Fatalf("event bookkeeping wrong: %+v", stored)
	}
}

func TestFailedEventRetriedOnRedelivery(t *testing.T) {
	repo := newFakeRepo()
	// Simulate an earlier delivery that failed mid-processing.
	failedAt := time.Now().Add(-time.Minute)
	repo.events["evt_1"] = &models.BillingWebhookEvent{
		ID:              1,
		StripeEventID:   "evt_1",
		EventType:       "checkout.session.completed",
		ProcessedAt:     &failedAt,
		ProcessingError: "db connection lost",
	}
	repo.nextEventID = 1
	svc := newTestService(repo, &fakeProvider{})

	metadata := map[string]string{MetadataUserID: "7", MetadataExtraRedirects: "5"}
	payload, header := signedEvent(t, testWebhookSecret, "evt_1", "checkout.session.completed", time.Now().Unix(), checkoutObject("cs_1", metadata))

	res, err := svc.HandleWebhookEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}
	if res.Duplicate {
		t.Fatalf("failed event must be reprocessed, got %+v", res)
	}
	if repo.entitlements[7] == nil || repo.entitlements[7].ExtraRedirects != 5 {
		t.Fatalf("retry did not apply: %+v", repo.entitlements[7])
	}
	if repo.events["evt_1"].ProcessingError != "" {
		t.Fatalf("error not cleared after successful retry: %+v", repo.events["evt_1"])
	}
}

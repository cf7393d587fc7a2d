package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/ManuelReschke/LinkFox/app/models"
)

const testWebhookSecret = "whsec_test_123"

// fakeRepo is an in-memory Repository. It mirrors the semantics the real
// implementation gets from unique constraints: one entitlement per user,
// one purchase per session id, one webhook event per event id.
type fakeRepo struct {
	users        map[uint]*models.User
	entitlements map[uint]*models.Entitlement
	purchases    map[string]*models.Purchase
	events       map[string]*models.BillingWebhookEvent
	nextEventID  uint

	// raceCustomerID simulates a concurrent resolver winning the claim
	// between CreateCustomer and ClaimCustomerID.
	raceCustomerID string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:        make(map[uint]*models.User),
		entitlements: make(map[uint]*models.Entitlement),
		purchases:    make(map[string]*models.Purchase),
		events:       make(map[string]*models.BillingWebhookEvent),
	}
}

func (r *fakeRepo) GetUser(userID uint) (*models.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeRepo) GetOrCreateEntitlement(userID uint) (*models.Entitlement, error) {
	if ent, ok := r.entitlements[userID]; ok {
		return ent, nil
	}
	ent := &models.Entitlement{ID: userID, UserID: userID, PremiumSource: models.PremiumSourceNone}
	r.entitlements[userID] = ent
	return ent, nil
}

func (r *fakeRepo) GetEntitlementByCustomerID(customerID string) (*models.Entitlement, error) {
	for _, ent := range r.entitlements {
		if ent.StripeCustomerID == customerID {
			return ent, nil
		}
	}
	return nil, ErrUnknownCustomer
}

func (r *fakeRepo) ClaimCustomerID(userID uint, customerID string) (string, bool, error) {
	ent, err := r.GetOrCreateEntitlement(userID)
	if err != nil {
		return "", false, err
	}
	if r.raceCustomerID != "" && ent.StripeCustomerID == "" {
		ent.StripeCustomerID = r.raceCustomerID
	}
	if ent.StripeCustomerID != "" {
		return ent.StripeCustomerID, false, nil
	}
	ent.StripeCustomerID = customerID
	return customerID, true, nil
}

func (r *fakeRepo) FindPurchaseBySessionID(sessionID string) (*models.Purchase, error) {
	p, ok := r.purchases[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *fakeRepo) ApplyCheckout(purchase *models.Purchase, mutate func(ent *models.Entitlement)) (bool, error) {
	if _, exists := r.purchases[purchase.StripeSessionID]; exists {
		return false, nil
	}
	r.purchases[purchase.StripeSessionID] = purchase
	ent, err := r.GetOrCreateEntitlement(purchase.UserID)
	if err != nil {
		return false, err
	}
	mutate(ent)
	return true, nil
}

func (r *fakeRepo) SaveEntitlement(ent *models.Entitlement) error {
	r.entitlements[ent.UserID] = ent
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	if stored, exists := r.events[event.StripeEventID]; exists {
		return false, stored, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	r.events[event.StripeEventID] = event
	return true, event, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, ev := range r.events {
		if ev.ID == id {
			now := time.Now()
			ev.ProcessedAt = &now
			ev.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeProvider records every call so tests can assert exactly which
// provider operations ran.
type fakeProvider struct {
	customersCreated int
	customerID       string

	sub    *ProviderSubscription
	subErr error

	checkoutURL    string
	checkoutParams *CheckoutParams

	updatedSubID   string
	updatedChanges []ItemChange
	canceledSubID  string
}

func (p *fakeProvider) CreateCustomer(_ context.Context, email, name string, userID uint) (string, error) {
	p.customersCreated++
	if p.customerID == "" {
		p.customerID = "cus_test"
	}
	return p.customerID, nil
}

func (p *fakeProvider) ActiveSubscription(_ context.Context, customerID string) (*ProviderSubscription, error) {
	return p.sub, p.subErr
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, params CheckoutParams) (string, error) {
	p.checkoutParams = &params
	if p.checkoutURL == "" {
		p.checkoutURL = "https://checkout.stripe.test/cs_test"
	}
	return p.checkoutURL, nil
}

func (p *fakeProvider) UpdateSubscriptionItems(_ context.Context, subscriptionID string, changes []ItemChange) error {
	p.updatedSubID = subscriptionID
	p.updatedChanges = changes
	return nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, subscriptionID string) error {
	p.canceledSubID = subscriptionID
	return nil
}

func testConfig() Config {
	return Config{
		APIKey:        "sk_test_123",
		WebhookSecret: testWebhookSecret,
		PublicBaseURL: "https://linkfox.test",
		Prices: map[AddonKind]string{
			AddonPremium:       "price_premium",
			AddonExtraPage:     "price_extra_page",
			AddonExtraRedirect: "price_extra_redirect",
		},
	}
}

func newTestService(repo *fakeRepo, provider *fakeProvider) *Service {
	return NewService(testConfig(), repo, provider)
}

// signedEvent marshals a Stripe-shaped event envelope and signs it the
// way the real webhook sender does.
func signedEvent(t *testing.T, secret, eventID, eventType string, created int64, object interface{}) ([]byte, string) {
	t.Helper()

	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal event object: %v", err)
	}
	payload, err := json.Marshal(map[string]interface{}{
		"id":      eventID,
		"type":    eventType,
		"created": created,
		"data":    map[string]interface{}{"object": json.RawMessage(raw)},
	})
	if err != nil {
		t.Fatalf("marshal event envelope: %v", err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

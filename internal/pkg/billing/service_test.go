package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/ManuelReschke/LinkFox/app/models"
)

func TestResolveCustomerReusesLinkedID(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "test@linkfox.test"}
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_existing"
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	customerID, err := svc.ResolveCustomer(context.Background(), 7)
	if err != nil {
		t.Fatalf("ResolveCustomer: %v", err)
	}
	if customerID != "cus_existing" {
		t.Fatalf("got %q, want cus_existing", customerID)
	}
	// A linked user resolves without any provider call.
	if provider.customersCreated != 0 {
		t.Fatalf("unexpected customer creation: %d", provider.customersCreated)
	}
}

func TestResolveCustomerCreatesAndLinks(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "test@linkfox.test", Name: "tester"}
	provider := &fakeProvider{customerID: "cus_new"}
	svc := newTestService(repo, provider)

	customerID, err := svc.ResolveCustomer(context.Background(), 7)
	if err != nil {
		t.Fatalf("ResolveCustomer: %v", err)
	}
	if customerID != "cus_new" || provider.customersCreated != 1 {
		t.Fatalf("got %q after %d creations", customerID, provider.customersCreated)
	}
	if repo.entitlements[7].StripeCustomerID != "cus_new" {
		t.Fatalf("customer id not persisted: %+v", repo.entitlements[7])
	}

	// Second resolve hits the stored link.
	if _, err := svc.ResolveCustomer(context.Background(), 7); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if provider.customersCreated != 1 {
		t.Fatalf("second resolve created another customer: %d", provider.customersCreated)
	}
}

func TestResolveCustomerAdoptsRaceWinner(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "test@linkfox.test"}
	// Another request claims the row between customer creation and the
	// conditional update.
	repo.raceCustomerID = "cus_winner"
	provider := &fakeProvider{customerID: "cus_loser"}
	svc := newTestService(repo, provider)

	customerID, err := svc.ResolveCustomer(context.Background(), 7)
	if err != nil {
		t.Fatalf("ResolveCustomer: %v", err)
	}
	if customerID != "cus_winner" {
		t.Fatalf("loser must adopt the winner's id, got %q", customerID)
	}
	if repo.entitlements[7].StripeCustomerID != "cus_winner" {
		t.Fatalf("stored id wrong: %+v", repo.entitlements[7])
	}
}

func TestResolveCustomerDisabled(t *testing.T) {
	svc := NewService(Config{}, newFakeRepo(), nil)
	_, err := svc.ResolveCustomer(context.Background(), 7)
	if !errors.Is(err, ErrBillingDisabled) {
		t.Fatalf("expected ErrBillingDisabled, got %v", err)
	}
}

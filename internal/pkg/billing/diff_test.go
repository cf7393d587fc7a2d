package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/ManuelReschke/LinkFox/app/models"
)

func itemWithKind(itemID string, kind AddonKind, qty int64) ProviderLineItem {
	return ProviderLineItem{
		ItemID:   itemID,
		PriceID:  "price_" + string(kind),
		Quantity: qty,
		Metadata: map[string]string{MetadataAddonKey: string(kind)},
	}
}

func TestPlanDiffMinimalBatch(t *testing.T) {
	catalog := NewCatalog(testConfig().Prices)
	current := []ProviderLineItem{
		itemWithKind("si_pages", AddonExtraPage, 1),
		itemWithKind("si_redirects", AddonExtraRedirect, 1),
	}
	desired := DesiredPlanConfig{Premium: true, ExtraPages: 2, ExtraRedirects: 0}

	changes, err := planDiff(current, desired, catalog)
	if err != nil {
		t.Fatalf("planDiff: %v", err)
	}
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}

	byKind := make(map[AddonKind]ItemChange, len(changes))
	for _, c := range changes {
		byKind[c.Kind] = c
	}

	add := byKind[AddonPremium]
	if add.Op != OpAdd || add.PriceID != "price_premium" || add.Quantity != 1 {
		t.Fatalf("premium change wrong: %+v", add)
	}
	update := byKind[AddonExtraPage]
	if update.Op != OpUpdate || update.ItemID != "si_pages" || update.Quantity != 2 {
		t.Fatalf("extra page change wrong: %+v", update)
	}
	remove := byKind[AddonExtraRedirect]
	if remove.Op != OpRemove || remove.ItemID != "si_redirects" {
		t.Fatalf("extra redirect change wrong: %+v", remove)
	}
}

func TestPlanDiffNoChangesWhenMatching(t *testing.T) {
	catalog := NewCatalog(testConfig().Prices)
	current := []ProviderLineItem{
		itemWithKind("si_premium", AddonPremium, 1),
		itemWithKind("si_pages", AddonExtraPage, 3),
	}
	desired := DesiredPlanConfig{Premium: true, ExtraPages: 3}

	changes, err := planDiff(current, desired, catalog)
	if err != nil {
		t.Fatalf("planDiff: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestPlanDiffLeavesUnknownItemsAlone(t *testing.T) {
	catalog := NewCatalog(testConfig().Prices)
	current := []ProviderLineItem{
		{ItemID: "si_other", PriceID: "price_unrelated", Quantity: 1, ProductName: "Some Other Product"},
		itemWithKind("si_premium", AddonPremium, 1),
	}

	changes, err := planDiff(current, DesiredPlanConfig{Premium: true}, catalog)
	if err != nil {
		t.Fatalf("planDiff: %v", err)
	}
	for _, c := range changes {
		if c.ItemID == "si_other" {
			t.Fatalf("unknown item must not be touched: %+v", c)
		}
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestPlanDiffLegacyNameClassification(t *testing.T) {
	catalog := NewCatalog(testConfig().Prices)
	// Item created before prices carried metadata; only the product name
	// identifies it.
	current := []ProviderLineItem{
		{ItemID: "si_legacy", PriceID: "price_old", Quantity: 1, ProductName: "LinkFox Premium"},
	}

	changes, err := planDiff(current, DesiredPlanConfig{}, catalog)
	if err != nil {
		t.Fatalf("planDiff: %v", err)
	}
	if len(changes) != 1 || changes[0].Op != OpRemove || changes[0].ItemID != "si_legacy" {
		t.Fatalf("expected legacy item removal, got %+v", changes)
	}
}

func TestPlanDiffMissingPrice(t *testing.T) {
	catalog := NewCatalog(map[AddonKind]string{AddonPremium: "price_premium"})
	_, err := planDiff(nil, DesiredPlanConfig{ExtraPages: 1}, catalog)
	if err == nil {
		t.Fatal("expected an error for an unconfigured price")
	}
}

func TestChangePlanOpensCheckoutWithoutSubscription(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "test@linkfox.test", Name: "tester"}
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	res, err := svc.ChangePlan(context.Background(), 7, DesiredPlanConfig{Premium: true, ExtraPages: 2}, "")
	if err != nil {
		t.Fatalf("ChangePlan: %v", err)
	}
	if res.Outcome != OutcomeCheckout || res.CheckoutURL == "" {
		t.Fatalf("expected checkout outcome with URL, got %+v", res)
	}

	params := provider.checkoutParams
	if params == nil {
		t.Fatal("no checkout session opened")
	}
	if len(params.Lines) != 2 {
		t.Fatalf("expected 2 checkout lines, got %+v", params.Lines)
	}
	if params.Metadata[MetadataUserID] != "7" {
		t.Fatalf("metadata user id wrong: %+v", params.Metadata)
	}
	if params.Metadata[MetadataPremium] != "true" || params.Metadata[MetadataExtraPages] != "2" || params.Metadata[MetadataExtraRedirects] != "0" {
		t.Fatalf("metadata quantities wrong: %+v", params.Metadata)
	}
	if params.SuccessURL != "https://linkfox.test/user/settings/billing?checkout=success" {
		t.Fatalf("success URL wrong: %q", params.SuccessURL)
	}

	// Entitlements never change on the synchronous path.
	ent := repo.entitlements[7]
	if ent.IsPremium || ent.ExtraPages != 0 {
		t.Fatalf("entitlement mutated before webhook: %+v", ent)
	}
}

func TestChangePlanUpdatesExistingSubscription(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "test@linkfox.test"}
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_test"

	provider := &fakeProvider{
		sub: &ProviderSubscription{
			ID:     "sub_1",
			Status: "active",
			Items:  []ProviderLineItem{itemWithKind("si_premium", AddonPremium, 1)},
		},
	}
	svc := newTestService(repo, provider)

	res, err := svc.ChangePlan(context.Background(), 7, DesiredPlanConfig{Premium: true, ExtraPages: 1}, "")
	if err != nil {
		t.Fatalf("ChangePlan: %v", err)
	}
	if res.Outcome != OutcomeUpdated {
		t.Fatalf("expected updated outcome, got %+v", res)
	}
	if provider.updatedSubID != "sub_1" || len(provider.updatedChanges) != 1 {
		t.Fatalf("update not submitted as expected: sub=%q changes=%+v", provider.updatedSubID, provider.updatedChanges)
	}
	if provider.checkoutParams != nil {
		t.Fatal("must not open a checkout session when a subscription exists")
	}
}

func TestChangePlanCancelsOnEmptyDesired(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "test@linkfox.test"}
	ent, _ := repo.GetOrCreateEntitlement(7)
	ent.StripeCustomerID = "cus_test"

	provider := &fakeProvider{
		sub: &ProviderSubscription{
			ID:     "sub_1",
			Status: "active",
			Items:  []ProviderLineItem{itemWithKind("si_premium", AddonPremium, 1)},
		},
	}
	svc := newTestService(repo, provider)

	res, err := svc.CancelPlan(context.Background(), 7)
	if err != nil {
		t.Fatalf("CancelPlan: %v", err)
	}
	if res.Outcome != OutcomeCanceled {
		t.Fatalf("expected canceled outcome, got %+v", res)
	}
	if provider.canceledSubID != "sub_1" {
		t.Fatalf("cancel not submitted: %q", provider.canceledSubID)
	}
	// Removing every item one by one is never valid; cancel must be the
	// only provider mutation.
	if provider.updatedChanges != nil {
		t.Fatalf("unexpected item batch: %+v", provider.updatedChanges)
	}
}

func TestChangePlanNoopWithoutSubscriptionAndEmptyDesired(t *testing.T) {
	repo := newFakeRepo()
	repo.users[7] = &models.User{ID: 7, Email: "test@linkfox.test"}
	provider := &fakeProvider{}
	svc := newTestService(repo, provider)

	res, err := svc.CancelPlan(context.Background(), 7)
	if err != nil {
		t.Fatalf("CancelPlan: %v", err)
	}
	if res.Outcome != OutcomeNoop {
		t.Fatalf("expected noop, got %+v", res)
	}
	if provider.canceledSubID != "" || provider.checkoutParams != nil {
		t.Fatal("no provider mutation expected")
	}
}

func TestChangePlanDisabled(t *testing.T) {
	svc := NewService(Config{}, newFakeRepo(), nil)
	_, err := svc.ChangePlan(context.Background(), 7, DesiredPlanConfig{Premium: true}, "")
	if !errors.Is(err, ErrBillingDisabled) {
		t.Fatalf("expected ErrBillingDisabled, got %v", err)
	}
}

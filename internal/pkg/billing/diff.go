package billing

import (
	"context"
	"fmt"
	"strconv"
)

// planDiff computes the minimal batch of item operations converging the
// current subscription line items toward the desired config. Line items
// that do not classify as any known addon are left untouched.
func planDiff(current []ProviderLineItem, desired DesiredPlanConfig, catalog *Catalog) ([]ItemChange, error) {
	existing := make(map[AddonKind]ProviderLineItem, len(current))
	for _, item := range current {
		kind, ok := catalog.KindOfItem(item)
		if !ok {
			continue
		}
		existing[kind] = item
	}

	var changes []ItemChange
	for _, kind := range AllAddonKinds() {
		item, present := existing[kind]
		want := desired.Quantity(kind)

		switch {
		case want > 0 && !present:
			priceID, ok := catalog.PriceID(kind)
			if !ok {
				return nil, fmt.Errorf("billing: no price configured for addon %q", kind)
			}
			changes = append(changes, ItemChange{Op: OpAdd, Kind: kind, PriceID: priceID, Quantity: want})
		case want > 0 && present && item.Quantity != want:
			changes = append(changes, ItemChange{Op: OpUpdate, Kind: kind, ItemID: item.ItemID, Quantity: want})
		case want == 0 && present:
			changes = append(changes, ItemChange{Op: OpRemove, Kind: kind, ItemID: item.ItemID})
		}
	}
	return changes, nil
}

// ChangePlan converges the user's subscription toward the desired config.
// With no active subscription it opens a hosted checkout session; with one
// it submits the minimal add/update/remove batch, or cancels outright when
// the desired state is empty. Entitlements are never mutated here — a
// crash between the provider call and the response leaves local state
// untouched, and only the later webhook flips it.
func (s *Service) ChangePlan(ctx context.Context, userID uint, desired DesiredPlanConfig, baseURL string) (*PlanChangeResult, error) {
	if !s.cfg.Enabled() || s.provider == nil {
		return nil, ErrBillingDisabled
	}

	customerID, err := s.ResolveCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Always a live fetch; acting on cached line-item ids would race the
	// provider's own state.
	sub, err := s.provider.ActiveSubscription(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if sub == nil {
		if desired.Empty() {
			return &PlanChangeResult{Outcome: OutcomeNoop, Message: "no active subscription and nothing requested"}, nil
		}
		url, err := s.openCheckout(ctx, userID, customerID, desired, baseURL)
		if err != nil {
			return nil, err
		}
		return &PlanChangeResult{Outcome: OutcomeCheckout, CheckoutURL: url}, nil
	}

	if desired.Empty() {
		// Never submit an empty item batch; cancel the subscription outright.
		if err := s.provider.CancelSubscription(ctx, sub.ID); err != nil {
			return nil, err
		}
		return &PlanChangeResult{Outcome: OutcomeCanceled, Message: "subscription cancelled"}, nil
	}

	changes, err := planDiff(sub.Items, desired, s.catalog)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return &PlanChangeResult{Outcome: OutcomeNoop, Message: "subscription already matches the requested plan"}, nil
	}

	if err := s.provider.UpdateSubscriptionItems(ctx, sub.ID, changes); err != nil {
		return nil, err
	}
	return &PlanChangeResult{Outcome: OutcomeUpdated, Message: "subscription updated"}, nil
}

// CancelPlan cancels the user's active subscription. Without one this is a
// no-op. The entitlement flip waits for the subscription-deleted webhook.
func (s *Service) CancelPlan(ctx context.Context, userID uint) (*PlanChangeResult, error) {
	return s.ChangePlan(ctx, userID, DesiredPlanConfig{}, "")
}

func (s *Service) openCheckout(ctx context.Context, userID uint, customerID string, desired DesiredPlanConfig, baseURL string) (string, error) {
	if baseURL == "" {
		baseURL = s.cfg.PublicBaseURL
	}

	var lines []CheckoutLine
	for _, kind := range AllAddonKinds() {
		quantity := desired.Quantity(kind)
		if quantity == 0 {
			continue
		}
		priceID, ok := s.catalog.PriceID(kind)
		if !ok {
			return "", fmt.Errorf("billing: no price configured for addon %q", kind)
		}
		lines = append(lines, CheckoutLine{PriceID: priceID, Quantity: quantity})
	}

	// The reconciler rebuilds the purchased quantities from this metadata
	// when checkout.session.completed arrives.
	metadata := map[string]string{
		MetadataUserID:         strconv.FormatUint(uint64(userID), 10),
		MetadataPremium:        strconv.FormatBool(desired.Premium),
		MetadataExtraPages:     strconv.Itoa(desired.ExtraPages),
		MetadataExtraRedirects: strconv.Itoa(desired.ExtraRedirects),
	}

	return s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		SuccessURL: baseURL + "/user/settings/billing?checkout=success",
		CancelURL:  baseURL + "/user/settings/billing?checkout=cancelled",
		Lines:      lines,
		Metadata:   metadata,
	})
}

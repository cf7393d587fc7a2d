package billing

import (
	"context"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ProviderClient abstracts the subscription-billing provider so the diff
// engine and the reconciler can be unit-tested against a fake.
type ProviderClient interface {
	// CreateCustomer registers a billing customer for the given user.
	CreateCustomer(ctx context.Context, email, name string, userID uint) (customerID string, err error)
	// ActiveSubscription fetches the customer's currently-active
	// subscription with line items expanded, or nil when there is none.
	// The snapshot is fetched fresh on every call; callers must not cache it.
	ActiveSubscription(ctx context.Context, customerID string) (*ProviderSubscription, error)
	// CreateCheckoutSession opens a hosted checkout session in
	// subscription mode and returns its redirect URL.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (url string, err error)
	// UpdateSubscriptionItems submits an add/update/remove batch as one
	// call with proration enabled.
	UpdateSubscriptionItems(ctx context.Context, subscriptionID string, changes []ItemChange) error
	// CancelSubscription cancels an active subscription outright.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

type stripeClient struct {
	api *client.API
}

// NewStripeClient creates a ProviderClient backed by the Stripe API.
func NewStripeClient(apiKey string) ProviderClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &stripeClient{api: api}
}

func (s *stripeClient) CreateCustomer(ctx context.Context, email, name string, userID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
		Metadata: map[string]string{
			MetadataUserID: strconv.FormatUint(uint64(userID), 10),
		},
	}
	params.Context = ctx

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrProvider, err)
	}
	return c.ID, nil
}

func (s *stripeClient) ActiveSubscription(ctx context.Context, customerID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.AddExpand("data.items.data.price.product")

	iter := s.api.Subscriptions.List(params)
	for iter.Next() {
		return snapshotFromStripe(iter.Subscription()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %v", ErrProvider, err)
	}
	return nil, nil
}

func (s *stripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(p.CustomerID),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	for _, line := range p.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(line.PriceID),
			Quantity: stripe.Int64(line.Quantity),
		})
	}
	for key, value := range p.Metadata {
		params.AddMetadata(key, value)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %v", ErrProvider, err)
	}
	return sess.URL, nil
}

func (s *stripeClient) UpdateSubscriptionItems(ctx context.Context, subscriptionID string, changes []ItemChange) error {
	items := make([]*stripe.SubscriptionItemsParams, 0, len(changes))
	for _, change := range changes {
		switch change.Op {
		case OpAdd:
			items = append(items, &stripe.SubscriptionItemsParams{
				Price:    stripe.String(change.PriceID),
				Quantity: stripe.Int64(change.Quantity),
			})
		case OpUpdate:
			items = append(items, &stripe.SubscriptionItemsParams{
				ID:       stripe.String(change.ItemID),
				Quantity: stripe.Int64(change.Quantity),
			})
		case OpRemove:
			items = append(items, &stripe.SubscriptionItemsParams{
				ID:      stripe.String(change.ItemID),
				Deleted: stripe.Bool(true),
			})
		}
	}

	params := &stripe.SubscriptionParams{
		Items:             items,
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx

	if _, err := s.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%w: update subscription items: %v", ErrProvider, err)
	}
	return nil
}

func (s *stripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := s.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("%w: cancel subscription: %v", ErrProvider, err)
	}
	return nil
}

func snapshotFromStripe(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Items == nil {
		return out
	}
	for _, item := range sub.Items.Data {
		line := ProviderLineItem{
			ItemID:   item.ID,
			Quantity: item.Quantity,
		}
		if item.Price != nil {
			line.PriceID = item.Price.ID
			line.Metadata = item.Price.Metadata
			if item.Price.Product != nil {
				line.ProductName = item.Price.Product.Name
			}
		}
		out.Items = append(out.Items, line)
	}
	return out
}

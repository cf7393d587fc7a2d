package billing

import "github.com/ManuelReschke/LinkFox/app/models"

// AddonKind identifies one billable component of a subscription: the
// premium tier itself, or N units of a purchasable add-on.
type AddonKind string

const (
	AddonPremium       AddonKind = "premium"
	AddonExtraPage     AddonKind = "extra_page"
	AddonExtraRedirect AddonKind = "extra_redirect"
)

// AllAddonKinds returns every kind the diff engine considers, in a stable
// order.
func AllAddonKinds() []AddonKind {
	return []AddonKind{AddonPremium, AddonExtraPage, AddonExtraRedirect}
}

// ParseAddonKind maps a raw string to a known AddonKind.
func ParseAddonKind(raw string) (AddonKind, bool) {
	switch AddonKind(raw) {
	case AddonPremium, AddonExtraPage, AddonExtraRedirect:
		return AddonKind(raw), true
	default:
		return "", false
	}
}

// PurchaseKind returns the models constant for ledger rows of this kind.
func (k AddonKind) PurchaseKind() string {
	switch k {
	case AddonExtraPage:
		return models.PurchaseKindExtraPage
	case AddonExtraRedirect:
		return models.PurchaseKindExtraRedirect
	default:
		return models.PurchaseKindPremium
	}
}

// DesiredPlanConfig is the target state a user asked for. It is transient
// input to the diff engine, never persisted.
type DesiredPlanConfig struct {
	Premium        bool
	ExtraPages     int
	ExtraRedirects int
}

// Quantity returns the desired line-item quantity for a kind; premium is
// always quantity one when requested.
func (d DesiredPlanConfig) Quantity(kind AddonKind) int64 {
	switch kind {
	case AddonPremium:
		if d.Premium {
			return 1
		}
		return 0
	case AddonExtraPage:
		return int64(d.ExtraPages)
	case AddonExtraRedirect:
		return int64(d.ExtraRedirects)
	default:
		return 0
	}
}

// Empty reports whether the desired state contains no billable component.
func (d DesiredPlanConfig) Empty() bool {
	return !d.Premium && d.ExtraPages == 0 && d.ExtraRedirects == 0
}

// Plan change outcomes returned to the caller.
const (
	OutcomeNoop     = "noop"
	OutcomeCheckout = "checkout"
	OutcomeUpdated  = "updated"
	OutcomeCanceled = "canceled"
)

// PlanChangeResult is the synchronous answer to a plan-change request.
// Entitlements are never mutated on this path; only the later webhook
// flips them.
type PlanChangeResult struct {
	Outcome     string
	CheckoutURL string
	Message     string
}

// ProviderSubscription is a snapshot of the provider's currently-active
// subscription, fetched fresh on every call and never cached.
type ProviderSubscription struct {
	ID     string
	Status string
	Items  []ProviderLineItem
}

// ProviderLineItem is one line item of a provider subscription.
type ProviderLineItem struct {
	ItemID      string
	PriceID     string
	Quantity    int64
	Metadata    map[string]string
	ProductName string
}

// Item change operations issued against an existing subscription.
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
)

// ItemChange is one operation of the minimal batch converging the
// provider subscription toward the desired config.
type ItemChange struct {
	Op       string
	Kind     AddonKind
	ItemID   string
	PriceID  string
	Quantity int64
}

// CheckoutLine is one line item of a hosted checkout session.
type CheckoutLine struct {
	PriceID  string
	Quantity int64
}

// CheckoutParams carries everything needed to open a hosted checkout
// session in subscription mode.
type CheckoutParams struct {
	CustomerID string
	SuccessURL string
	CancelURL  string
	Lines      []CheckoutLine
	Metadata   map[string]string
}

// WebhookResult reports how an inbound event was handled. Every variant
// maps to HTTP 200; delivery failure signalling happens via the error
// return instead.
type WebhookResult struct {
	EventType string
	Duplicate bool
	Ignored   bool
}

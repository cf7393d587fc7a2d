package billing

// MetadataAddonKey is the Stripe price metadata key tagging a price with
// its AddonKind. Every price created by this codebase carries it.
const MetadataAddonKey = "addon_kind"

// Checkout session metadata keys consumed by the webhook reconciler.
const (
	MetadataUserID         = "user_id"
	MetadataPremium        = "premium"
	MetadataExtraPages     = "extra_pages"
	MetadataExtraRedirects = "extra_redirects"
)

// legacyProductNames matches subscriptions created before prices carried
// addon metadata. This is a migration shim only: it keys on the product
// display name and must not grow new entries. Remove once no active
// subscription predates the metadata rollout.
var legacyProductNames = map[string]AddonKind{
	"LinkFox Premium": AddonPremium,
	"Extra Page":      AddonExtraPage,
	"Extra Redirect":  AddonExtraRedirect,
}

// Catalog maps addon kinds to Stripe price ids and classifies provider
// line items back into kinds.
type Catalog struct {
	prices map[AddonKind]string
}

// NewCatalog creates a catalog from a kind → price id mapping.
func NewCatalog(prices map[AddonKind]string) *Catalog {
	out := make(map[AddonKind]string, len(prices))
	for kind, priceID := range prices {
		if priceID != "" {
			out[kind] = priceID
		}
	}
	return &Catalog{prices: out}
}

// PriceID returns the configured Stripe price id for a kind.
func (c *Catalog) PriceID(kind AddonKind) (string, bool) {
	priceID, ok := c.prices[kind]
	return priceID, ok
}

// KindOfItem classifies a provider line item. Price metadata is
// authoritative; the product display name is consulted only through the
// legacy shim above.
func (c *Catalog) KindOfItem(item ProviderLineItem) (AddonKind, bool) {
	if raw, ok := item.Metadata[MetadataAddonKey]; ok {
		if kind, valid := ParseAddonKind(raw); valid {
			return kind, true
		}
	}
	if kind, ok := legacyProductNames[item.ProductName]; ok {
		return kind, true
	}
	return "", false
}

package billing

import (
	"strings"

	"github.com/ManuelReschke/LinkFox/internal/pkg/env"
)

// Config holds the Stripe integration settings. Billing is considered
// disabled when no secret key is configured; every entry point then fails
// fast with ErrBillingDisabled.
type Config struct {
	APIKey        string
	WebhookSecret string
	PublicBaseURL string
	Prices        map[AddonKind]string
}

// LoadConfigFromEnv reads the Stripe settings from the environment.
func LoadConfigFromEnv() Config {
	return Config{
		APIKey:        strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		PublicBaseURL: strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"),
		Prices: map[AddonKind]string{
			AddonPremium:       strings.TrimSpace(env.GetEnv("STRIPE_PRICE_PREMIUM", "")),
			AddonExtraPage:     strings.TrimSpace(env.GetEnv("STRIPE_PRICE_EXTRA_PAGE", "")),
			AddonExtraRedirect: strings.TrimSpace(env.GetEnv("STRIPE_PRICE_EXTRA_REDIRECT", "")),
		},
	}
}

// Enabled reports whether the Stripe integration is configured.
func (c Config) Enabled() bool {
	return c.APIKey != ""
}

package billing

import "errors"

// Error taxonomy. Controllers map these onto HTTP status codes: disabled
// billing is 503, provider failures are 500, a rejected signature is 400.
// Duplicate event delivery is not an error at all.
var (
	// ErrBillingDisabled means no Stripe credentials are configured. No
	// partial work is attempted when this is returned.
	ErrBillingDisabled = errors.New("billing: integration not configured")

	// ErrProvider wraps network errors and 4xx/5xx responses from Stripe.
	// Local state is never mutated when this is returned.
	ErrProvider = errors.New("billing: provider request failed")

	// ErrInvalidSignature means the webhook payload failed signature
	// verification and was discarded.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")

	// ErrUnknownCustomer means an event referenced a customer id with no
	// local entitlement row.
	ErrUnknownCustomer = errors.New("billing: no entitlement for customer")
)

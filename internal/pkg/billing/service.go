package billing

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"
)

// Service implements customer resolution, plan-change diffing and webhook
// reconciliation on top of an injected repository and provider client.
type Service struct {
	cfg      Config
	repo     Repository
	provider ProviderClient
	catalog  *Catalog
}

// NewService creates a billing service from injected dependencies.
func NewService(cfg Config, repo Repository, provider ProviderClient) *Service {
	return &Service{
		cfg:      cfg,
		repo:     repo,
		provider: provider,
		catalog:  NewCatalog(cfg.Prices),
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with
// configuration read from the environment. When billing is disabled the
// service is still usable; every provider-touching call fails with
// ErrBillingDisabled.
func NewServiceFromDB(db *gorm.DB) *Service {
	cfg := LoadConfigFromEnv()
	var provider ProviderClient
	if cfg.Enabled() {
		provider = NewStripeClient(cfg.APIKey)
	}
	return NewService(cfg, NewRepository(db), provider)
}

// ResolveCustomer maps a user to their external billing customer id,
// creating one on demand. An already-linked user resolves without any
// network call. Two concurrent first-time resolves are serialized by the
// conditional claim on the entitlement row; the loser adopts the winner's
// customer id and its own provider customer stays unused.
func (s *Service) ResolveCustomer(ctx context.Context, userID uint) (string, error) {
	if !s.cfg.Enabled() || s.provider == nil {
		return "", ErrBillingDisabled
	}

	ent, err := s.repo.GetOrCreateEntitlement(userID)
	if err != nil {
		return "", err
	}
	if ent.StripeCustomerID != "" {
		return ent.StripeCustomerID, nil
	}

	user, err := s.repo.GetUser(userID)
	if err != nil {
		return "", err
	}

	customerID, err := s.provider.CreateCustomer(ctx, user.Email, user.Name, userID)
	if err != nil {
		return "", err
	}

	winner, claimed, err := s.repo.ClaimCustomerID(userID, customerID)
	if err != nil {
		return "", err
	}
	if !claimed && winner != customerID {
		log.Printf("billing: user %d raced customer creation, adopting %s and leaving %s unused", userID, winner, customerID)
	}
	return winner, nil
}

// IsProviderError reports whether err belongs to the provider failure
// class (network errors, 4xx/5xx responses).
func IsProviderError(err error) bool {
	return errors.Is(err, ErrProvider)
}

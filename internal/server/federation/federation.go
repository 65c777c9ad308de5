// Package federation exchanges provider access tokens for normalized user
// profiles. Each identity provider contributes one adapter that calls its
// profile endpoint and maps the provider-specific payload onto Profile;
// everything past the connector is provider-agnostic.
package federation

import (
	"context"
	"time"

	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/logging"
)

// Profile is the transient, normalized identity a provider vouches for.
// It never outlives the federated-login request.
type Profile struct {
	Email      string
	Name       string
	PictureURL string
}

// Provider fetches and normalizes the profile behind a provider access token.
type Provider interface {
	Name() string
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// Connector routes federated-authentication requests to the registered
// provider adapters. Every provider-side failure collapses to
// common.ErrorFederation: the detail is logged, never returned.
type Connector struct {
	providers map[string]Provider
	timeout   time.Duration
	log       logging.Logger
}

// NewConnector builds a connector over the given providers. timeout bounds
// each outbound profile call.
func NewConnector(timeout time.Duration, log logging.Logger, providers ...Provider) *Connector {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Connector{providers: m, timeout: timeout, log: log}
}

// FetchProfile resolves the named provider and exchanges accessToken for a
// normalized profile. Unknown providers, provider call failures, and
// profiles without an email all yield common.ErrorFederation.
func (c *Connector) FetchProfile(ctx context.Context, provider string, accessToken string) (*Profile, error) {
	p, ok := c.providers[provider]
	if !ok {
		c.log.Warn(ctx, "unknown federation provider", "provider", provider)
		return nil, common.ErrorFederation
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	profile, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		c.log.Warn(ctx, "provider profile call failed", "provider", provider, "error", err.Error())
		return nil, common.ErrorFederation
	}
	if profile.Email == "" {
		c.log.Warn(ctx, "provider profile has no email", "provider", provider)
		return nil, common.ErrorFederation
	}

	return profile, nil
}

// Package provider defines the provider adapters behind the authentication
// engine: one strategy per identity provider, normalizing OAuth2 and OIDC
// responses to a common user profile.
package provider

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/whoisit/internal/registration"
)

// ExchangeInput carries everything a provider needs to redeem a code.
type ExchangeInput struct {
	Code        string
	RedirectURI string
	// Nonce is the value bound into the authorization request, echoed in the
	// id_token by OIDC providers. Empty for plain OAuth2.
	Nonce string
}

// TokenSet contains tokens received from the provider.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string // OIDC only
	TokenType    string
	ExpiresIn    int
	Scope        string

	// Nonce is carried along so UserInfo can verify OIDC id_tokens.
	Nonce string
}

// UserProfile is a normalized user profile from any provider.
type UserProfile struct {
	ProviderID string // unique id at the provider (sub claim, numeric id)
	Username   string // login/handle when the provider has one
	Email      string
	Name       string
	Picture    string

	EmailVerified bool

	Raw map[string]any
}

// PrincipalName returns the stable name for the authenticated user,
// preferring the provider handle over the opaque id.
func (p *UserProfile) PrincipalName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.ProviderID
}

// Provider is one authentication strategy. Implementations own their HTTP
// clients and timeouts; a slow provider surfaces as an error, never a hang.
type Provider interface {
	Name() string
	Exchange(ctx context.Context, in ExchangeInput) (*TokenSet, error)
	UserInfo(ctx context.Context, ts *TokenSet) (*UserProfile, error)
}

// Factory builds a provider instance for one client registration.
type Factory func(reg *registration.ClientRegistration) (Provider, error)

// Registry maps provider names to factories and caches instances per
// registration. Instance creation is deduplicated with singleflight so
// concurrent callbacks never build the same client twice.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	cache     map[string]Provider
	sf        singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		cache:     make(map[string]Provider),
	}
}

// Register adds a factory under a provider name. Call at startup.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns the provider instance for a registration, building it on first
// use.
func (r *Registry) Get(reg *registration.ClientRegistration) (Provider, error) {
	r.mu.RLock()
	if p, ok := r.cache[reg.ID]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.sf.Do(reg.ID, func() (any, error) {
		r.mu.RLock()
		factory, ok := r.factories[reg.ProviderName()]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("provider not registered: %s", reg.ProviderName())
		}
		p, err := factory(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", reg.ProviderName(), err)
		}
		r.mu.Lock()
		r.cache[reg.ID] = p
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// Available returns the registered provider names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

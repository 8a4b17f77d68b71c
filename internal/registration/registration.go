// Package registration holds the static descriptors of the OAuth2 clients
// this application is registered as, one per provider pairing.
package registration

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when no registration exists for an id.
var ErrNotFound = errors.New("registration: not found")

// ClientRegistration describes one configured OAuth2/OIDC client.
// Immutable after construction; owned by the Repository.
type ClientRegistration struct {
	ID               string // stable registration id, e.g. "github"
	ClientID         string
	ClientSecret     string
	AuthorizationURI string
	TokenURI         string
	UserInfoURI      string
	// RedirectURI is a template; "{baseUrl}" and "{registrationId}" are
	// expanded when the authorization request is built.
	RedirectURI string
	Scopes      []string
	// Provider selects the provider adapter ("github", "google", ...).
	// Defaults to ID when empty.
	Provider string
}

// ProviderName returns the provider adapter key for this registration.
func (r *ClientRegistration) ProviderName() string {
	if r.Provider != "" {
		return r.Provider
	}
	return r.ID
}

// ExpandRedirectURI resolves the redirect URI template against a base URL.
func (r *ClientRegistration) ExpandRedirectURI(baseURL string) string {
	out := r.RedirectURI
	out = strings.ReplaceAll(out, "{baseUrl}", strings.TrimRight(baseURL, "/"))
	out = strings.ReplaceAll(out, "{registrationId}", r.ID)
	return out
}

// Repository looks up client registrations by id.
type Repository interface {
	Find(id string) (*ClientRegistration, error)
}

// InMemoryRepository is a fixed, map-backed Repository.
type InMemoryRepository struct {
	byID map[string]*ClientRegistration
}

// NewInMemoryRepository builds a repository from the given registrations.
// Registrations are copied; later mutation of the inputs has no effect.
func NewInMemoryRepository(regs ...ClientRegistration) *InMemoryRepository {
	m := make(map[string]*ClientRegistration, len(regs))
	for i := range regs {
		r := regs[i]
		m[r.ID] = &r
	}
	return &InMemoryRepository{byID: m}
}

// Find returns the registration for id, or ErrNotFound.
func (r *InMemoryRepository) Find(id string) (*ClientRegistration, error) {
	reg, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return reg, nil
}

// IDs returns the configured registration ids (for diagnostics).
func (r *InMemoryRepository) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}

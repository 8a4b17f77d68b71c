// Package authrequest correlates in-flight OAuth2 authorization requests with
// their callbacks. A request is keyed by its state token and scoped to a
// caller-provided session; retrieval invalidates it, so a state is single-use.
package authrequest

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/whoisit/internal/security/tokens"
)

// ParamRegistrationID is the key under which the originating client
// registration id travels in AuthorizationRequest.Params.
const ParamRegistrationID = "registration_id"

// DefaultTTL bounds how long an abandoned authorization request survives.
// The protocol itself mandates no expiry; this keeps stores from growing
// without bound when users never complete the redirect.
const DefaultTTL = 5 * time.Minute

// ErrNotFound is returned by Consume when no stored request matches.
var ErrNotFound = errors.New("authrequest: not found")

// AuthorizationRequest is the ephemeral record created when a login flow is
// initiated, before redirecting the user-agent to the provider. Never mutated
// after Save; consumed exactly once by the matching callback.
type AuthorizationRequest struct {
	ClientID         string            `json:"client_id"`
	AuthorizationURI string            `json:"authorization_uri"`
	RedirectURI      string            `json:"redirect_uri"`
	Scopes           []string          `json:"scopes,omitempty"`
	State            string            `json:"state"`
	Params           map[string]string `json:"params,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// RegistrationID returns the registration id carried in Params, or "".
func (r *AuthorizationRequest) RegistrationID() string {
	if r.Params == nil {
		return ""
	}
	return r.Params[ParamRegistrationID]
}

// NewState genera un state token aleatorio para un authorization request.
func NewState() (string, error) {
	return tokens.GenerateOpaqueToken(32)
}

// Store persists authorization requests between the initial redirect and the
// provider callback.
//
// Consume is the anti-replay primitive: it must be atomic under concurrent
// duplicate callbacks sharing the same session, so at most one caller
// observes the stored request and every other caller gets ErrNotFound.
type Store interface {
	// Save persists req keyed by its state, scoped to sessionID.
	Save(ctx context.Context, sessionID string, req *AuthorizationRequest) error

	// Consume atomically retrieves and invalidates the request stored under
	// state. State comparison is exact (byte equality). Returns ErrNotFound
	// when nothing matches, including replays of an already-consumed state.
	Consume(ctx context.Context, sessionID, state string) (*AuthorizationRequest, error)
}

// storageKey derives the storage key for a (session, state) pair.
// The state is hashed so backends never index by the raw token.
func storageKey(sessionID, state string) string {
	return sessionID + ":" + tokens.SHA256Base64URL(state)
}

// Package login implements the callback leg of the OAuth2 Authorization Code
// flow: matching the provider's redirect-back request, correlating it with
// the stored authorization request, exchanging the code through an
// authentication engine and dispatching the outcome to pluggable handlers.
package login

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/whoisit/internal/autherr"
	"github.com/dropDatabas3/whoisit/internal/authrequest"
	"github.com/dropDatabas3/whoisit/internal/registration"
)

// AuthorizationResponse is the provider's answer parsed from the callback
// query string: either {code, state} or {error, error_description, state}.
// Transient; lives for the duration of one request.
type AuthorizationResponse struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
	ErrorURI         string

	// RedirectURI is the callback URI as the provider addressed it,
	// reconstructed from the inbound request. Needed for the token exchange.
	RedirectURI string
}

// IsError reports whether the provider rejected the authorization.
func (r *AuthorizationResponse) IsError() bool {
	return r.ErrorCode != ""
}

// ParseAuthorizationResponse extracts the OAuth2 callback parameters from a
// request. redirectURI is the reconstructed callback address.
func ParseAuthorizationResponse(r *http.Request, redirectURI string) *AuthorizationResponse {
	q := r.URL.Query()
	return &AuthorizationResponse{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		ErrorCode:        q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		ErrorURI:         q.Get("error_uri"),
		RedirectURI:      redirectURI,
	}
}

// Token is the pre-authentication carrier handed to the Engine: everything
// needed to exchange the code and resolve the user.
type Token struct {
	Registration *registration.ClientRegistration
	Request      *authrequest.AuthorizationRequest
	Response     *AuthorizationResponse
}

// Principal is the authenticated outcome of a login: the user's identity,
// granted authorities and the registration that produced it. Ownership
// transfers to the success handler; the filter keeps nothing beyond the
// request.
type Principal struct {
	Name           string
	Authorities    []string
	RegistrationID string
	AccessToken    string
	Claims         map[string]any
}

// Engine performs the blocking part of the flow: token exchange and user
// resolution against the provider. Implementations own their timeouts; a
// timed-out exchange must come back as an error carrying an OAuth2 code,
// never hang the request. Errors should be (or wrap) *autherr.Error so the
// engine's code reaches the failure handler unchanged.
type Engine interface {
	Authenticate(ctx context.Context, token *Token) (*Principal, error)
}

// SuccessHandler receives the authenticated principal. Supplied by
// configuration; the filter never writes the response itself.
type SuccessHandler func(w http.ResponseWriter, r *http.Request, p *Principal)

// FailureHandler receives the typed authentication error.
type FailureHandler func(w http.ResponseWriter, r *http.Request, err *autherr.Error)

// SessionResolver derives the correlation scope for the authorization
// request store from the inbound request, typically a session cookie.
type SessionResolver func(r *http.Request) string

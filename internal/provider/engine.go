package provider

import (
	"context"

	"github.com/dropDatabas3/whoisit/internal/login"
	"github.com/dropDatabas3/whoisit/internal/observability/logger"
)

// DefaultAuthority is granted to every user authenticated through OAuth2
// login; scope authorities are added on top.
const DefaultAuthority = "OAUTH2_USER"

// Engine is the login.Engine implementation backed by the provider registry:
// it redeems the code and resolves the user through the registration's
// provider adapter.
type Engine struct {
	registry *Registry
}

// NewEngine builds an Engine over the given registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Authenticate implements login.Engine. Errors come back as *autherr.Error
// so their codes reach the failure handler unchanged.
func (e *Engine) Authenticate(ctx context.Context, token *login.Token) (*login.Principal, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("provider.engine"),
		logger.Op("Authenticate"),
	)

	p, err := e.registry.Get(token.Registration)
	if err != nil {
		return nil, err
	}

	nonce := ""
	if token.Request.Params != nil {
		nonce = token.Request.Params["nonce"]
	}

	ts, err := p.Exchange(ctx, ExchangeInput{
		Code:        token.Response.Code,
		RedirectURI: token.Response.RedirectURI,
		Nonce:       nonce,
	})
	if err != nil {
		log.Warn("code exchange failed",
			logger.RegistrationID(token.Registration.ID), logger.Err(err))
		return nil, err
	}

	profile, err := p.UserInfo(ctx, ts)
	if err != nil {
		log.Warn("user resolution failed",
			logger.RegistrationID(token.Registration.ID), logger.Err(err))
		return nil, err
	}

	authorities := []string{DefaultAuthority}
	for _, s := range token.Request.Scopes {
		authorities = append(authorities, "SCOPE_"+s)
	}

	claims := make(map[string]any, len(profile.Raw)+2)
	for k, v := range profile.Raw {
		claims[k] = v
	}
	if profile.Email != "" {
		claims["email"] = profile.Email
	}
	if profile.Name != "" {
		claims["name"] = profile.Name
	}

	return &login.Principal{
		Name:           profile.PrincipalName(),
		Authorities:    authorities,
		RegistrationID: token.Registration.ID,
		AccessToken:    ts.AccessToken,
		Claims:         claims,
	}, nil
}

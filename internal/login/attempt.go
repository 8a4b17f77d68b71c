package login

import (
	"context"
	"errors"

	"github.com/dropDatabas3/whoisit/internal/autherr"
	"github.com/dropDatabas3/whoisit/internal/authrequest"
	"github.com/dropDatabas3/whoisit/internal/observability/logger"
	"github.com/dropDatabas3/whoisit/internal/registration"
	"github.com/dropDatabas3/whoisit/internal/security/tokens"
)

// Authenticator runs one authentication attempt per matched callback:
// consume the stored authorization request, validate state, build the login
// token and delegate to the engine. The store's single-use semantics make the
// attempt deliberately non-idempotent: re-delivering the same callback fails
// the lookup.
type Authenticator struct {
	store         authrequest.Store
	registrations registration.Repository
	engine        Engine
}

// NewAuthenticator wires the attempt orchestrator.
func NewAuthenticator(store authrequest.Store, regs registration.Repository, engine Engine) *Authenticator {
	return &Authenticator{store: store, registrations: regs, engine: engine}
}

// Authenticate executes the attempt for a parsed callback response scoped to
// sessionID. It returns the authenticated principal or a typed error whose
// Code the failure handler can branch on; exactly one of the two is non-nil.
func (a *Authenticator) Authenticate(ctx context.Context, sessionID string, resp *AuthorizationResponse) (*Principal, *autherr.Error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("login"), logger.Op("Authenticate"))

	// Provider said no: pass its error code through verbatim and do not
	// touch the store.
	if resp.IsError() {
		log.Warn("provider returned authorization error",
			logger.ErrorCode(resp.ErrorCode),
			logger.String("description", resp.ErrorDescription),
		)
		return nil, autherr.FromProvider(resp.ErrorCode, resp.ErrorDescription, resp.ErrorURI)
	}

	// A callback without state cannot be correlated with anything; that is
	// an anti-forgery failure, not a missing request.
	if resp.State == "" {
		return nil, autherr.ErrInvalidStateParameter
	}

	stored, err := a.store.Consume(ctx, sessionID, resp.State)
	if err != nil {
		if errors.Is(err, authrequest.ErrNotFound) {
			log.Warn("no stored authorization request for callback state")
			return nil, autherr.ErrAuthorizationRequestNotFound
		}
		log.Error("authorization request store failed", logger.Err(err))
		return nil, autherr.ErrAuthorizationRequestNotFound.WithCause(err)
	}

	// The store already keys by state; this re-check keeps the anti-forgery
	// guarantee independent of any backend's key derivation.
	if !tokens.Equal(stored.State, resp.State) {
		return nil, autherr.ErrInvalidStateParameter
	}

	regID := stored.RegistrationID()
	reg, err := a.registrations.Find(regID)
	if err != nil {
		log.Error("stored request references unknown registration",
			logger.RegistrationID(regID), logger.Err(err))
		return nil, autherr.ErrClientRegistrationNotFound.WithCause(err)
	}

	principal, err := a.engine.Authenticate(ctx, &Token{
		Registration: reg,
		Request:      stored,
		Response:     resp,
	})
	if err != nil {
		if ae := autherr.AsError(err); ae != nil {
			log.Warn("engine rejected authentication",
				logger.RegistrationID(regID), logger.ErrorCode(ae.Code))
			return nil, ae
		}
		// The engine failed without a typed code; report it as a server-side
		// failure rather than inventing a provider code.
		log.Error("engine failed", logger.RegistrationID(regID), logger.Err(err))
		return nil, autherr.New("server_error").WithCause(err)
	}

	out := *principal
	out.RegistrationID = regID
	log.Info("authentication succeeded",
		logger.RegistrationID(regID), logger.Principal(out.Name))
	return &out, nil
}

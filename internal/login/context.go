package login

import "context"

// The authenticated principal travels in the request context, never in a
// process-wide holder: it cannot leak across concurrent requests.

type principalCtxKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFrom extracts the authenticated principal from the context.
// Returns nil, false on requests that did not authenticate.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	v := ctx.Value(principalCtxKey{})
	if v == nil {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

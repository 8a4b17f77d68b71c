package login

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dropDatabas3/whoisit/internal/metrics"
	"github.com/dropDatabas3/whoisit/internal/observability/logger"
)

// DefaultSessionCookie is the cookie the default SessionResolver reads to
// scope authorization requests.
const DefaultSessionCookie = "whoisit_session"

// FilterDeps contains the collaborators of the login filter. Matcher,
// Authenticator, OnSuccess and OnFailure are required.
type FilterDeps struct {
	Matcher       *CallbackMatcher
	Authenticator *Authenticator
	OnSuccess     SuccessHandler
	OnFailure     FailureHandler

	// Session derives the store scope from the request.
	// Defaults to reading the DefaultSessionCookie cookie.
	Session SessionResolver

	// BaseURL, when set, fixes the scheme and host used to rebuild the
	// callback redirect URI, keeping it byte-identical with the one issued
	// when the flow started. When empty the URI is derived from the request.
	BaseURL string
}

// Filter is the request-scoped gate of the login flow. Non-callback requests
// pass through untouched; matched callbacks run one authentication attempt
// and dispatch the outcome to the configured handlers. The filter never
// writes a response body itself.
type Filter struct {
	matcher   *CallbackMatcher
	auth      *Authenticator
	session   SessionResolver
	onSuccess SuccessHandler
	onFailure FailureHandler
	baseURL   string
}

// NewFilter validates deps and builds the filter.
func NewFilter(deps FilterDeps) (*Filter, error) {
	if deps.Matcher == nil {
		return nil, fmt.Errorf("login: FilterDeps.Matcher is required")
	}
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("login: FilterDeps.Authenticator is required")
	}
	if deps.OnSuccess == nil || deps.OnFailure == nil {
		return nil, fmt.Errorf("login: FilterDeps.OnSuccess and OnFailure are required")
	}
	session := deps.Session
	if session == nil {
		session = CookieSessionResolver(DefaultSessionCookie)
	}
	return &Filter{
		matcher:   deps.Matcher,
		auth:      deps.Authenticator,
		session:   session,
		onSuccess: deps.OnSuccess,
		onFailure: deps.OnFailure,
		baseURL:   strings.TrimRight(deps.BaseURL, "/"),
	}, nil
}

// Wrap mounts the filter in front of next, in the usual middleware shape.
func (f *Filter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		regID, ok := f.matcher.Match(r.Method, r.URL.Path)
		if !ok {
			// Not a callback: hand the request over unchanged. No store or
			// engine work happens on this path.
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		log := logger.From(ctx).With(logger.Layer("handler"), logger.Component("login.filter"))
		log.Debug("authorization callback matched",
			logger.RegistrationID(regID), logger.Path(r.URL.Path))
		metrics.LoginAttempts.WithLabelValues(regID).Inc()

		resp := ParseAuthorizationResponse(r, f.callbackURI(r))
		principal, authErr := f.auth.Authenticate(ctx, f.session(r), resp)
		if authErr != nil {
			metrics.LoginFailures.WithLabelValues(regID, authErr.Code).Inc()
			f.onFailure(w, r, authErr)
			return
		}

		metrics.LoginSuccesses.WithLabelValues(regID).Inc()
		r = r.WithContext(WithPrincipal(ctx, principal))
		f.onSuccess(w, r, principal)
	})
}

// CookieSessionResolver scopes authorization requests by a session cookie.
// Requests without the cookie share the empty scope, which still correlates
// correctly because states are unguessable.
func CookieSessionResolver(name string) SessionResolver {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// callbackURI reconstructs the redirect URI the provider addressed, which
// the token exchange must repeat verbatim. A configured base URL wins;
// otherwise the scheme comes from the request, where X-Forwarded-Proto takes
// precedence over the localhost heuristic.
func (f *Filter) callbackURI(r *http.Request) string {
	if f.baseURL != "" {
		return f.baseURL + r.URL.Path
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else if strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1") {
			scheme = "http"
		} else {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.Path
}

package login_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/whoisit/internal/autherr"
	"github.com/dropDatabas3/whoisit/internal/authrequest"
	"github.com/dropDatabas3/whoisit/internal/login"
	"github.com/dropDatabas3/whoisit/internal/provider"
	"github.com/dropDatabas3/whoisit/internal/provider/github"
	"github.com/dropDatabas3/whoisit/internal/registration"
)

// End-to-end callback flow against a fake GitHub: saved authorization request,
// provider redirect back, code exchange, user resolution, handler dispatch.
func TestGitHubCallbackFlow(t *testing.T) {
	var tokenCalls int
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login/oauth/access_token":
			tokenCalls++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "code-xyz", r.PostForm.Get("code"))
			assert.Equal(t, "client-123", r.PostForm.Get("client_id"))
			assert.Contains(t, r.PostForm.Get("redirect_uri"), "/login/oauth2/code/github")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"access_token": "gho_token",
				"token_type":   "bearer",
				"scope":        "read:user",
			})
		case "/user":
			assert.Equal(t, "Bearer gho_token", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":    583231,
				"login": "octocat",
				"name":  "The Octocat",
				"email": "octocat@github.com",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer gh.Close()

	regs := registration.NewInMemoryRepository(registration.ClientRegistration{
		ID:          "github",
		ClientID:    "client-123",
		TokenURI:    gh.URL + "/login/oauth/access_token",
		UserInfoURI: gh.URL + "/user",
		Scopes:      []string{"read:user"},
	})

	registry := provider.NewRegistry()
	registry.Register("github", github.New)

	store := authrequest.NewMemoryStore(0)
	require.NoError(t, store.Save(context.Background(), "sess-1", &authrequest.AuthorizationRequest{
		ClientID:    "client-123",
		RedirectURI: "https://app.example/login/oauth2/code/github",
		Scopes:      []string{"read:user"},
		State:       "state-abc",
		Params:      map[string]string{authrequest.ParamRegistrationID: "github"},
	}))

	matcher, err := login.NewCallbackMatcher(login.DefaultCallbackPattern)
	require.NoError(t, err)

	var gotPrincipal *login.Principal
	var gotErr *autherr.Error
	filter, err := login.NewFilter(login.FilterDeps{
		Matcher:       matcher,
		Authenticator: login.NewAuthenticator(store, regs, provider.NewEngine(registry)),
		OnSuccess: func(w http.ResponseWriter, r *http.Request, p *login.Principal) {
			gotPrincipal = p
			w.WriteHeader(http.StatusOK)
		},
		OnFailure: func(w http.ResponseWriter, r *http.Request, e *autherr.Error) {
			gotErr = e
			w.WriteHeader(http.StatusUnauthorized)
		},
	})
	require.NoError(t, err)

	handler := filter.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	callback := func() *httptest.ResponseRecorder {
		q := url.Values{"code": {"code-xyz"}, "state": {"state-abc"}}
		r := httptest.NewRequest("GET", "https://app.example/login/oauth2/code/github?"+q.Encode(), nil)
		r.AddCookie(&http.Cookie{Name: login.DefaultSessionCookie, Value: "sess-1"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	rec := callback()
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotPrincipal)
	assert.Equal(t, "octocat", gotPrincipal.Name)
	assert.Equal(t, "github", gotPrincipal.RegistrationID)
	assert.Equal(t, "gho_token", gotPrincipal.AccessToken)
	assert.Contains(t, gotPrincipal.Authorities, "OAUTH2_USER")
	assert.Contains(t, gotPrincipal.Authorities, "SCOPE_read:user")
	assert.Equal(t, 1, tokenCalls)
	assert.Nil(t, gotErr)

	// Replaying the same callback must fail the correlation, not repeat the
	// exchange.
	rec = callback()
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, gotErr)
	assert.Equal(t, autherr.CodeAuthorizationRequestNotFound, gotErr.Code)
	assert.Equal(t, 1, tokenCalls)
}

package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dropDatabas3/whoisit/internal/authrequest"
	"github.com/dropDatabas3/whoisit/internal/login"
	"github.com/dropDatabas3/whoisit/internal/registration"
)

type fakeProvider struct {
	name      string
	exchanges int32
	ts        *TokenSet
	profile   *UserProfile
	exchErr   error
	userErr   error
	lastIn    ExchangeInput
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Exchange(ctx context.Context, in ExchangeInput) (*TokenSet, error) {
	atomic.AddInt32(&f.exchanges, 1)
	f.lastIn = in
	if f.exchErr != nil {
		return nil, f.exchErr
	}
	return f.ts, nil
}

func (f *fakeProvider) UserInfo(ctx context.Context, ts *TokenSet) (*UserProfile, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.profile, nil
}

func TestRegistryGetCachesInstances(t *testing.T) {
	var built int32
	r := NewRegistry()
	r.Register("github", func(reg *registration.ClientRegistration) (Provider, error) {
		atomic.AddInt32(&built, 1)
		return &fakeProvider{name: "github"}, nil
	})

	reg := &registration.ClientRegistration{ID: "github", ClientID: "a"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Get(reg); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&built); n != 1 {
		t.Fatalf("factory invoked %d times, want 1", n)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(&registration.ClientRegistration{ID: "gitlab"})
	if err == nil {
		t.Fatalf("expected error for unregistered provider")
	}
}

func TestRegistryProviderNameIndirection(t *testing.T) {
	r := NewRegistry()
	r.Register("github", func(reg *registration.ClientRegistration) (Provider, error) {
		return &fakeProvider{name: "github"}, nil
	})

	// Two registrations sharing one provider adapter get separate instances.
	corp := &registration.ClientRegistration{ID: "github-corp", Provider: "github"}
	pub := &registration.ClientRegistration{ID: "github", ClientID: "a"}

	a, err := r.Get(corp)
	if err != nil {
		t.Fatalf("Get corp: %v", err)
	}
	b, err := r.Get(pub)
	if err != nil {
		t.Fatalf("Get pub: %v", err)
	}
	if a == b {
		t.Fatalf("registrations share a cached instance")
	}
}

func engineToken(fp *fakeProvider, r *Registry) (*Engine, *login.Token) {
	r.Register("github", func(reg *registration.ClientRegistration) (Provider, error) {
		return fp, nil
	})
	return NewEngine(r), &login.Token{
		Registration: &registration.ClientRegistration{ID: "github", ClientID: "client-123"},
		Request: &authrequest.AuthorizationRequest{
			Scopes: []string{"read:user"},
			State:  "state-abc",
			Params: map[string]string{
				authrequest.ParamRegistrationID: "github",
				"nonce":                         "nonce-123",
			},
		},
		Response: &login.AuthorizationResponse{
			Code:        "code-xyz",
			State:       "state-abc",
			RedirectURI: "https://app.example/login/oauth2/code/github",
		},
	}
}

func TestEngineAuthenticate(t *testing.T) {
	fp := &fakeProvider{
		name:    "github",
		ts:      &TokenSet{AccessToken: "gho_token"},
		profile: &UserProfile{ProviderID: "583231", Username: "octocat", Email: "octocat@github.com", Raw: map[string]any{"login": "octocat"}},
	}
	engine, token := engineToken(fp, NewRegistry())

	p, err := engine.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Name != "octocat" {
		t.Fatalf("name = %q", p.Name)
	}
	if p.AccessToken != "gho_token" {
		t.Fatalf("access token = %q", p.AccessToken)
	}
	if len(p.Authorities) != 2 || p.Authorities[0] != DefaultAuthority || p.Authorities[1] != "SCOPE_read:user" {
		t.Fatalf("authorities = %v", p.Authorities)
	}
	if p.Claims["email"] != "octocat@github.com" {
		t.Fatalf("claims = %v", p.Claims)
	}
	if fp.lastIn.RedirectURI != "https://app.example/login/oauth2/code/github" {
		t.Fatalf("redirect uri = %q", fp.lastIn.RedirectURI)
	}
	if fp.lastIn.Nonce != "nonce-123" {
		t.Fatalf("nonce = %q", fp.lastIn.Nonce)
	}
}

func TestEngineExchangeFailure(t *testing.T) {
	fp := &fakeProvider{name: "github", exchErr: fmt.Errorf("boom")}
	engine, token := engineToken(fp, NewRegistry())

	if _, err := engine.Authenticate(context.Background(), token); err == nil {
		t.Fatalf("expected error")
	}
}

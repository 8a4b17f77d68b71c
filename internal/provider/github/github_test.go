package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/whoisit/internal/autherr"
	"github.com/dropDatabas3/whoisit/internal/provider"
	"github.com/dropDatabas3/whoisit/internal/registration"
)

func fakeGitHub(t *testing.T, tokenBody any, user any, emails any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token endpoint method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("code") == "" {
			t.Errorf("token request without code")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tokenBody)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gho_token" {
			t.Errorf("user endpoint auth = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(emails)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, srv *httptest.Server) provider.Provider {
	t.Helper()
	p, err := New(&registration.ClientRegistration{
		ID:           "github",
		ClientID:     "client-123",
		ClientSecret: "secret",
		TokenURI:     srv.URL + "/login/oauth/access_token",
		UserInfoURI:  srv.URL + "/user",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestExchangeAndUserInfo(t *testing.T) {
	srv := fakeGitHub(t,
		map[string]string{"access_token": "gho_token", "token_type": "bearer", "scope": "read:user"},
		map[string]any{"id": 583231, "login": "octocat", "name": "The Octocat", "email": "octocat@github.com"},
		nil,
	)
	c := testClient(t, srv)

	ts, err := c.Exchange(context.Background(), provider.ExchangeInput{
		Code:        "code-xyz",
		RedirectURI: "https://app.example/login/oauth2/code/github",
	})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if ts.AccessToken != "gho_token" {
		t.Fatalf("access token = %q", ts.AccessToken)
	}

	profile, err := c.UserInfo(context.Background(), ts)
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	if profile.Username != "octocat" {
		t.Fatalf("username = %q", profile.Username)
	}
	if profile.PrincipalName() != "octocat" {
		t.Fatalf("principal name = %q", profile.PrincipalName())
	}
	if profile.Email != "octocat@github.com" {
		t.Fatalf("email = %q", profile.Email)
	}
}

func TestExchangeProviderError(t *testing.T) {
	// GitHub reports bad codes in-band with a 200.
	srv := fakeGitHub(t,
		map[string]string{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		},
		nil, nil,
	)
	c := testClient(t, srv)

	_, err := c.Exchange(context.Background(), provider.ExchangeInput{Code: "expired"})
	ae := autherr.AsError(err)
	if ae == nil {
		t.Fatalf("Exchange error is not typed: %v", err)
	}
	if ae.Code != "bad_verification_code" {
		t.Fatalf("code = %q, want bad_verification_code", ae.Code)
	}
}

func TestExchangeEmptyToken(t *testing.T) {
	srv := fakeGitHub(t, map[string]string{"token_type": "bearer"}, nil, nil)
	c := testClient(t, srv)

	_, err := c.Exchange(context.Background(), provider.ExchangeInput{Code: "code-xyz"})
	ae := autherr.AsError(err)
	if ae == nil || ae.Code != "invalid_token_response" {
		t.Fatalf("got %v, want invalid_token_response", err)
	}
}

func TestUserInfoPrivateEmailFallback(t *testing.T) {
	srv := fakeGitHub(t,
		map[string]string{"access_token": "gho_token"},
		map[string]any{"id": 583231, "login": "octocat"},
		[]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "octocat@github.com", "primary": true, "verified": true},
		},
	)
	c := testClient(t, srv)

	profile, err := c.UserInfo(context.Background(), &provider.TokenSet{AccessToken: "gho_token"})
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	if profile.Email != "octocat@github.com" {
		t.Fatalf("email = %q, want primary verified", profile.Email)
	}
	if !profile.EmailVerified {
		t.Fatalf("email not flagged verified")
	}
}

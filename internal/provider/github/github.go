// Package github implements OAuth 2.0 authentication with GitHub.
// GitHub issues no id_token, so resolving the user takes a separate API call,
// plus a fallback to /user/emails for accounts with a private email.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/whoisit/internal/autherr"
	"github.com/dropDatabas3/whoisit/internal/provider"
	"github.com/dropDatabas3/whoisit/internal/registration"
)

const (
	defaultTokenEndpoint = "https://github.com/login/oauth/access_token"
	defaultUserEndpoint  = "https://api.github.com/user"
	defaultEmailEndpoint = "https://api.github.com/user/emails"
)

// Client is the GitHub provider adapter.
type Client struct {
	clientID     string
	clientSecret string

	tokenEndpoint string
	userEndpoint  string
	emailEndpoint string

	http *http.Client
}

// New builds a GitHub adapter from a client registration. Endpoint overrides
// in the registration (used by tests against fake servers) are honored.
func New(reg *registration.ClientRegistration) (provider.Provider, error) {
	if reg.ClientID == "" {
		return nil, fmt.Errorf("github: registration %q has no client id", reg.ID)
	}
	c := &Client{
		clientID:      reg.ClientID,
		clientSecret:  reg.ClientSecret,
		tokenEndpoint: defaultTokenEndpoint,
		userEndpoint:  defaultUserEndpoint,
		emailEndpoint: defaultEmailEndpoint,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
	if reg.TokenURI != "" {
		c.tokenEndpoint = reg.TokenURI
	}
	if reg.UserInfoURI != "" {
		c.userEndpoint = reg.UserInfoURI
		c.emailEndpoint = reg.UserInfoURI + "/emails"
	}
	return c, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "github" }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
	ErrorURI    string `json:"error_uri,omitempty"`
}

// Exchange redeems the authorization code at GitHub's token endpoint.
// GitHub reports failures in-band with 200 responses, so the error field is
// checked regardless of status; its code passes through verbatim.
func (c *Client) Exchange(ctx context.Context, in provider.ExchangeInput) (*provider.TokenSet, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", in.Code)
	form.Set("redirect_uri", in.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, autherr.New("token_request_failed").WithCause(err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, autherr.New("invalid_token_response").WithCause(err)
	}
	if tr.Error != "" {
		return nil, autherr.FromProvider(tr.Error, tr.ErrorDesc, tr.ErrorURI)
	}
	if tr.AccessToken == "" {
		return nil, autherr.New("invalid_token_response").WithDescription("no access_token in response")
	}

	return &provider.TokenSet{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Scope:       tr.Scope,
	}, nil
}

type userInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// UserInfo fetches the user with the access token, completing the email from
// /user/emails when the profile keeps it private.
func (c *Client) UserInfo(ctx context.Context, ts *provider.TokenSet) (*provider.UserProfile, error) {
	var info userInfo
	if err := c.getJSON(ctx, c.userEndpoint, ts.AccessToken, &info); err != nil {
		return nil, err
	}

	email := info.Email
	verified := false
	if email == "" {
		if e, err := c.primaryEmail(ctx, ts.AccessToken); err == nil {
			email = e.Email
			verified = e.Verified
		}
	}

	return &provider.UserProfile{
		ProviderID:    fmt.Sprintf("%d", info.ID),
		Username:      info.Login,
		Email:         email,
		Name:          info.Name,
		Picture:       info.AvatarURL,
		EmailVerified: verified,
		Raw: map[string]any{
			"id":    info.ID,
			"login": info.Login,
		},
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return autherr.New("userinfo_fetch_failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return autherr.New("userinfo_fetch_failed").
			WithDescription(fmt.Sprintf("github api status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return autherr.New("userinfo_fetch_failed").WithCause(err)
	}
	return nil
}

// primaryEmail picks the primary verified email, falling back to any
// verified one, then any at all.
func (c *Client) primaryEmail(ctx context.Context, accessToken string) (*emailInfo, error) {
	var emails []emailInfo
	if err := c.getJSON(ctx, c.emailEndpoint, accessToken, &emails); err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return &e, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return &e, nil
		}
	}
	if len(emails) > 0 {
		return &emails[0], nil
	}
	return nil, fmt.Errorf("github: no email found")
}

// Package google implements OIDC authentication with Google: discovery,
// JWKS-based id_token verification and profile extraction from claims.
// No userinfo endpoint call is needed; the id_token carries the profile.
package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/whoisit/internal/autherr"
	"github.com/dropDatabas3/whoisit/internal/provider"
	"github.com/dropDatabas3/whoisit/internal/registration"
)

const discoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

type discoveryDoc struct {
	Issuer        string `json:"issuer"`
	AuthEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint string `json:"token_endpoint"`
	JWKSURI       string `json:"jwks_uri"`
}

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// Client is the Google OIDC provider adapter.
type Client struct {
	clientID     string
	clientSecret string

	// tokenEndpoint overrides discovery when the registration pins one
	// (tests against fake servers).
	tokenEndpoint string

	// discoveryURL defaults to Google's well-known endpoint.
	discoveryURL string

	http  *http.Client
	mu    sync.RWMutex
	disc  *discoveryDoc
	discU time.Time

	keys     *jwks
	keysAt   time.Time
	keysETag string
}

// New builds a Google adapter from a client registration.
func New(reg *registration.ClientRegistration) (provider.Provider, error) {
	if reg.ClientID == "" {
		return nil, fmt.Errorf("google: registration %q has no client id", reg.ID)
	}
	return &Client{
		clientID:      reg.ClientID,
		clientSecret:  reg.ClientSecret,
		tokenEndpoint: reg.TokenURI,
		discoveryURL:  discoveryURL,
		http:          &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return "google" }

func (c *Client) discovery(ctx context.Context) (*discoveryDoc, error) {
	c.mu.RLock()
	disc := c.disc
	stale := time.Since(c.discU) > 24*time.Hour
	c.mu.RUnlock()
	if disc != nil && !stale {
		return disc, nil
	}

	req, _ := http.NewRequestWithContext(ctx, "GET", c.discoveryURL, nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dd discoveryDoc
	if err := json.NewDecoder(resp.Body).Decode(&dd); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.disc = &dd
	c.discU = time.Now()
	c.mu.Unlock()
	return &dd, nil
}

func (c *Client) getJWKS(ctx context.Context, uri string) (*jwks, error) {
	c.mu.RLock()
	j := c.keys
	age := time.Since(c.keysAt)
	etag := c.keysETag
	c.mu.RUnlock()
	if j != nil && age < time.Hour {
		return j, nil
	}

	req, _ := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.mu.Lock()
		out := c.keys
		c.keysAt = time.Now()
		c.mu.Unlock()
		return out, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("jwks http %d", resp.StatusCode)
	}

	var jj jwks
	if err := json.NewDecoder(resp.Body).Decode(&jj); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.keys = &jj
	c.keysAt = time.Now()
	c.keysETag = resp.Header.Get("ETag")
	c.mu.Unlock()
	return &jj, nil
}

func (c *Client) rsaKeyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	disc, err := c.discovery(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := c.getJWKS(ctx, disc.JWKSURI)
	if err != nil {
		return nil, err
	}
	for _, k := range keys.Keys {
		if k.Kid == kid && strings.EqualFold(k.Kty, "RSA") {
			nb, err := base64.RawURLEncoding.DecodeString(k.N)
			if err != nil {
				return nil, err
			}
			eb, err := base64.RawURLEncoding.DecodeString(k.E)
			if err != nil {
				return nil, err
			}
			n := new(big.Int).SetBytes(nb)
			e := 0
			for _, b := range eb {
				e = (e << 8) | int(b)
			}
			if e == 0 {
				e = 65537
			}
			return &rsa.PublicKey{N: n, E: e}, nil
		}
	}
	return nil, errors.New("kid not found")
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Exchange redeems the authorization code at Google's token endpoint.
// Provider error codes pass through verbatim.
func (c *Client) Exchange(ctx context.Context, in provider.ExchangeInput) (*provider.TokenSet, error) {
	endpoint := c.tokenEndpoint
	if endpoint == "" {
		disc, err := c.discovery(ctx)
		if err != nil {
			return nil, autherr.New("token_request_failed").WithCause(err)
		}
		endpoint = disc.TokenEndpoint
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", in.Code)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("redirect_uri", in.RedirectURI)

	req, _ := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, autherr.New("token_request_failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var b struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		if b.Error != "" {
			return nil, autherr.FromProvider(b.Error, b.ErrorDescription, "")
		}
		return nil, autherr.New("invalid_token_response").
			WithDescription(fmt.Sprintf("token http %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, autherr.New("invalid_token_response").WithCause(err)
	}
	if tr.IDToken == "" {
		return nil, autherr.New("invalid_token_response").WithDescription("no id_token in response")
	}

	return &provider.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
		Scope:        tr.Scope,
		Nonce:        in.Nonce,
	}, nil
}

// UserInfo verifies the id_token (signature, iss, aud, nonce, exp) and maps
// its claims to a profile.
func (c *Client) UserInfo(ctx context.Context, ts *provider.TokenSet) (*provider.UserProfile, error) {
	claims, err := c.verifyIDToken(ctx, ts.IDToken, ts.Nonce)
	if err != nil {
		return nil, autherr.New("invalid_id_token").WithCause(err)
	}

	return &provider.UserProfile{
		ProviderID:    strClaim(claims, "sub"),
		Email:         strClaim(claims, "email"),
		Name:          strClaim(claims, "name"),
		Picture:       strClaim(claims, "picture"),
		EmailVerified: boolClaim(claims, "email_verified"),
		Raw:           claims,
	}, nil
}

// verifyIDToken valida firma, iss, aud, nonce y exp. Devuelve las claims.
func (c *Client) verifyIDToken(ctx context.Context, idToken, expectedNonce string) (jwtv5.MapClaims, error) {
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, errors.New("bad jwt format")
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return nil, err
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("unexpected alg: %s", header.Alg)
	}

	key, err := c.rsaKeyForKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}
	tok, err := jwtv5.Parse(idToken,
		func(t *jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{"RS256"}),
	)
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid id_token signature")
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	iss, _ := claims["iss"].(string)
	if iss != "https://accounts.google.com" && iss != "accounts.google.com" {
		return nil, fmt.Errorf("bad iss: %s", iss)
	}

	audOK := false
	switch a := claims["aud"].(type) {
	case string:
		audOK = a == c.clientID
	case []any:
		for _, v := range a {
			if s, _ := v.(string); s == c.clientID {
				audOK = true
				break
			}
		}
	}
	if !audOK {
		return nil, errors.New("bad aud")
	}

	if expectedNonce != "" {
		if got, _ := claims["nonce"].(string); got != expectedNonce {
			return nil, errors.New("bad nonce")
		}
	}

	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(time.Now().Add(-30 * time.Second)) {
			return nil, errors.New("token expired")
		}
	}

	return claims, nil
}

func strClaim(claims jwtv5.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func boolClaim(claims jwtv5.MapClaims, key string) bool {
	b, _ := claims[key].(bool)
	return b
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
registrations:
  - id: github
    provider: github
    client_id: client-123
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr default = %q", cfg.Server.Addr)
	}
	if cfg.Login.CallbackPattern != "/login/oauth2/code/{registrationId}" {
		t.Fatalf("callback pattern default = %q", cfg.Login.CallbackPattern)
	}
	if cfg.Login.SessionCookie != "whoisit_session" {
		t.Fatalf("session cookie default = %q", cfg.Login.SessionCookie)
	}
	if cfg.Store.Kind != "memory" {
		t.Fatalf("store kind default = %q", cfg.Store.Kind)
	}
	if cfg.Registrations[0].AuthorizationURI == "" {
		t.Fatalf("github authorization_uri not defaulted")
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_GH_SECRET", "s3cret")

	cfg, err := Load(writeConfig(t, `
registrations:
  - id: github
    provider: github
    client_id: client-123
    client_secret: "${TEST_GH_SECRET}"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Registrations[0].ClientSecret != "s3cret" {
		t.Fatalf("client_secret = %q", cfg.Registrations[0].ClientSecret)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no registrations", `server: {addr: ":8080"}`},
		{"missing id", "registrations:\n  - client_id: x\n    authorization_uri: https://p/a"},
		{"duplicate id", `
registrations:
  - {id: github, provider: github, client_id: a}
  - {id: github, provider: github, client_id: b}
`},
		{"missing client_id", "registrations:\n  - {id: github, provider: github}"},
		{"no authorization_uri", "registrations:\n  - {id: custom, client_id: x}"},
		{"bad store kind", `
store: {kind: dynamo}
registrations:
  - {id: github, provider: github, client_id: a}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRequestTTL(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
login:
  request_ttl: 10m
registrations:
  - {id: github, provider: github, client_id: a}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ttl, err := cfg.RequestTTL()
	if err != nil {
		t.Fatalf("RequestTTL: %v", err)
	}
	if ttl != 10*time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	cfg.Login.RequestTTL = "not-a-duration"
	if _, err := cfg.RequestTTL(); err == nil {
		t.Fatalf("expected parse error")
	}
}

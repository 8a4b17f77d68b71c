// Package config loads the service configuration from YAML, with ${VAR}
// expansion so secrets can come from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Name string `yaml:"name"`
		// dev | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr    string `yaml:"addr"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	Login struct {
		CallbackPattern string `yaml:"callback_pattern"`
		SessionCookie   string `yaml:"session_cookie"`
		RequestTTL      string `yaml:"request_ttl"`
	} `yaml:"login"`

	Store struct {
		// memory | redis | postgres
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
			Seal     bool   `yaml:"seal"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"store"`

	Registrations []Registration `yaml:"registrations"`
}

// Registration mirrors one client registration entry in YAML.
type Registration struct {
	ID               string   `yaml:"id"`
	Provider         string   `yaml:"provider"`
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	AuthorizationURI string   `yaml:"authorization_uri"`
	TokenURI         string   `yaml:"token_uri"`
	UserInfoURI      string   `yaml:"userinfo_uri"`
	RedirectURI      string   `yaml:"redirect_uri"`
	Scopes           []string `yaml:"scopes"`
}

// Load lee el YAML, expande ${VAR} y aplica defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Login.CallbackPattern == "" {
		c.Login.CallbackPattern = "/login/oauth2/code/{registrationId}"
	}
	if c.Login.SessionCookie == "" {
		c.Login.SessionCookie = "whoisit_session"
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "memory"
	}
	for i := range c.Registrations {
		r := &c.Registrations[i]
		if r.AuthorizationURI != "" {
			continue
		}
		// Endpoints de autorización conocidos por provider.
		switch r.Provider {
		case "github":
			r.AuthorizationURI = "https://github.com/login/oauth/authorize"
		case "google":
			r.AuthorizationURI = "https://accounts.google.com/o/oauth2/v2/auth"
		}
	}
}

func (c *Config) validate() error {
	if len(c.Registrations) == 0 {
		return fmt.Errorf("config: at least one registration is required")
	}
	seen := make(map[string]bool, len(c.Registrations))
	for _, r := range c.Registrations {
		if r.ID == "" {
			return fmt.Errorf("config: registration without id")
		}
		if seen[r.ID] {
			return fmt.Errorf("config: duplicate registration id %q", r.ID)
		}
		seen[r.ID] = true
		if r.ClientID == "" {
			return fmt.Errorf("config: registration %q has no client_id", r.ID)
		}
		if r.AuthorizationURI == "" {
			return fmt.Errorf("config: registration %q has no authorization_uri", r.ID)
		}
	}
	switch c.Store.Kind {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	return nil
}

// RequestTTL parsea login.request_ttl; 0 cuando no está configurado.
func (c *Config) RequestTTL() (time.Duration, error) {
	if c.Login.RequestTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Login.RequestTTL)
	if err != nil {
		return 0, fmt.Errorf("config: login.request_ttl: %w", err)
	}
	return d, nil
}

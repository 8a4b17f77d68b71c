package main

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/whoisit/internal/login"
)

// sessionCache guarda el principal autenticado por sesión. Solo para el demo;
// un despliegue real usaría su propio session store.
type sessionCache struct {
	c *gocache.Cache
}

func newSessionCache() *sessionCache {
	return &sessionCache{c: gocache.New(24*time.Hour, 10*time.Minute)}
}

func (s *sessionCache) put(sessionID string, p *login.Principal) {
	if sessionID == "" {
		return
	}
	s.c.SetDefault(sessionID, p)
}

func (s *sessionCache) get(sessionID string) (*login.Principal, bool) {
	if sessionID == "" {
		return nil, false
	}
	v, ok := s.c.Get(sessionID)
	if !ok {
		return nil, false
	}
	p, ok := v.(*login.Principal)
	return p, ok
}

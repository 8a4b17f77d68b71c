package login

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultCallbackPattern is the path template callbacks are matched against.
const DefaultCallbackPattern = "/login/oauth2/code/{registrationId}"

const registrationIDPlaceholder = "{registrationId}"

// CallbackMatcher decides whether an inbound request is an authorization
// callback for a registered client and extracts the registration id from the
// path. Pure function of (method, path); no side effects.
type CallbackMatcher struct {
	prefix string
	suffix string
}

// NewCallbackMatcher compiles a path template containing exactly one
// {registrationId} placeholder, e.g. "/login/oauth2/code/{registrationId}".
func NewCallbackMatcher(pattern string) (*CallbackMatcher, error) {
	if pattern == "" {
		pattern = DefaultCallbackPattern
	}
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("login: callback pattern must start with '/': %q", pattern)
	}
	if strings.Count(pattern, registrationIDPlaceholder) != 1 {
		return nil, fmt.Errorf("login: callback pattern must contain %s exactly once: %q",
			registrationIDPlaceholder, pattern)
	}
	i := strings.Index(pattern, registrationIDPlaceholder)
	return &CallbackMatcher{
		prefix: pattern[:i],
		suffix: pattern[i+len(registrationIDPlaceholder):],
	}, nil
}

// Match reports whether (method, path) is an authorization callback and, if
// so, the registration id embedded in the path. Only GET on the template path
// is recognized; everything else is a no-match and must fall through the host
// pipeline, including requests that carry OAuth2-shaped query parameters on
// other paths.
func (m *CallbackMatcher) Match(method, path string) (string, bool) {
	if method != http.MethodGet {
		return "", false
	}
	if len(path) <= len(m.prefix)+len(m.suffix) {
		return "", false
	}
	if !strings.HasPrefix(path, m.prefix) || !strings.HasSuffix(path, m.suffix) {
		return "", false
	}
	id := path[len(m.prefix) : len(path)-len(m.suffix)]
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

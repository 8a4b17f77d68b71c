package login

import "testing"

func TestCallbackMatcherMatch(t *testing.T) {
	m, err := NewCallbackMatcher(DefaultCallbackPattern)
	if err != nil {
		t.Fatalf("NewCallbackMatcher: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		wantID string
		wantOK bool
	}{
		{"github callback", "GET", "/login/oauth2/code/github", "github", true},
		{"google callback", "GET", "/login/oauth2/code/google", "google", true},
		{"post not matched", "POST", "/login/oauth2/code/github", "", false},
		{"missing id", "GET", "/login/oauth2/code/", "", false},
		{"prefix only", "GET", "/login/oauth2/code", "", false},
		{"extra segment", "GET", "/login/oauth2/code/github/extra", "", false},
		{"unrelated path", "GET", "/api/v1/users", "", false},
		{"root", "GET", "/", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := m.Match(tc.method, tc.path)
			if ok != tc.wantOK || id != tc.wantID {
				t.Fatalf("Match(%s, %s) = (%q, %v), want (%q, %v)",
					tc.method, tc.path, id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}

func TestCallbackMatcherCustomPattern(t *testing.T) {
	m, err := NewCallbackMatcher("/auth/{registrationId}/callback")
	if err != nil {
		t.Fatalf("NewCallbackMatcher: %v", err)
	}

	if id, ok := m.Match("GET", "/auth/github/callback"); !ok || id != "github" {
		t.Fatalf("got (%q, %v), want (github, true)", id, ok)
	}
	if _, ok := m.Match("GET", "/auth//callback"); ok {
		t.Fatalf("empty id matched")
	}
	if _, ok := m.Match("GET", "/auth/a/b/callback"); ok {
		t.Fatalf("id with slash matched")
	}
}

func TestCallbackMatcherInvalidPatterns(t *testing.T) {
	for _, pattern := range []string{
		"no-leading-slash/{registrationId}",
		"/static/path",
		"/{registrationId}/{registrationId}",
	} {
		if _, err := NewCallbackMatcher(pattern); err == nil {
			t.Fatalf("pattern %q: expected error", pattern)
		}
	}
}

func TestCallbackMatcherEmptyPatternDefaults(t *testing.T) {
	m, err := NewCallbackMatcher("")
	if err != nil {
		t.Fatalf("NewCallbackMatcher: %v", err)
	}
	if id, ok := m.Match("GET", "/login/oauth2/code/github"); !ok || id != "github" {
		t.Fatalf("got (%q, %v), want (github, true)", id, ok)
	}
}

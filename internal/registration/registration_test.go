package registration

import (
	"errors"
	"testing"
)

func TestExpandRedirectURI(t *testing.T) {
	r := &ClientRegistration{
		ID:          "github",
		RedirectURI: "{baseUrl}/login/oauth2/code/{registrationId}",
	}

	got := r.ExpandRedirectURI("https://app.example/")
	want := "https://app.example/login/oauth2/code/github"
	if got != want {
		t.Fatalf("ExpandRedirectURI = %q, want %q", got, want)
	}

	// Literal URIs pass through untouched.
	r.RedirectURI = "https://fixed.example/cb"
	if got := r.ExpandRedirectURI("https://app.example"); got != "https://fixed.example/cb" {
		t.Fatalf("literal redirect mutated: %q", got)
	}
}

func TestProviderName(t *testing.T) {
	r := &ClientRegistration{ID: "github-corp", Provider: "github"}
	if r.ProviderName() != "github" {
		t.Fatalf("ProviderName = %q", r.ProviderName())
	}

	r = &ClientRegistration{ID: "github"}
	if r.ProviderName() != "github" {
		t.Fatalf("ProviderName fallback = %q", r.ProviderName())
	}
}

func TestInMemoryRepositoryFind(t *testing.T) {
	repo := NewInMemoryRepository(
		ClientRegistration{ID: "github", ClientID: "a"},
		ClientRegistration{ID: "google", ClientID: "b"},
	)

	reg, err := repo.Find("github")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if reg.ClientID != "a" {
		t.Fatalf("Find returned %+v", reg)
	}

	if _, err := repo.Find("gitlab"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find unknown: %v, want ErrNotFound", err)
	}
}

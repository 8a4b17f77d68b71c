package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/whoisit/internal/autherr"
	"github.com/dropDatabas3/whoisit/internal/authrequest"
	"github.com/dropDatabas3/whoisit/internal/login"
	"github.com/dropDatabas3/whoisit/internal/observability/logger"
	"github.com/dropDatabas3/whoisit/internal/security/tokens"
)

// startLogin arma la authorization request, la persiste atada a la sesión y
// redirige al endpoint de autorización del provider.
func (a *app) startLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Component("login"), logger.Op("start"))

	regID := chi.URLParam(r, "registrationId")
	reg, err := a.registrations.Find(regID)
	if err != nil {
		log.Warn("unknown registration", logger.RegistrationID(regID))
		http.NotFound(w, r)
		return
	}

	sessionID := a.ensureSession(w, r)

	state, err := authrequest.NewState()
	if err != nil {
		log.Error("state generation failed", logger.Err(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	nonce, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		log.Error("nonce generation failed", logger.Err(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	redirectURI := reg.ExpandRedirectURI(a.baseURL(r))
	req := authrequest.AuthorizationRequest{
		ClientID:         reg.ClientID,
		AuthorizationURI: reg.AuthorizationURI,
		RedirectURI:      redirectURI,
		Scopes:           reg.Scopes,
		State:            state,
		Params: map[string]string{
			authrequest.ParamRegistrationID: reg.ID,
			"nonce":                         nonce,
		},
	}
	if err := a.store.Save(ctx, sessionID, &req); err != nil {
		log.Error("authorization request save failed", logger.Err(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", reg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("nonce", nonce)
	if len(reg.Scopes) > 0 {
		q.Set("scope", strings.Join(reg.Scopes, " "))
	}

	log.Info("redirecting to provider", logger.RegistrationID(reg.ID))
	http.Redirect(w, r, reg.AuthorizationURI+"?"+q.Encode(), http.StatusFound)
}

// whoAmI muestra el principal guardado en la sesión en memoria del demo.
func (a *app) whoAmI(w http.ResponseWriter, r *http.Request) {
	p, ok := a.sessions.get(a.sessionID(r))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "not_authenticated",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         p.Name,
		"registration": p.RegistrationID,
		"authorities":  p.Authorities,
	})
}

func (a *app) onLoginSuccess(w http.ResponseWriter, r *http.Request, p *login.Principal) {
	log := logger.From(r.Context()).With(logger.Component("login"), logger.Op("success"))
	log.Info("login completed",
		logger.Principal(p.Name),
		logger.RegistrationID(p.RegistrationID),
	)

	a.sessions.put(a.sessionID(r), p)
	http.Redirect(w, r, "/me", http.StatusFound)
}

func (a *app) onLoginFailure(w http.ResponseWriter, r *http.Request, err *autherr.Error) {
	log := logger.From(r.Context()).With(logger.Component("login"), logger.Op("failure"))
	log.Warn("login failed",
		logger.ErrorCode(err.Code),
		logger.String("description", err.Description),
	)

	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":             err.Code,
		"error_description": err.Description,
	})
}

func (a *app) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(a.cfg.Login.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.Login.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return id
}

func (a *app) sessionID(r *http.Request) string {
	if c, err := r.Cookie(a.cfg.Login.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func (a *app) baseURL(r *http.Request) string {
	if a.cfg.Server.BaseURL != "" {
		return strings.TrimRight(a.cfg.Server.BaseURL, "/")
	}
	scheme := "https"
	if r.TLS == nil {
		host := r.Host
		if h, _, ok := strings.Cut(host, ":"); ok {
			host = h
		}
		if host == "localhost" || host == "127.0.0.1" {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

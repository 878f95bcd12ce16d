package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	"clynto/backend/internal/config"
	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/tenant"
	"clynto/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

const (
	stateCookie   = "oauthstate"
	sessionCookie = "id_token"
	devEmail      = "dev@localhost"
)

// Auth performs OpenID Connect authentication against an Okta tenant and
// resolves the caller's tenant from the email domain of the token.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	tenants      repository.TenantStore
	logger       Logger
	secure       bool
	authBypass   bool
}

// New creates an Auth from the application configuration. Outside dev
// bypass mode it contacts the issuer to discover its endpoints.
func New(ctx context.Context, cfg *config.Config, tenants repository.TenantStore, logger Logger) (*Auth, error) {
	shouldBypass := cfg.IsDev() && cfg.DevModeBypass

	a := &Auth{
		tenants:    tenants,
		logger:     logger,
		secure:     cfg.TLS.Enable,
		authBypass: shouldBypass,
	}
	if shouldBypass {
		return a, nil
	}

	if cfg.Auth.OktaDomain == "" || cfg.Auth.ClientID == "" ||
		cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
		return nil, errors.New("auth configuration is incomplete")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
	if err != nil {
		return nil, err
	}

	a.oauth2Config = &oauth2.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       []string{ScopeOpenID, ScopeProfile, ScopeEmail},
	}
	a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})
	// Access tokens carry the API audience rather than the client id.
	if cfg.Auth.Audience != "" {
		a.apiVerifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.Audience})
	} else {
		a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}
	return a, nil
}

// LoginHandler redirects to the authorization endpoint. A random state value
// is stored in a cookie to mitigate CSRF attacks.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   600,
	})

	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler verifies the state parameter, exchanges the code for
// tokens and stores the verified ID token in a session cookie.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.logError("token exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusBadGateway)
		return
	}

	if _, err := a.verifier.Verify(r.Context(), rawIDToken); err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    rawIDToken,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth is middleware that accepts a Bearer access token or the
// session cookie and puts the caller's tenant id into the request context.
// Browser requests without a session are redirected to /login; API requests
// get 401.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := devEmail
		if !a.authBypass {
			var (
				token *oidc.IDToken
				err   error
			)
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				token, err = a.apiVerifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			} else {
				cookie, cookieErr := r.Cookie(sessionCookie)
				if cookieErr != nil {
					if wantsHTML(r) {
						http.Redirect(w, r, "/login", http.StatusSeeOther)
						return
					}
					writeUnauthorized(w, "missing credentials")
					return
				}
				token, err = a.verifier.Verify(r.Context(), cookie.Value)
			}
			if err != nil {
				writeUnauthorized(w, "invalid token: "+err.Error())
				return
			}

			var claims struct {
				Email         string `json:"email"`
				EmailVerified bool   `json:"email_verified"`
			}
			if err := token.Claims(&claims); err != nil {
				writeUnauthorized(w, "failed to parse token claims")
				return
			}
			// The email domain picks the tenant, so it must be proven.
			if !claims.EmailVerified {
				writeUnauthorized(w, "email address is not verified")
				return
			}
			email = claims.Email
		}

		domain, ok := emailDomain(email)
		if !ok {
			writeUnauthorized(w, "invalid email format in token")
			return
		}

		t, err := a.resolveTenant(r.Context(), domain)
		if err != nil {
			a.logError("failed to resolve tenant", "domain", domain, "error", err)
			http.Error(w, "failed to resolve tenant", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithID(r.Context(), t.ID)))
	})
}

// Middleware adapts RequireAuth for an echo group.
func (a *Auth) Middleware() echo.MiddlewareFunc {
	return echo.WrapMiddleware(a.RequireAuth)
}

// resolveTenant looks up the tenant owning domain, provisioning one on first
// sign-in.
func (a *Auth) resolveTenant(ctx context.Context, domain string) (*models.Tenant, error) {
	t, err := a.tenants.GetTenantByDomain(ctx, domain)
	if err == nil {
		return t, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	t = &models.Tenant{Name: domain, Domain: domain}
	if err := a.tenants.CreateTenant(ctx, t); err != nil {
		// Lost a race with a concurrent first sign-in.
		if apperrors.Is(err, apperrors.ErrConflict) {
			return a.tenants.GetTenantByDomain(ctx, domain)
		}
		return nil, err
	}
	if a.logger != nil {
		a.logger.Info("provisioned tenant", "domain", domain, "tenant_id", t.ID)
	}
	return t, nil
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *Auth) logError(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Error(msg, args...)
	}
}

func emailDomain(email string) (string, bool) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return strings.ToLower(parts[1]), true
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="clynto"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(http.StatusUnauthorized),
		"status": http.StatusUnauthorized,
		"detail": detail,
	})
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

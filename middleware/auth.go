package middleware

import (
	"net/http"
	"strings"

	"github.com/letsplay/tournament-hub/services"
)

const TokenCookieName = "token"

type Authenticator struct {
	tokens  *services.TokenService
	auth    services.AuthService
	onError ErrorResponder
}

func NewAuthenticator(tokens *services.TokenService, auth services.AuthService, onError ErrorResponder) *Authenticator {
	return &Authenticator{tokens: tokens, auth: auth, onError: onError}
}

// Authenticate resolves the session cookie (or a Bearer header) into an identity.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.tokens.Validate(tokenFromRequest(r))
		if err != nil {
			a.onError(w, r, err)
			return
		}

		identity, err := a.auth.ResolveIdentity(r.Context(), session)
		if err != nil {
			a.onError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireOrganizer lets organizer accounts through. Must run after Authenticate.
func (a *Authenticator) RequireOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			a.onError(w, r, services.ErrUnauthenticated)
			return
		}
		if !identity.IsOrganizer() {
			a.onError(w, r, services.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

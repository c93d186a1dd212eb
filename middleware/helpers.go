package middleware

import (
	"context"
	"net/http"

	"github.com/letsplay/tournament-hub/models"
)

type contextKey string

const (
	identityContextKey   contextKey = "identity"
	tournamentContextKey contextKey = "tournament"
)

// ErrorResponder writes err as an API error response.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*models.Identity)
	return identity, ok && identity != nil
}

func WithTournament(ctx context.Context, t *models.Tournament) context.Context {
	return context.WithValue(ctx, tournamentContextKey, t)
}

// TournamentFromContext returns the tournament loaded by one of the gates.
func TournamentFromContext(ctx context.Context) (*models.Tournament, bool) {
	t, ok := ctx.Value(tournamentContextKey).(*models.Tournament)
	return t, ok && t != nil
}

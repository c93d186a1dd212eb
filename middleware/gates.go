package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/authz"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/services"
)

// TournamentIDParam is the chi URL parameter the tournament gates read.
const TournamentIDParam = "id"

// Gates are chainable access checks. Each one loads the tournament named by the
// URL (reusing one an earlier gate already loaded), applies an authz predicate
// and leaves the tournament on the request context.
// Every gate except RequireRegistrationWindow must run after Authenticate.
type Gates struct {
	tournaments   services.TournamentService
	registrations services.RegistrationService
	onError       ErrorResponder
}

func NewGates(tournaments services.TournamentService, registrations services.RegistrationService, onError ErrorResponder) *Gates {
	return &Gates{tournaments: tournaments, registrations: registrations, onError: onError}
}

func (g *Gates) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			g.onError(w, r, services.ErrUnauthenticated)
			return
		}
		if !authz.IsAdmin(identity) {
			g.onError(w, r, services.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTournamentCreator: organizers and platform admins may create tournaments.
func (g *Gates) RequireTournamentCreator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			g.onError(w, r, services.ErrUnauthenticated)
			return
		}
		if err := authz.CanCreateTournament(identity); err != nil {
			g.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gates) RequireTournamentOrganizer(next http.Handler) http.Handler {
	return g.tournamentGate(next, func(r *http.Request, identity *models.Identity, t *models.Tournament) error {
		return authz.CanManageTournament(identity, t)
	})
}

// RequireTeamMember passes captains and members of approved teams.
func (g *Gates) RequireTeamMember(next http.Handler) http.Handler {
	return g.tournamentGate(next, func(r *http.Request, identity *models.Identity, t *models.Tournament) error {
		if authz.IsAdmin(identity) {
			return nil
		}
		teams, err := g.registrations.ListApprovedTeams(r.Context(), t.ID)
		if err != nil {
			return err
		}
		return authz.IsTeamMember(identity, teams)
	})
}

func (g *Gates) RequireRegistrationWindow(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := g.loadTournament(r)
		if err != nil {
			g.onError(w, r, err)
			return
		}
		if err := authz.RegistrationWindowOpen(t, g.tournaments.Now()); err != nil {
			g.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTournament(r.Context(), t)))
	})
}

func (g *Gates) tournamentGate(next http.Handler, check func(*http.Request, *models.Identity, *models.Tournament) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			g.onError(w, r, services.ErrUnauthenticated)
			return
		}
		t, err := g.loadTournament(r)
		if err != nil {
			g.onError(w, r, err)
			return
		}
		if err := check(r, identity, t); err != nil {
			g.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTournament(r.Context(), t)))
	})
}

func (g *Gates) loadTournament(r *http.Request) (*models.Tournament, error) {
	id, err := uuid.Parse(chi.URLParam(r, TournamentIDParam))
	if err != nil {
		return nil, services.ErrTournamentNotFound
	}
	if t, ok := TournamentFromContext(r.Context()); ok && t.ID == id {
		return t, nil
	}
	return g.tournaments.GetTournamentByID(r.Context(), id)
}

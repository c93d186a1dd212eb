package authz

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

func tournamentWith(organizers ...models.TournamentOrganizer) *models.Tournament {
	return &models.Tournament{ID: uuid.New(), Organizers: organizers}
}

func TestCanManageTournament(t *testing.T) {
	owner := &models.Identity{ID: uuid.New(), Kind: models.PrincipalOrganizer}
	moderator := &models.Identity{ID: uuid.New(), Kind: models.PrincipalOrganizer}
	stranger := &models.Identity{ID: uuid.New(), Kind: models.PrincipalOrganizer}
	admin := &models.Identity{ID: uuid.New(), Kind: models.PrincipalUser, IsAdmin: true}

	tour := tournamentWith(
		models.TournamentOrganizer{UserID: owner.ID, Role: models.OrganizerRoleAdmin},
		models.TournamentOrganizer{UserID: moderator.ID, Role: models.OrganizerRoleModerator},
	)

	tests := []struct {
		name    string
		id      *models.Identity
		wantErr error
	}{
		{"owner", owner, nil},
		{"moderator", moderator, nil},
		{"admin", admin, nil},
		{"stranger", stranger, ErrForbidden},
		{"anonymous", nil, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CanManageTournament(tt.id, tour); !errors.Is(err, tt.wantErr) {
				t.Fatalf("CanManageTournament = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanManageOrganizersNeedsAdminRole(t *testing.T) {
	owner := &models.Identity{ID: uuid.New(), Kind: models.PrincipalOrganizer}
	moderator := &models.Identity{ID: uuid.New(), Kind: models.PrincipalOrganizer}
	tour := tournamentWith(
		models.TournamentOrganizer{UserID: owner.ID, Role: models.OrganizerRoleAdmin},
		models.TournamentOrganizer{UserID: moderator.ID, Role: models.OrganizerRoleModerator},
	)

	if err := CanManageOrganizers(owner, tour); err != nil {
		t.Errorf("owner: %v", err)
	}
	if err := CanManageOrganizers(moderator, tour); !errors.Is(err, ErrForbidden) {
		t.Errorf("moderator: got %v, want ErrForbidden", err)
	}
	platformAdmin := &models.Identity{ID: uuid.New(), IsAdmin: true}
	if role, ok := OrganizerRole(platformAdmin, tour); !ok || role != models.OrganizerRoleAdmin {
		t.Errorf("platform admin role = %q, %v", role, ok)
	}
}

func TestCanCreateTournament(t *testing.T) {
	if err := CanCreateTournament(&models.Identity{Kind: models.PrincipalOrganizer}); err != nil {
		t.Errorf("organizer: %v", err)
	}
	if err := CanCreateTournament(&models.Identity{Kind: models.PrincipalUser, IsAdmin: true}); err != nil {
		t.Errorf("admin: %v", err)
	}
	if err := CanCreateTournament(&models.Identity{Kind: models.PrincipalUser}); !errors.Is(err, ErrForbidden) {
		t.Errorf("player: got %v", err)
	}
}

func TestIsTeamMember(t *testing.T) {
	captain := uuid.New()
	member := uuid.New()
	teams := []models.Applicant{{
		Captain: models.Captain{UserID: captain},
		Members: []models.TeamMember{{Name: "mid", UserID: &member}, {Name: "guest"}},
	}}

	if err := IsTeamMember(&models.Identity{ID: captain}, teams); err != nil {
		t.Errorf("captain: %v", err)
	}
	if err := IsTeamMember(&models.Identity{ID: member}, teams); err != nil {
		t.Errorf("member: %v", err)
	}
	if err := IsTeamMember(&models.Identity{ID: uuid.New()}, teams); !errors.Is(err, ErrForbidden) {
		t.Errorf("outsider: got %v", err)
	}
	if err := IsTeamMember(&models.Identity{ID: uuid.New(), IsAdmin: true}, nil); err != nil {
		t.Errorf("admin: %v", err)
	}
}

func TestRegistrationWindowOpen(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)
	tour := &models.Tournament{Registration: models.RegistrationWindow{StartDate: start, EndDate: end}}

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"before start", start.Add(-time.Second), ErrRegistrationClosed},
		{"at start", start, nil},
		{"inside", start.Add(72 * time.Hour), nil},
		{"at end", end, nil},
		{"after end", end.Add(time.Second), ErrRegistrationClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RegistrationWindowOpen(tour, tt.now); !errors.Is(err, tt.wantErr) {
				t.Fatalf("RegistrationWindowOpen = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/letsplay/tournament-hub/live"
	"github.com/letsplay/tournament-hub/models"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %v is not a *ValidationError", err)
	}
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	return fields
}

func TestCreateTournamentDefaults(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)

	tour := e.tournament(t, owner, nil)

	if tour.Slug != "winter-valorant-cup" {
		t.Errorf("Slug = %q", tour.Slug)
	}
	if tour.Registration.Status != models.RegistrationOpen {
		t.Errorf("Status = %s, want open", tour.Registration.Status)
	}
	if tour.CurrentTeams != 0 || tour.Version != 1 {
		t.Errorf("CurrentTeams=%d Version=%d, want 0 and 1", tour.CurrentTeams, tour.Version)
	}
	if len(tour.Organizers) != 1 || tour.Organizers[0].UserID != owner.ID || tour.Organizers[0].Role != models.OrganizerRoleAdmin {
		t.Errorf("Organizers = %+v, want creator as admin", tour.Organizers)
	}
	for _, share := range tour.PrizePool.Distribution {
		if share.Currency != "NPR" {
			t.Errorf("share currency = %q, want pool currency", share.Currency)
		}
	}
}

func TestCreateTournamentSlugConflictGetsSuffix(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)

	first := e.tournament(t, owner, nil)
	second := e.tournament(t, owner, nil)

	if first.Slug == second.Slug {
		t.Fatalf("both tournaments got slug %q", first.Slug)
	}
	if !strings.HasPrefix(second.Slug, first.Slug+"-") {
		t.Errorf("second slug = %q, want %q prefix", second.Slug, first.Slug+"-")
	}
}

func TestCreateTournamentRequiresOrganizerOrAdmin(t *testing.T) {
	e := newEnv(t)
	player := e.player(t)

	_, err := e.tournaments.CreateTournament(context.Background(), player, validTournamentInput())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("player create = %v, want ErrForbidden", err)
	}

	admin := e.player(t)
	admin.IsAdmin = true
	if _, err := e.tournaments.CreateTournament(context.Background(), admin, validTournamentInput()); err != nil {
		t.Fatalf("admin create = %v", err)
	}
}

func TestCreateTournamentValidation(t *testing.T) {
	date := func(day int) time.Time { return time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		mutate func(*TournamentInput)
		fields []string
	}{
		{
			name: "end before start",
			mutate: func(in *TournamentInput) {
				in.StartDate, in.EndDate = date(10), date(5)
			},
			fields: []string{"end_date"},
		},
		{
			name: "registration ends after start",
			mutate: func(in *TournamentInput) {
				in.RegistrationEnd = in.StartDate.Add(time.Hour)
			},
			fields: []string{"registration.end_date"},
		},
		{
			name: "registration opens after it closes",
			mutate: func(in *TournamentInput) {
				in.RegistrationStart = in.RegistrationEnd.Add(time.Hour)
			},
			fields: []string{"registration.start_date"},
		},
		{
			name: "prize shares do not add up",
			mutate: func(in *TournamentInput) {
				in.PrizePool.Distribution[1].Amount = 299.99
			},
			fields: []string{"prize_pool.distribution"},
		},
		{
			name: "fractional prize shares add up",
			mutate: func(in *TournamentInput) {
				in.PrizePool = models.PrizePool{Total: 0.3, Distribution: []models.PrizeShare{{Position: 1, Amount: 0.1}, {Position: 2, Amount: 0.2}}}
			},
		},
		{
			name: "min team size above max",
			mutate: func(in *TournamentInput) {
				in.MinTeamSize, in.MaxTeamSize = 5, 3
			},
			fields: []string{"min_team_size"},
		},
		{
			name: "start in the past",
			mutate: func(in *TournamentInput) {
				in.RegistrationStart = testNow.Add(-72 * time.Hour)
				in.RegistrationEnd = testNow.Add(-48 * time.Hour)
				in.StartDate = testNow.Add(-time.Hour)
			},
			fields: []string{"start_date"},
		},
		{
			name: "shape errors are aggregated",
			mutate: func(in *TournamentInput) {
				in.Title = ""
				in.Game = "Chess"
				in.Format = "ladder"
			},
			fields: []string{"title", "game", "format"},
		},
		{
			name: "duplicate prize positions",
			mutate: func(in *TournamentInput) {
				in.PrizePool.Distribution[1].Position = 1
			},
			fields: []string{"prize_pool.distribution[1].position"},
		},
		{
			name: "created full is not allowed",
			mutate: func(in *TournamentInput) {
				in.RegistrationStatus = models.RegistrationFull
			},
			fields: []string{"registration_status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			input := validTournamentInput()
			tt.mutate(&input)

			_, err := e.tournaments.CreateTournament(context.Background(), e.organizer(t), input)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("CreateTournament = %v, want success", err)
				}
				return
			}
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("CreateTournament = %v, want validation error", err)
			}
			got := fieldsOf(t, err)
			if strings.Join(got, ",") != strings.Join(tt.fields, ",") {
				t.Fatalf("fields = %v, want %v", got, tt.fields)
			}
		})
	}
}

func TestGetTournamentBySlugWithCounts(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	a, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Alpha"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Bravo")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantApproved, owner); err != nil {
		t.Fatal(err)
	}

	details, err := e.tournaments.GetTournament(ctx, tour.Slug)
	if err != nil {
		t.Fatal(err)
	}
	if details.ApprovedTeams != 1 || details.PendingApplications != 1 || details.SeatsLeft != 7 {
		t.Fatalf("details = approved %d pending %d seats %d, want 1 1 7",
			details.ApprovedTeams, details.PendingApplications, details.SeatsLeft)
	}

	byID, err := e.tournaments.GetTournament(ctx, tour.ID.String())
	if err != nil || byID.ID != tour.ID {
		t.Fatalf("GetTournament by id = %v, %v", byID, err)
	}
	if _, err := e.tournaments.GetTournament(ctx, "missing-slug"); !errors.Is(err, ErrTournamentNotFound) {
		t.Fatalf("missing slug = %v, want ErrTournamentNotFound", err)
	}
}

func TestEditTournament(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	title := "Spring Valorant Cup"
	edited, err := e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{Title: &title}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if edited.Title != title || edited.Version != tour.Version+1 {
		t.Fatalf("edited = %q v%d", edited.Title, edited.Version)
	}
	if edited.Slug != tour.Slug {
		t.Errorf("slug changed on edit: %q -> %q", tour.Slug, edited.Slug)
	}
	if e.publisher.count(live.EventTournamentUpdated) != 1 {
		t.Errorf("tournament update event not published")
	}

	if _, err := e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{}, owner); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("empty patch = %v, want validation error", err)
	}
	if _, err := e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{Title: &title}, e.organizer(t)); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger edit = %v, want ErrForbidden", err)
	}

	badEnd := tour.StartDate.Add(-time.Hour)
	if _, err := e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{EndDate: &badEnd}, owner); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("end before start = %v, want validation error", err)
	}
}

func TestEditTournamentMaxTeamsAgainstApprovedTeams(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	for _, team := range []string{"Alpha", "Bravo"} {
		a, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor(team))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantApproved, owner); err != nil {
			t.Fatal(err)
		}
	}

	one := 1
	_, err := e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{MaxTeams: &one}, owner)
	if got := fieldsOf(t, err); len(got) != 1 || got[0] != "max_teams" {
		t.Fatalf("fields = %v, want [max_teams]", got)
	}

	two := 2
	edited, err := e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{MaxTeams: &two}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if edited.Registration.Status != models.RegistrationFull {
		t.Fatalf("status = %s after lowering max_teams to current, want full", edited.Registration.Status)
	}

	three := 3
	edited, err = e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{MaxTeams: &three}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if edited.Registration.Status != models.RegistrationOpen {
		t.Fatalf("status = %s after raising max_teams, want open", edited.Registration.Status)
	}
}

func TestSetRegistrationStatus(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	closed, err := e.tournaments.SetRegistrationStatus(ctx, tour.ID, models.RegistrationClosed, owner)
	if err != nil || closed.Registration.Status != models.RegistrationClosed {
		t.Fatalf("close = %v, %v", closed, err)
	}
	reopened, err := e.tournaments.SetRegistrationStatus(ctx, tour.ID, models.RegistrationOpen, owner)
	if err != nil || reopened.Registration.Status != models.RegistrationOpen {
		t.Fatalf("reopen = %v, %v", reopened, err)
	}

	if _, err := e.tournaments.SetRegistrationStatus(ctx, tour.ID, models.RegistrationFull, owner); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("manual full = %v, want validation error", err)
	}

	if _, err := e.tournaments.SetRegistrationStatus(ctx, tour.ID, models.RegistrationClosed, owner); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(6 * 24 * time.Hour)
	if _, err := e.tournaments.SetRegistrationStatus(ctx, tour.ID, models.RegistrationOpen, owner); !errors.Is(err, ErrInvalidRegistrationState) {
		t.Errorf("reopen after window = %v, want ErrInvalidRegistrationState", err)
	}
}

func TestOrganizerManagement(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	moderator := e.organizer(t)
	ctx := context.Background()

	updated, err := e.tournaments.AddOrganizer(ctx, tour.ID, models.TournamentOrganizer{UserID: moderator.ID, Role: models.OrganizerRoleModerator}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if role, ok := updated.OrganizerRoleOf(moderator.ID); !ok || role != models.OrganizerRoleModerator {
		t.Fatalf("moderator role = %q %v", role, ok)
	}

	// moderators can edit but not manage organizers
	title := "Renamed by moderator"
	if _, err := e.tournaments.EditTournament(ctx, tour.ID, models.TournamentUpdate{Title: &title}, moderator); err != nil {
		t.Fatalf("moderator edit = %v", err)
	}
	if _, err := e.tournaments.RemoveOrganizer(ctx, tour.ID, owner.ID, moderator); !errors.Is(err, ErrForbidden) {
		t.Fatalf("moderator removing admin = %v, want ErrForbidden", err)
	}

	if _, err := e.tournaments.RemoveOrganizer(ctx, tour.ID, owner.ID, owner); !errors.Is(err, ErrLastTournamentAdmin) {
		t.Fatalf("removing last admin = %v, want ErrLastTournamentAdmin", err)
	}
	if _, err := e.tournaments.AddOrganizer(ctx, tour.ID, models.TournamentOrganizer{UserID: owner.ID, Role: models.OrganizerRoleObserver}, owner); !errors.Is(err, ErrLastTournamentAdmin) {
		t.Fatalf("demoting last admin = %v, want ErrLastTournamentAdmin", err)
	}

	unknown := models.TournamentOrganizer{UserID: e.player(t).ID, Role: models.OrganizerRoleObserver}
	if _, err := e.tournaments.AddOrganizer(ctx, tour.ID, unknown, owner); err != nil {
		t.Fatalf("adding a player as observer = %v", err)
	}

	after, err := e.tournaments.RemoveOrganizer(ctx, tour.ID, moderator.ID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if after.HasOrganizer(moderator.ID) {
		t.Fatal("moderator still listed after removal")
	}
}

func TestCloseExpiredRegistrations(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	ids, err := e.tournaments.CloseExpiredRegistrations(ctx, e.clock.Now())
	if err != nil || len(ids) != 0 {
		t.Fatalf("early sweep = %v, %v", ids, err)
	}

	e.clock.Advance(6 * 24 * time.Hour)
	ids, err = e.tournaments.CloseExpiredRegistrations(ctx, e.clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != tour.ID {
		t.Fatalf("closed = %v, want [%s]", ids, tour.ID)
	}
	if e.publisher.count(live.EventRegistrationUpdated) != 1 {
		t.Errorf("registration event not published")
	}

	got, _ := e.tournaments.GetTournamentByID(ctx, tour.ID)
	if got.Registration.Status != models.RegistrationClosed {
		t.Fatalf("status = %s, want closed", got.Registration.Status)
	}
}

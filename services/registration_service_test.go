package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/live"
	"github.com/letsplay/tournament-hub/models"
	"github.com/xuri/excelize/v2"
)

func submit(t *testing.T, e *env, tournamentID uuid.UUID, team string) *models.Applicant {
	t.Helper()
	a, err := e.registrations.SubmitApplication(context.Background(), tournamentID, e.player(t), applicationFor(team))
	if err != nil {
		t.Fatalf("SubmitApplication(%s): %v", team, err)
	}
	return a
}

func TestSubmitApplication(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)

	a := submit(t, e, tour.ID, "  Alpha  ")

	if a.Status != models.ApplicantPending {
		t.Errorf("Status = %s, want Pending", a.Status)
	}
	if a.TeamName != "Alpha" {
		t.Errorf("TeamName = %q, want trimmed", a.TeamName)
	}
	if !strings.HasPrefix(a.Payment.ProofKey, "payments/"+tour.ID.String()+"/") || !strings.HasSuffix(a.Payment.ProofKey, ".png") {
		t.Errorf("ProofKey = %q", a.Payment.ProofKey)
	}
	if a.Payment.ProofURL != "https://cdn.test/"+a.Payment.ProofKey {
		t.Errorf("ProofURL = %q", a.Payment.ProofURL)
	}
	if e.uploader.count() != 1 {
		t.Errorf("uploaded objects = %d, want 1", e.uploader.count())
	}
	if e.publisher.count(live.EventApplicantSubmitted) != 1 {
		t.Errorf("submit event not published")
	}
}

func TestSubmitApplicationRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), nil)
		if _, err := e.registrations.SubmitApplication(ctx, tour.ID, nil, applicationFor("Alpha")); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("got %v, want ErrUnauthenticated", err)
		}
	})

	t.Run("window not started", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), func(in *TournamentInput) {
			in.RegistrationStart = testNow.Add(24 * time.Hour)
		})
		if _, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Alpha")); !errors.Is(err, ErrRegistrationClosed) {
			t.Fatalf("got %v, want ErrRegistrationClosed", err)
		}
	})

	t.Run("window ended", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), nil)
		e.clock.Advance(6 * 24 * time.Hour)
		if _, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Alpha")); !errors.Is(err, ErrRegistrationClosed) {
			t.Fatalf("got %v, want ErrRegistrationClosed", err)
		}
	})

	t.Run("closed manually", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), func(in *TournamentInput) {
			in.RegistrationStatus = models.RegistrationClosed
		})
		if _, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Alpha")); !errors.Is(err, ErrRegistrationClosed) {
			t.Fatalf("got %v, want ErrRegistrationClosed", err)
		}
	})

	t.Run("team too large", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), func(in *TournamentInput) {
			in.MaxTeamSize = 1
		})
		_, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Alpha"))
		if got := fieldsOf(t, err); len(got) != 1 || got[0] != "members" {
			t.Fatalf("fields = %v, want [members]", got)
		}
		if e.uploader.count() != 0 {
			t.Fatalf("proof uploaded for a rejected application")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), nil)
		input := applicationFor("Alpha")
		input.CaptainEmail = "not-an-email"
		input.PaymentScreenshot = nil
		_, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), input)
		got := fieldsOf(t, err)
		if strings.Join(got, ",") != "email,paymentScreenshot" {
			t.Fatalf("fields = %v", got)
		}
	})

	t.Run("unsupported proof type", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), nil)
		input := applicationFor("Alpha")
		input.PaymentScreenshot.ContentType = "text/plain"
		_, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), input)
		if got := fieldsOf(t, err); len(got) != 1 || got[0] != "paymentScreenshot" {
			t.Fatalf("fields = %v", got)
		}
	})

	t.Run("duplicate team removes uploaded proof", func(t *testing.T) {
		e := newEnv(t)
		tour := e.tournament(t, e.organizer(t), nil)
		submit(t, e, tour.ID, "Alpha")
		_, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("ALPHA"))
		if !errors.Is(err, ErrApplicationConflict) {
			t.Fatalf("got %v, want ErrApplicationConflict", err)
		}
		if e.uploader.count() != 1 {
			t.Fatalf("uploaded objects = %d, want only the first proof", e.uploader.count())
		}
	})
}

func TestApprovalsRespectCapacity(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, func(in *TournamentInput) { in.MaxTeams = 2 })
	ctx := context.Background()

	alpha := submit(t, e, tour.ID, "Alpha")
	bravo := submit(t, e, tour.ID, "Bravo")
	charlie := submit(t, e, tour.ID, "Charlie")

	for _, a := range []*models.Applicant{alpha, bravo} {
		if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantApproved, owner); err != nil {
			t.Fatalf("approve %s: %v", a.TeamName, err)
		}
	}
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, charlie.ID, models.ApplicantApproved, owner); !errors.Is(err, ErrTournamentFull) {
		t.Fatalf("third approval = %v, want ErrTournamentFull", err)
	}

	got, _ := e.tournaments.GetTournamentByID(ctx, tour.ID)
	if got.CurrentTeams != 2 || got.Registration.Status != models.RegistrationFull {
		t.Fatalf("tournament = %d teams %s, want 2 full", got.CurrentTeams, got.Registration.Status)
	}
	// the failed approval rolled back with the counter
	c, _ := e.registrations.GetApplicant(ctx, tour.ID, charlie.ID, owner)
	if c.Status != models.ApplicantPending {
		t.Fatalf("charlie status = %s, want Pending", c.Status)
	}

	if _, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Delta")); !errors.Is(err, ErrTournamentFull) {
		t.Fatalf("submit while full = %v, want ErrTournamentFull", err)
	}

	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, alpha.ID, models.ApplicantRejected, owner); err != nil {
		t.Fatalf("reject approved team: %v", err)
	}
	got, _ = e.tournaments.GetTournamentByID(ctx, tour.ID)
	if got.CurrentTeams != 1 || got.Registration.Status != models.RegistrationOpen {
		t.Fatalf("after reversal = %d teams %s, want 1 open", got.CurrentTeams, got.Registration.Status)
	}
	if e.publisher.count(live.EventRegistrationUpdated) != 3 {
		t.Errorf("registration events = %d, want 3", e.publisher.count(live.EventRegistrationUpdated))
	}
}

func TestCapacityChangesKeepManuallyClosedTournamentClosed(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, func(in *TournamentInput) { in.MaxTeams = 2 })
	ctx := context.Background()

	alpha := submit(t, e, tour.ID, "Alpha")
	bravo := submit(t, e, tour.ID, "Bravo")
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, alpha.ID, models.ApplicantApproved, owner); err != nil {
		t.Fatalf("approve alpha: %v", err)
	}
	if _, err := e.tournaments.SetRegistrationStatus(ctx, tour.ID, models.RegistrationClosed, owner); err != nil {
		t.Fatalf("close: %v", err)
	}

	// the last seat is taken while closed
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, bravo.ID, models.ApplicantApproved, owner); err != nil {
		t.Fatalf("approve bravo: %v", err)
	}
	got, _ := e.tournaments.GetTournamentByID(ctx, tour.ID)
	if got.CurrentTeams != 2 || got.Registration.Status != models.RegistrationClosed {
		t.Fatalf("after last approval = %d teams %s, want 2 closed", got.CurrentTeams, got.Registration.Status)
	}

	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, alpha.ID, models.ApplicantRejected, owner); err != nil {
		t.Fatalf("reject alpha: %v", err)
	}
	got, _ = e.tournaments.GetTournamentByID(ctx, tour.ID)
	if got.CurrentTeams != 1 || got.Registration.Status != models.RegistrationClosed {
		t.Fatalf("after reversal = %d teams %s, want 1 closed", got.CurrentTeams, got.Registration.Status)
	}

	if _, err := e.registrations.SubmitApplication(ctx, tour.ID, e.player(t), applicationFor("Charlie")); !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("submit after close = %v, want ErrRegistrationClosed", err)
	}
}

func TestConcurrentApprovalsNeverOverfill(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, func(in *TournamentInput) { in.MaxTeams = 3 })
	ctx := context.Background()

	var applicants []*models.Applicant
	for _, team := range []string{"A", "B", "C", "D", "E", "F"} {
		applicants = append(applicants, submit(t, e, tour.ID, "Team "+team))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		full   int
		others []error
	)
	for _, a := range applicants {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, id, models.ApplicantApproved, owner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrTournamentFull):
				full++
			default:
				others = append(others, err)
			}
		}(a.ID)
	}
	wg.Wait()

	if ok != 3 || full != 3 || len(others) != 0 {
		t.Fatalf("ok=%d full=%d others=%v, want 3 3 none", ok, full, others)
	}
}

func TestApplicantTransitions(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()
	a := submit(t, e, tour.ID, "Alpha")

	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantPending, owner); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("to Pending = %v, want ErrInvalidStatusTransition", err)
	}
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, "Waitlisted", owner); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("unknown status = %v, want validation error", err)
	}
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantApproved, e.organizer(t)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger = %v, want ErrForbidden", err)
	}

	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantRejected, owner); err != nil {
		t.Fatal(err)
	}
	// same state is a no-op
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantRejected, owner); err != nil {
		t.Fatal(err)
	}
	if n := e.publisher.count(live.EventApplicantStatusChanged); n != 1 {
		t.Fatalf("status events = %d, want 1", n)
	}

	approved, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantApproved, owner)
	if err != nil || approved.Status != models.ApplicantApproved {
		t.Fatalf("Rejected -> Approved = %v, %v", approved, err)
	}
	if got, _ := e.tournaments.GetTournamentByID(ctx, tour.ID); got.CurrentTeams != 1 {
		t.Fatalf("CurrentTeams = %d, want 1", got.CurrentTeams)
	}

	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, uuid.New(), models.ApplicantApproved, owner); !errors.Is(err, ErrApplicantNotFound) {
		t.Fatalf("unknown applicant = %v, want ErrApplicantNotFound", err)
	}
}

func TestApprovedTeamsHidePaymentDetails(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	a := submit(t, e, tour.ID, "Alpha")
	submit(t, e, tour.ID, "Bravo")
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantApproved, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := e.registrations.SetPaymentVerified(ctx, tour.ID, a.ID, true, owner); err != nil {
		t.Fatal(err)
	}

	teams, err := e.registrations.ListApprovedTeams(ctx, tour.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 1 {
		t.Fatalf("approved teams = %d, want 1", len(teams))
	}
	p := teams[0].Payment
	if p.ProofKey != "" || p.EsewaNumber != "" || !p.Verified || teams[0].Captain.Phone != "" {
		t.Fatalf("approved roster leaks payment details: %+v phone=%q", p, teams[0].Captain.Phone)
	}
}

func TestListApplicantsFilters(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	a := submit(t, e, tour.ID, "Alpha")
	submit(t, e, tour.ID, "Bravo")
	if _, err := e.registrations.UpdateApplicantStatus(ctx, tour.ID, a.ID, models.ApplicantRejected, owner); err != nil {
		t.Fatal(err)
	}

	pending := models.ApplicantPending
	list, err := e.registrations.ListApplicants(ctx, tour.ID, models.ApplicantFilter{Status: &pending}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].TeamName != "Bravo" {
		t.Fatalf("pending = %+v", list)
	}
	if _, err := e.registrations.ListApplicants(ctx, tour.ID, models.ApplicantFilter{}, e.player(t)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("player listing = %v, want ErrForbidden", err)
	}
}

func TestExportApplicants(t *testing.T) {
	e := newEnv(t)
	owner := e.organizer(t)
	tour := e.tournament(t, owner, nil)
	ctx := context.Background()

	submit(t, e, tour.ID, "Alpha")
	submit(t, e, tour.ID, "Bravo")

	export, err := e.registrations.ExportApplicants(ctx, tour.ID, owner)
	if err != nil {
		t.Fatal(err)
	}
	if export.Filename != tour.Slug+"-applicants.xlsx" {
		t.Errorf("Filename = %q", export.Filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(export.Data))
	if err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Applicants")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}

	if _, err := e.registrations.ExportApplicants(ctx, tour.ID, e.player(t)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("player export = %v, want ErrForbidden", err)
	}
}

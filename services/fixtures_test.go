package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/repositories"
	"github.com/letsplay/tournament-hub/storage"
	"github.com/letsplay/tournament-hub/utils"
)

func init() {
	utils.BcryptCost = 4
}

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string]string)}
}

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, r io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	u.objects[key] = string(data)
	u.mu.Unlock()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	delete(u.objects, key)
	u.mu.Unlock()
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}

type publishedEvent struct {
	TournamentID uuid.UUID
	Type         string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishTournament(id uuid.UUID, eventType string, _ interface{}) {
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{TournamentID: id, Type: eventType})
	p.mu.Unlock()
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// env wires every service against one in-memory store.
type env struct {
	store         *repositories.MemoryStore
	users         repositories.UserRepository
	organizers    repositories.OrganizerRepository
	tournamentsDB repositories.TournamentRepository
	applicantsDB  repositories.ApplicantRepository

	clock     *clock
	mailer    *fakeMailer
	uploader  *fakeUploader
	publisher *recordingPublisher

	auth          AuthService
	otp           *OTPService
	tournaments   TournamentService
	registrations RegistrationService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := repositories.NewMemoryStore()
	e := &env{
		store:         store,
		users:         repositories.NewMemoryUserRepository(store),
		organizers:    repositories.NewMemoryOrganizerRepository(store),
		tournamentsDB: repositories.NewMemoryTournamentRepository(store),
		applicantsDB:  repositories.NewMemoryApplicantRepository(store),
		clock:         newClock(testNow),
		mailer:        &fakeMailer{},
		uploader:      newFakeUploader(),
		publisher:     &recordingPublisher{},
	}
	logger := discardLogger()
	email := NewEmailService(e.mailer)
	e.auth = NewAuthService(e.users, e.organizers, email, logger)
	e.otp = NewOTPService(e.users, email, OTPConfig{}, logger).WithClock(e.clock.Now)
	e.tournaments = NewTournamentService(e.tournamentsDB, e.applicantsDB, e.users, e.organizers, e.publisher, logger, e.clock.Now)
	e.registrations = NewRegistrationService(e.tournaments, e.tournamentsDB, e.applicantsDB, store.Transactor(), e.uploader, e.publisher, logger)
	return e
}

func (e *env) organizer(t *testing.T) *models.Identity {
	t.Helper()
	o := &models.Organizer{Name: "Org", Email: uuid.NewString() + "@org.test", PasswordHash: "x", ContactNumber: "9800000000"}
	if err := e.organizers.Create(context.Background(), o); err != nil {
		t.Fatalf("create organizer: %v", err)
	}
	return &models.Identity{ID: o.ID, Kind: models.PrincipalOrganizer, Name: o.Name, Email: o.Email}
}

func (e *env) player(t *testing.T) *models.Identity {
	t.Helper()
	u := &models.User{Name: "Player", Email: uuid.NewString() + "@player.test", PasswordHash: "x"}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &models.Identity{ID: u.ID, Kind: models.PrincipalUser, Name: u.Name, Email: u.Email}
}

// validTournamentInput: registration runs from testNow-1h to testNow+5d, the event starts at testNow+10d.
func validTournamentInput() TournamentInput {
	return TournamentInput{
		Title:             "Winter Valorant Cup",
		Game:              models.GameValorant,
		Description:       "5v5 single elimination",
		StartDate:         testNow.Add(10 * 24 * time.Hour),
		EndDate:           testNow.Add(12 * 24 * time.Hour),
		PrizePool:         models.PrizePool{Total: 1000, Currency: "NPR", Distribution: []models.PrizeShare{{Position: 1, Amount: 700}, {Position: 2, Amount: 300}}},
		EntryFee:          models.EntryFee{Amount: 500, Currency: "NPR", PerTeam: true},
		MaxTeams:          8,
		RegistrationStart: testNow.Add(-time.Hour),
		RegistrationEnd:   testNow.Add(5 * 24 * time.Hour),
		Format:            models.FormatSingleElimination,
		MinTeamSize:       1,
		MaxTeamSize:       5,
		Platforms:         []string{"PC"},
		Regions:           []string{"South Asia"},
	}
}

func (e *env) tournament(t *testing.T, owner *models.Identity, mutate func(*TournamentInput)) *models.Tournament {
	t.Helper()
	input := validTournamentInput()
	if mutate != nil {
		mutate(&input)
	}
	tour, err := e.tournaments.CreateTournament(context.Background(), owner, input)
	if err != nil {
		t.Fatalf("CreateTournament: %v", err)
	}
	return tour
}

func applicationFor(team string) ApplicationInput {
	return ApplicationInput{
		TeamName:          team,
		CaptainName:       "Captain " + team,
		CaptainEmail:      strings.ToLower(team) + "@team.test",
		CaptainPhone:      "9811111111",
		EsewaNumber:       "9811111111",
		EsewaName:         "Captain " + team,
		Members:           []models.TeamMember{{Name: "Second"}},
		PaymentScreenshot: &FileInput{Reader: strings.NewReader("png-bytes"), ContentType: "image/png"},
	}
}

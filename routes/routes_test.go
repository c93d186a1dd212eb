package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/letsplay/tournament-hub/handlers"
	"github.com/letsplay/tournament-hub/live"
	"github.com/letsplay/tournament-hub/middleware"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/ratelimit"
	"github.com/letsplay/tournament-hub/repositories"
	"github.com/letsplay/tournament-hub/services"
	"github.com/letsplay/tournament-hub/storage"
	"github.com/letsplay/tournament-hub/utils"
)

func init() {
	utils.BcryptCost = 4
}

type inbox struct {
	mu     sync.Mutex
	bodies []string
}

func (m *inbox) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	m.bodies = append(m.bodies, body)
	m.mu.Unlock()
	return nil
}

var otpPattern = regexp.MustCompile(`<b>(\d{6})</b>`)

func (m *inbox) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.bodies) - 1; i >= 0; i-- {
		if match := otpPattern.FindStringSubmatch(m.bodies[i]); match != nil {
			return match[1]
		}
	}
	t.Fatal("no code in the mailbox")
	return ""
}

type testAPI struct {
	server     *httptest.Server
	mail       *inbox
	organizers repositories.OrganizerRepository
	tokens     *services.TokenService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repositories.NewMemoryStore()
	users := repositories.NewMemoryUserRepository(store)
	organizers := repositories.NewMemoryOrganizerRepository(store)
	tournamentRepo := repositories.NewMemoryTournamentRepository(store)
	applicantRepo := repositories.NewMemoryApplicantRepository(store)

	uploadDir := t.TempDir()
	uploader, err := storage.NewLocalUploader(uploadDir, "/uploads")
	if err != nil {
		t.Fatal(err)
	}

	mail := &inbox{}
	email := services.NewEmailService(mail)
	hub := live.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	tokens := services.NewTokenService("routes-secret", time.Hour)
	authService := services.NewAuthService(users, organizers, email, logger)
	otpService := services.NewOTPService(users, email, services.OTPConfig{}, logger)
	organizerService := services.NewOrganizerService(organizers, uploader, logger)
	tournamentService := services.NewTournamentService(tournamentRepo, applicantRepo, users, organizers, hub, logger, time.Now)
	registrationService := services.NewRegistrationService(tournamentService, tournamentRepo, applicantRepo, store.Transactor(), uploader, hub, logger)

	responder := handlers.NewResponder(logger)
	cookies := handlers.NewSessionCookies(tokens, false)

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:       handlers.NewAuthHandler(responder, cookies, authService, otpService),
		User:       handlers.NewUserHandler(responder, authService),
		Organizer:  handlers.NewOrganizerHandler(responder, cookies, organizerService),
		Tournament: handlers.NewTournamentHandler(responder, tournamentService),
		Applicant:  handlers.NewApplicantHandler(responder, registrationService),
		Admin:      handlers.NewAdminHandler(responder, organizerService, services.NewAdminService(users)),
		WebSocket:  handlers.NewWebSocketHandler(responder, hub, tournamentService, nil, logger),
	}, Dependencies{
		Logger:            logger,
		Responder:         responder,
		Authenticator:     middleware.NewAuthenticator(tokens, authService, responder.Error),
		Gates:             middleware.NewGates(tournamentService, registrationService, responder.Error),
		OTPLimiter:        ratelimit.NewMemoryLimiter(1, 2, time.Minute),
		OTPAttemptLimiter: ratelimit.NewMemoryLimiter(1, 3, time.Minute),
		UploadDir:         uploadDir,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testAPI{server: server, mail: mail, organizers: organizers, tokens: tokens}
}

// client keeps its own session cookie.
func (api *testAPI) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func (api *testAPI) organizerClient(t *testing.T) *http.Client {
	t.Helper()
	o := &models.Organizer{Name: "Org", Email: "org@example.com", PasswordHash: "x", ContactNumber: "9800000000"}
	if err := api.organizers.Create(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	token, _, err := api.tokens.Issue(o.ID, models.PrincipalOrganizer)
	if err != nil {
		t.Fatal(err)
	}
	c := api.client(t)
	req, _ := http.NewRequest(http.MethodGet, api.server.URL, nil)
	c.Jar.SetCookies(req.URL, []*http.Cookie{{Name: middleware.TokenCookieName, Value: token, Path: "/"}})
	return c
}

type apiResponse struct {
	Status int
	Body   map[string]interface{}
}

func (api *testAPI) send(t *testing.T, c *http.Client, method, path string, body interface{}) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		js, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(js)
	}
	req, err := http.NewRequest(method, api.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return api.do(t, c, req)
}

func (api *testAPI) do(t *testing.T, c *http.Client, req *http.Request) apiResponse {
	t.Helper()
	if c == nil {
		c = http.DefaultClient
	}
	res, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	out := apiResponse{Status: res.StatusCode}
	_ = json.NewDecoder(res.Body).Decode(&out.Body)
	return out
}

func TestAccountVerificationFlow(t *testing.T) {
	api := newTestAPI(t)
	player := api.client(t)

	res := api.send(t, player, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Sam", "email": "sam@example.com", "password": "secret1",
	})
	if res.Status != http.StatusCreated || res.Body["success"] != true {
		t.Fatalf("register: %+v", res)
	}
	if res := api.send(t, player, http.MethodGet, "/api/auth/is-auth", nil); res.Status != http.StatusOK {
		t.Fatalf("is-auth after register: %+v", res)
	}

	if res := api.send(t, player, http.MethodPost, "/api/auth/send-verify-otp", nil); res.Status != http.StatusOK {
		t.Fatalf("send-verify-otp: %+v", res)
	}
	if res := api.send(t, player, http.MethodPost, "/api/auth/verify-account", map[string]string{"otp": "000000"}); res.Status != http.StatusUnprocessableEntity {
		t.Fatalf("wrong code: %+v", res)
	}
	code := api.mail.lastCode(t)
	if res := api.send(t, player, http.MethodPost, "/api/auth/verify-account", map[string]string{"otp": code}); res.Status != http.StatusOK {
		t.Fatalf("verify-account: %+v", res)
	}
	if res := api.send(t, player, http.MethodPost, "/api/auth/verify-account", map[string]string{"otp": code}); res.Status != http.StatusUnprocessableEntity || res.Body["kind"] != "invalid_code" {
		t.Fatalf("second verify: %+v", res)
	}

	res = api.send(t, player, http.MethodGet, "/api/user/data", nil)
	data, _ := res.Body["userData"].(map[string]interface{})
	if res.Status != http.StatusOK || data["isAccountVerified"] != true {
		t.Fatalf("user data: %+v", res)
	}

	if res := api.send(t, player, http.MethodPost, "/api/auth/logout", nil); res.Status != http.StatusOK {
		t.Fatalf("logout: %+v", res)
	}
	if res := api.send(t, player, http.MethodGet, "/api/auth/is-auth", nil); res.Status != http.StatusUnauthorized {
		t.Fatalf("is-auth after logout: %+v", res)
	}
}

func TestPasswordResetFlowIsRateLimited(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	api.send(t, c, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Sam", "email": "sam@example.com", "password": "secret1",
	})

	if res := api.send(t, c, http.MethodPost, "/api/auth/send-reset-otp", map[string]string{"email": "sam@example.com"}); res.Status != http.StatusOK {
		t.Fatalf("send-reset-otp: %+v", res)
	}
	code := api.mail.lastCode(t)
	res := api.send(t, c, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": "sam@example.com", "otp": code, "newPassword": "newsecret",
	})
	if res.Status != http.StatusOK {
		t.Fatalf("reset-password: %+v", res)
	}
	if res := api.send(t, c, http.MethodPost, "/api/auth/login", map[string]string{"email": "sam@example.com", "password": "newsecret"}); res.Status != http.StatusOK {
		t.Fatalf("login with new password: %+v", res)
	}

	// burst of 2 per client address
	api.send(t, c, http.MethodPost, "/api/auth/send-reset-otp", map[string]string{"email": "sam@example.com"})
	res = api.send(t, c, http.MethodPost, "/api/auth/send-reset-otp", map[string]string{"email": "sam@example.com"})
	if res.Status != http.StatusTooManyRequests || res.Body["kind"] != "rate_limited" {
		t.Fatalf("third send-reset-otp: %+v", res)
	}
}

func TestCodeGuessesAreLimitedPerAccount(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)
	for _, email := range []string{"sam@example.com", "kim@example.com"} {
		api.send(t, c, http.MethodPost, "/api/auth/register", map[string]string{
			"name": "P", "email": email, "password": "secret1",
		})
	}
	api.send(t, nil, http.MethodPost, "/api/auth/send-reset-otp", map[string]string{"email": "sam@example.com"})

	guess := func(email string) apiResponse {
		return api.send(t, nil, http.MethodPost, "/api/auth/reset-password", map[string]string{
			"email": email, "otp": "000000", "newPassword": "newsecret",
		})
	}
	// burst of 3 per email
	for i := 0; i < 3; i++ {
		if res := guess("sam@example.com"); res.Status != http.StatusUnprocessableEntity {
			t.Fatalf("guess %d: %+v", i+1, res)
		}
	}
	if res := guess(" SAM@example.com"); res.Status != http.StatusTooManyRequests || res.Body["kind"] != "rate_limited" {
		t.Fatalf("fourth guess: %+v", res)
	}
	// the correct code is refused too once the budget is spent
	code := api.mail.lastCode(t)
	res := api.send(t, nil, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": "sam@example.com", "otp": code, "newPassword": "newsecret",
	})
	if res.Status != http.StatusTooManyRequests {
		t.Fatalf("reset after limit: %+v", res)
	}
	// another account from the same address keeps its own budget
	if res := guess("kim@example.com"); res.Status != http.StatusUnprocessableEntity {
		t.Fatalf("other account: %+v", res)
	}

	player := registerPlayer(t, api, "lee@example.com")
	for i := 0; i < 3; i++ {
		api.send(t, player, http.MethodPost, "/api/auth/verify-account", map[string]string{"otp": "000000"})
	}
	if res := api.send(t, player, http.MethodPost, "/api/auth/verify-account", map[string]string{"otp": "000000"}); res.Status != http.StatusTooManyRequests {
		t.Fatalf("fourth verify-account: %+v", res)
	}
}

func tournamentBody(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"title":              "Kathmandu Dota Open",
		"game":               "Dota 2",
		"description":        "Open qualifier",
		"start_date":         now.Add(10 * 24 * time.Hour),
		"end_date":           now.Add(11 * 24 * time.Hour),
		"max_teams":          2,
		"registration_start": now.Add(-time.Hour),
		"registration_end":   now.Add(5 * 24 * time.Hour),
		"format":             "single_elimination",
		"min_team_size":      1,
		"max_team_size":      5,
		"prize_pool": map[string]interface{}{
			"total": 1000, "currency": "NPR",
			"distribution": []map[string]interface{}{{"position": 1, "amount": 1000}},
		},
	}
}

func (api *testAPI) apply(t *testing.T, c *http.Client, tournamentID, team string) apiResponse {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"teamName": team, "name": "Captain", "email": "captain@example.com", "phone": "9800000000",
		"esewaNumber": "9800000000", "esewaName": "Captain", "members": `[{"name":"Second"}]`,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="paymentScreenshot"; filename="proof.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("\x89PNG fake"))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/tournaments/"+tournamentID+"/applicants", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return api.do(t, c, req)
}

func registerPlayer(t *testing.T, api *testAPI, email string) *http.Client {
	t.Helper()
	c := api.client(t)
	res := api.send(t, c, http.MethodPost, "/api/auth/register", map[string]string{"name": "P", "email": email, "password": "secret1"})
	if res.Status != http.StatusCreated {
		t.Fatalf("register %s: %+v", email, res)
	}
	return c
}

func TestTournamentRegistrationFlow(t *testing.T) {
	api := newTestAPI(t)
	org := api.organizerClient(t)
	alpha := registerPlayer(t, api, "alpha@example.com")
	bravo := registerPlayer(t, api, "bravo@example.com")

	if res := api.send(t, alpha, http.MethodPost, "/api/tournaments", tournamentBody(time.Now())); res.Status != http.StatusForbidden {
		t.Fatalf("player creating a tournament: %+v", res)
	}
	res := api.send(t, org, http.MethodPost, "/api/tournaments", tournamentBody(time.Now()))
	if res.Status != http.StatusCreated {
		t.Fatalf("create tournament: %+v", res)
	}
	tournament := res.Body["tournament"].(map[string]interface{})
	id := tournament["id"].(string)
	if tournament["slug"] != "kathmandu-dota-open" {
		t.Fatalf("slug = %v", tournament["slug"])
	}

	bad := tournamentBody(time.Now())
	bad["end_date"] = time.Now().Add(9 * 24 * time.Hour)
	res = api.send(t, org, http.MethodPost, "/api/tournaments", bad)
	if res.Status != http.StatusBadRequest || res.Body["kind"] != "validation_error" {
		t.Fatalf("invalid dates: %+v", res)
	}

	if res := api.send(t, alpha, http.MethodGet, "/api/tournaments/"+id+"/applicants", nil); res.Status != http.StatusForbidden {
		t.Fatalf("player listing applicants: %+v", res)
	}

	first := api.apply(t, alpha, id, "Alpha")
	if first.Status != http.StatusCreated {
		t.Fatalf("alpha applies: %+v", first)
	}
	applicantID := first.Body["applicant"].(map[string]interface{})["id"].(string)
	if res := api.apply(t, alpha, id, "Alpha Again"); res.Status != http.StatusConflict {
		t.Fatalf("second application by the same captain: %+v", res)
	}
	if res := api.apply(t, bravo, id, "Bravo"); res.Status != http.StatusCreated {
		t.Fatalf("bravo applies: %+v", res)
	}

	if res := api.send(t, alpha, http.MethodGet, "/api/tournaments/"+id+"/teams", nil); res.Status != http.StatusForbidden {
		t.Fatalf("pending team reading the roster: %+v", res)
	}
	res = api.send(t, org, http.MethodPatch, "/api/tournaments/"+id+"/applicants/"+applicantID+"/status", map[string]string{"status": "Approved"})
	if res.Status != http.StatusOK {
		t.Fatalf("approve: %+v", res)
	}
	if res := api.send(t, alpha, http.MethodGet, "/api/tournaments/"+id+"/teams", nil); res.Status != http.StatusOK {
		t.Fatalf("approved team reading the roster: %+v", res)
	}
	res = api.send(t, org, http.MethodPatch, "/api/tournaments/"+id+"/applicants/"+applicantID+"/status", map[string]string{"status": "Pending"})
	if res.Status != http.StatusConflict || res.Body["kind"] != "invalid_transition" {
		t.Fatalf("back to pending: %+v", res)
	}

	res = api.send(t, nil, http.MethodGet, "/api/tournaments/kathmandu-dota-open", nil)
	details, _ := res.Body["tournament"].(map[string]interface{})
	if res.Status != http.StatusOK || details["approved_teams"] != float64(1) || details["pending_applications"] != float64(1) {
		t.Fatalf("details: %+v", res)
	}

	res = api.send(t, org, http.MethodPatch, "/api/tournaments/"+id+"/registration", map[string]string{"status": "closed"})
	if res.Status != http.StatusOK {
		t.Fatalf("close registration: %+v", res)
	}
	charlie := registerPlayer(t, api, "charlie@example.com")
	if res := api.apply(t, charlie, id, "Charlie"); res.Status != http.StatusLocked {
		t.Fatalf("apply after close: %+v", res)
	}

	req, _ := http.NewRequest(http.MethodGet, api.server.URL+"/api/tournaments/"+id+"/applicants/export", nil)
	exportRes, err := org.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer exportRes.Body.Close()
	if exportRes.StatusCode != http.StatusOK || exportRes.Header.Get("Content-Disposition") == "" {
		t.Fatalf("export: status=%d disposition=%q", exportRes.StatusCode, exportRes.Header.Get("Content-Disposition"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/health", "/metrics"} {
		res, err := http.Get(api.server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", path, res.StatusCode)
		}
	}
}

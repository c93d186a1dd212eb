package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/letsplay/tournament-hub/handlers"
	"github.com/letsplay/tournament-hub/middleware"
	"github.com/letsplay/tournament-hub/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	User       *handlers.UserHandler
	Organizer  *handlers.OrganizerHandler
	Tournament *handlers.TournamentHandler
	Applicant  *handlers.ApplicantHandler
	Admin      *handlers.AdminHandler
	WebSocket  *handlers.WebSocketHandler
}

type Dependencies struct {
	Logger        *slog.Logger
	Responder     *handlers.Responder
	Authenticator *middleware.Authenticator
	Gates         *middleware.Gates
	OTPLimiter    ratelimit.Limiter
	// OTPAttemptLimiter caps code guesses per account.
	OTPAttemptLimiter ratelimit.Limiter
	AllowedOrigins    []string
	// UploadDir is served under /uploads when files are stored on local disk.
	UploadDir string
}

func SetupRoutes(router chi.Router, h Handlers, deps Dependencies) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if deps.UploadDir != "" {
		router.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir))))
	}

	router.Get("/ws/tournaments/{id}", h.WebSocket.ServeWs)

	auth := deps.Authenticator
	gates := deps.Gates
	otpLimit := func(scope string) func(http.Handler) http.Handler {
		return middleware.RateLimit(deps.OTPLimiter, scope, deps.Logger, deps.Responder.Error)
	}
	attemptLimit := func(scope string, key middleware.KeyFunc) func(http.Handler) http.Handler {
		return middleware.RateLimitBy(deps.OTPAttemptLimiter, scope, key, deps.Logger, deps.Responder.Error)
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/logout", h.Auth.Logout)
			r.With(otpLimit("send-reset-otp")).Post("/send-reset-otp", h.Auth.SendResetOTP)
			r.With(attemptLimit("reset-password", middleware.ByJSONField("email"))).Post("/reset-password", h.Auth.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Get("/is-auth", h.Auth.IsAuthenticated)
				r.With(otpLimit("send-verify-otp")).Post("/send-verify-otp", h.Auth.SendVerifyOTP)
				r.With(attemptLimit("verify-account", middleware.ByIdentity)).Post("/verify-account", h.Auth.VerifyAccount)
			})
		})

		r.With(auth.Authenticate).Get("/user/data", h.User.GetUserData)

		r.Route("/organizers", func(r chi.Router) {
			r.Post("/register", h.Organizer.Register)
			r.Post("/login", h.Organizer.Login)
			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate, auth.RequireOrganizer)
				r.Get("/profile", h.Organizer.GetProfile)
				r.Put("/profile", h.Organizer.UpdateProfile)
			})
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", h.Tournament.ListTournaments)
			r.With(auth.Authenticate, gates.RequireTournamentCreator).Post("/", h.Tournament.CreateTournament)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Tournament.GetTournament)
				r.With(gates.RequireRegistrationWindow, auth.Authenticate).Post("/applicants", h.Applicant.SubmitApplication)
				r.With(auth.Authenticate, gates.RequireTeamMember).Get("/teams", h.Applicant.ListTeams)

				r.Group(func(r chi.Router) {
					r.Use(auth.Authenticate, gates.RequireTournamentOrganizer)
					r.Patch("/", h.Tournament.EditTournament)
					r.Patch("/registration", h.Tournament.SetRegistrationStatus)
					r.Post("/organizers", h.Tournament.AddOrganizer)
					r.Delete("/organizers/{userID}", h.Tournament.RemoveOrganizer)
					r.Get("/applicants", h.Applicant.ListApplicants)
					r.Get("/applicants/export", h.Applicant.ExportApplicants)
					r.Get("/applicants/{applicantID}", h.Applicant.GetApplicant)
					r.Patch("/applicants/{applicantID}/status", h.Applicant.UpdateApplicantStatus)
					r.Patch("/applicants/{applicantID}/payment", h.Applicant.SetPaymentVerified)
				})
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Authenticate, gates.RequireAdmin)
			r.Get("/organizers", h.Admin.ListOrganizers)
			r.Get("/users", h.Admin.ListUsers)
		})
	})
}

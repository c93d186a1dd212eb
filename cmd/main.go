package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/letsplay/tournament-hub/config"
	"github.com/letsplay/tournament-hub/db"
	_ "github.com/letsplay/tournament-hub/docs"
	"github.com/letsplay/tournament-hub/handlers"
	"github.com/letsplay/tournament-hub/live"
	"github.com/letsplay/tournament-hub/middleware"
	"github.com/letsplay/tournament-hub/ratelimit"
	"github.com/letsplay/tournament-hub/repositories"
	api "github.com/letsplay/tournament-hub/routes"
	"github.com/letsplay/tournament-hub/services"
	"github.com/letsplay/tournament-hub/storage"
	"github.com/redis/go-redis/v9"
)

type repositorySet struct {
	users       repositories.UserRepository
	organizers  repositories.OrganizerRepository
	tournaments repositories.TournamentRepository
	applicants  repositories.ApplicantRepository
	transactor  repositories.Transactor
}

// @title Tournament Hub API
// @version 1.0
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("env", cfg.AppEnv),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("upload_driver", cfg.UploadDriver))

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Хранилище
	var repos repositorySet
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := repositories.NewMemoryStore()
		repos = repositorySet{
			users:       repositories.NewMemoryUserRepository(store),
			organizers:  repositories.NewMemoryOrganizerRepository(store),
			tournaments: repositories.NewMemoryTournamentRepository(store),
			applicants:  repositories.NewMemoryApplicantRepository(store),
			transactor:  store.Transactor(),
		}
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer closeDB(dbConn, logger)
		if err := db.Migrate(appCtx, dbConn); err != nil {
			logger.Error("failed to apply database schema", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("database connection established")

		repos = repositorySet{
			users:       repositories.NewPostgresUserRepository(dbConn),
			organizers:  repositories.NewPostgresOrganizerRepository(dbConn),
			tournaments: repositories.NewPostgresTournamentRepository(dbConn),
			applicants:  repositories.NewPostgresApplicantRepository(dbConn),
			transactor:  repositories.NewPostgresTransactor(dbConn, logger),
		}
	}

	// Инициализация загрузчика файлов
	var uploader storage.FileUploader
	var uploadDir string
	switch cfg.UploadDriver {
	case config.UploadDriverLocal:
		uploader, err = storage.NewLocalUploader(cfg.UploadDir, cfg.PublicUploadURL)
		uploadDir = cfg.UploadDir
	default:
		uploader, err = storage.NewCloudflareR2Uploader(appCtx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
	}
	if err != nil {
		logger.Error("failed to initialize file uploader", slog.Any("error", err))
		os.Exit(1)
	}

	// Почта
	var mailer services.Mailer
	if cfg.MailEnabled() {
		mailer = services.NewSMTPMailer(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SenderEmail,
		})
	} else {
		mailer = services.NewLogMailer(logger)
		logger.Warn("SMTP is not configured, emails are written to the log")
	}
	emailService := services.NewEmailService(mailer)

	// Ограничение частоты отправки OTP
	var otpLimiter, attemptLimiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("failed to close redis client", slog.Any("error", err))
			}
		}()
		pingCtx, cancel := context.WithTimeout(appCtx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		otpLimiter = ratelimit.NewRedisLimiter(rdb, "otp", cfg.OTPRateLimit, time.Minute)
		attemptLimiter = ratelimit.NewRedisLimiter(rdb, "otp-attempt", cfg.OTPAttemptLimit, time.Minute)
		logger.Info("redis rate limiter enabled", slog.String("addr", cfg.RedisAddr))
	} else {
		otpLimiter = ratelimit.NewMemoryLimiter(cfg.OTPRateLimit, cfg.OTPRateLimit, time.Minute)
		attemptLimiter = ratelimit.NewMemoryLimiter(cfg.OTPAttemptLimit, cfg.OTPAttemptLimit, time.Minute)
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run(appCtx)

	// Инициализация сервисов
	tokenService := services.NewTokenService(cfg.JWTSecretKey, cfg.SessionTTL)
	authService := services.NewAuthService(repos.users, repos.organizers, emailService, logger)
	otpService := services.NewOTPService(repos.users, emailService, services.OTPConfig{
		VerifyTTL: cfg.VerifyOTPTTL,
		ResetTTL:  cfg.ResetOTPTTL,
	}, logger)
	organizerService := services.NewOrganizerService(repos.organizers, uploader, logger)
	adminService := services.NewAdminService(repos.users)
	tournamentService := services.NewTournamentService(repos.tournaments, repos.applicants, repos.users, repos.organizers, wsHub, logger, time.Now)
	registrationService := services.NewRegistrationService(tournamentService, repos.tournaments, repos.applicants, repos.transactor, uploader, wsHub, logger)

	// Планировщик закрытия регистрации
	scheduler, err := services.NewRegistrationScheduler(tournamentService, cfg.RegistrationSweepInterval, logger)
	if err != nil {
		logger.Error("failed to create registration scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop registration scheduler", slog.Any("error", err))
		}
	}()

	// Инициализация обработчиков HTTP
	responder := handlers.NewResponder(logger)
	cookies := handlers.NewSessionCookies(tokenService, cfg.IsProduction())

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:       handlers.NewAuthHandler(responder, cookies, authService, otpService),
		User:       handlers.NewUserHandler(responder, authService),
		Organizer:  handlers.NewOrganizerHandler(responder, cookies, organizerService),
		Tournament: handlers.NewTournamentHandler(responder, tournamentService),
		Applicant:  handlers.NewApplicantHandler(responder, registrationService),
		Admin:      handlers.NewAdminHandler(responder, organizerService, adminService),
		WebSocket:  handlers.NewWebSocketHandler(responder, wsHub, tournamentService, cfg.CORSAllowedOrigins, logger),
	}, api.Dependencies{
		Logger:            logger,
		Responder:         responder,
		Authenticator:     middleware.NewAuthenticator(tokenService, authService, responder.Error),
		Gates:             middleware.NewGates(tournamentService, registrationService, responder.Error),
		OTPLimiter:        otpLimiter,
		OTPAttemptLimiter: attemptLimiter,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		UploadDir:         uploadDir,
	})
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stopApp()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	stopApp()
	logger.Info("application exited")
}

func closeDB(dbConn *sql.DB, logger *slog.Logger) {
	if err := dbConn.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
		return
	}
	logger.Info("database connection closed")
}

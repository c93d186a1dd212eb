package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const DefaultRegistrationSweepInterval = time.Minute

// RegistrationScheduler periodically closes registration windows whose end date has passed.
type RegistrationScheduler struct {
	scheduler   gocron.Scheduler
	tournaments TournamentService
	logger      *slog.Logger
}

func NewRegistrationScheduler(tournaments TournamentService, interval time.Duration, logger *slog.Logger) (*RegistrationScheduler, error) {
	if interval <= 0 {
		interval = DefaultRegistrationSweepInterval
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	rs := &RegistrationScheduler{scheduler: sched, tournaments: tournaments, logger: logger}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(rs.sweep),
		gocron.WithName("close-expired-registrations"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to register registration sweep job: %w", err)
	}
	return rs, nil
}

func (rs *RegistrationScheduler) Start() {
	rs.logger.Info("registration scheduler started")
	rs.scheduler.Start()
}

func (rs *RegistrationScheduler) Shutdown() error {
	return rs.scheduler.Shutdown()
}

func (rs *RegistrationScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := rs.tournaments.CloseExpiredRegistrations(ctx, rs.tournaments.Now()); err != nil {
		rs.logger.Error("registration sweep failed", slog.Any("error", err))
	}
}

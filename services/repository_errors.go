package services

import (
	"errors"

	"github.com/letsplay/tournament-hub/repositories"
)

// handleRepositoryError переводит ошибки слоя хранения в ошибки сервисов.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrOrganizerNotFound):
		return ErrOrganizerNotFound
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrApplicantNotFound):
		return ErrApplicantNotFound
	case errors.Is(err, repositories.ErrUserEmailConflict):
		return ErrUserEmailConflict
	case errors.Is(err, repositories.ErrOrganizerEmailConflict):
		return ErrOrganizerEmailConflict
	case errors.Is(err, repositories.ErrTournamentSlugConflict):
		return ErrTournamentSlugConflict
	case errors.Is(err, repositories.ErrApplicantConflict):
		return ErrApplicationConflict
	case errors.Is(err, repositories.ErrTournamentVersionConflict):
		return ErrEditConflict
	case errors.Is(err, repositories.ErrTournamentCapacityReached):
		return ErrTournamentFull
	case errors.Is(err, repositories.ErrApplicantStatusChanged):
		return ErrConflict
	case errors.Is(err, repositories.ErrOTPNotConsumed):
		return ErrInvalidCode
	default:
		return err
	}
}

package services

import (
	"fmt"
	"math"
	"time"

	"github.com/letsplay/tournament-hub/models"
)

// validateTournament runs the shape checks first (all failures aggregated),
// then the document invariants in a fixed order, returning only the first one
// that fails.
func validateTournament(t *models.Tournament) error {
	if verr := validateTournamentShape(t); verr != nil {
		return verr
	}
	if verr := checkTournamentInvariants(t); verr != nil {
		return verr
	}
	return nil
}

func validateTournamentShape(t *models.Tournament) *ValidationError {
	verr := validateStruct(t)
	if verr == nil {
		verr = &ValidationError{}
	}

	seen := make(map[int]struct{}, len(t.PrizePool.Distribution))
	for i, share := range t.PrizePool.Distribution {
		if _, dup := seen[share.Position]; dup {
			verr.Add(fmt.Sprintf("prize_pool.distribution[%d].position", i), "must be unique")
		}
		seen[share.Position] = struct{}{}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// checkTournamentInvariants:
//  1. end_date > start_date
//  2. registration closes before start_date and opens before it closes
//  3. prize distribution sums to the total, compared in minor units
//  4. min_team_size <= max_team_size
//  5. current_teams <= max_teams
func checkTournamentInvariants(t *models.Tournament) *ValidationError {
	if !t.EndDate.After(t.StartDate) {
		return NewValidationError("end_date", "must be after start_date")
	}
	if !t.Registration.EndDate.Before(t.StartDate) {
		return NewValidationError("registration.end_date", "must be before start_date")
	}
	if !t.Registration.StartDate.Before(t.Registration.EndDate) {
		return NewValidationError("registration.start_date", "must be before registration.end_date")
	}
	if len(t.PrizePool.Distribution) > 0 {
		var sum int64
		for _, share := range t.PrizePool.Distribution {
			sum += toMinorUnits(share.Amount)
		}
		if total := toMinorUnits(t.PrizePool.Total); sum != total {
			return NewValidationError("prize_pool.distribution",
				fmt.Sprintf("amounts add up to %.2f but total is %.2f", float64(sum)/100, float64(total)/100))
		}
	}
	if t.MinTeamSize > t.MaxTeamSize {
		return NewValidationError("min_team_size", "must not exceed max_team_size")
	}
	if t.CurrentTeams > t.MaxTeams {
		return NewValidationError("max_teams", fmt.Sprintf("cannot be lower than the %d teams already approved", t.CurrentTeams))
	}
	return nil
}

func checkStartInFuture(t *models.Tournament, now time.Time) *ValidationError {
	if !t.StartDate.After(now) {
		return NewValidationError("start_date", "must be in the future")
	}
	return nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// deriveRegistrationStatus keeps the stored status consistent with capacity.
// A closed tournament stays closed; reaching max_teams means full; a full
// tournament with free seats reopens while its window is still running.
func deriveRegistrationStatus(t *models.Tournament, now time.Time) models.RegistrationStatus {
	status := t.Registration.Status
	switch {
	case status == models.RegistrationClosed:
		return status
	case t.CurrentTeams >= t.MaxTeams:
		return models.RegistrationFull
	case status == models.RegistrationFull && now.After(t.Registration.EndDate):
		return models.RegistrationClosed
	case status == models.RegistrationFull:
		return models.RegistrationOpen
	default:
		return status
	}
}

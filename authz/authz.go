// Package authz holds the access rules as pure functions of the request
// identity and the loaded resources. Nothing here touches storage.
package authz

import (
	"errors"
	"time"

	"github.com/letsplay/tournament-hub/models"
)

var (
	ErrForbidden          = errors.New("operation not allowed for the current user")
	ErrRegistrationClosed = errors.New("tournament registration is currently closed")
)

func IsAdmin(id *models.Identity) bool {
	return id != nil && id.IsAdmin
}

// CanCreateTournament: organizers and platform admins.
func CanCreateTournament(id *models.Identity) error {
	if id != nil && (id.IsOrganizer() || id.IsAdmin) {
		return nil
	}
	return ErrForbidden
}

// CanManageTournament passes for a listed organizer of t or an admin.
func CanManageTournament(id *models.Identity, t *models.Tournament) error {
	if id == nil || t == nil {
		return ErrForbidden
	}
	if id.IsAdmin || t.HasOrganizer(id.ID) {
		return nil
	}
	return ErrForbidden
}

// OrganizerRole returns the role of id inside t. Platform admins act as tournament admins.
func OrganizerRole(id *models.Identity, t *models.Tournament) (models.OrganizerRole, bool) {
	if id == nil || t == nil {
		return "", false
	}
	if role, ok := t.OrganizerRoleOf(id.ID); ok {
		return role, true
	}
	if id.IsAdmin {
		return models.OrganizerRoleAdmin, true
	}
	return "", false
}

// CanManageOrganizers requires the tournament admin role.
func CanManageOrganizers(id *models.Identity, t *models.Tournament) error {
	if role, ok := OrganizerRole(id, t); ok && role == models.OrganizerRoleAdmin {
		return nil
	}
	return ErrForbidden
}

// IsTeamMember passes when id is the captain or a listed member of any of the
// given teams, or an admin.
func IsTeamMember(id *models.Identity, applicants []models.Applicant) error {
	if id == nil {
		return ErrForbidden
	}
	if id.IsAdmin {
		return nil
	}
	for i := range applicants {
		if applicants[i].HasMember(id.ID) {
			return nil
		}
	}
	return ErrForbidden
}

// RegistrationWindowOpen: now must fall inside [start, end] of the registration window.
func RegistrationWindowOpen(t *models.Tournament, now time.Time) error {
	if t == nil {
		return ErrRegistrationClosed
	}
	w := t.Registration
	if now.Before(w.StartDate) || now.After(w.EndDate) {
		return ErrRegistrationClosed
	}
	return nil
}

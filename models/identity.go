package models

import "github.com/google/uuid"

// PrincipalKind — тип учётной записи, выпустившей сессию.
type PrincipalKind string

const (
	PrincipalUser      PrincipalKind = "user"
	PrincipalOrganizer PrincipalKind = "organizer"
)

// Identity is resolved once per request from the session token.
type Identity struct {
	ID      uuid.UUID     `json:"id"`
	Kind    PrincipalKind `json:"kind"`
	Name    string        `json:"name"`
	Email   string        `json:"email"`
	IsAdmin bool          `json:"is_admin"`
}

func (i Identity) IsOrganizer() bool {
	return i.Kind == PrincipalOrganizer
}

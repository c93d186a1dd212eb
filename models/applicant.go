package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicantStatus — статус заявки команды.
type ApplicantStatus string

const (
	ApplicantPending  ApplicantStatus = "Pending"
	ApplicantApproved ApplicantStatus = "Approved"
	ApplicantRejected ApplicantStatus = "Rejected"
)

func (s ApplicantStatus) Valid() bool {
	switch s {
	case ApplicantPending, ApplicantApproved, ApplicantRejected:
		return true
	}
	return false
}

type Captain struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Phone  string    `json:"phone"`
}

type TeamMember struct {
	Name       string     `json:"name" validate:"required,max=80"`
	Email      string     `json:"email,omitempty" validate:"omitempty,email"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	GameHandle string     `json:"game_handle,omitempty" validate:"max=80"`
}

type Payment struct {
	ProofKey    string `json:"-"`
	ProofURL    string `json:"proof_url,omitempty"`
	EsewaNumber string `json:"esewa_number"`
	EsewaName   string `json:"esewa_name"`
	Verified    bool   `json:"verified"`
}

// Applicant представляет заявку команды на турнир.
type Applicant struct {
	ID           uuid.UUID       `json:"id"`
	TournamentID uuid.UUID       `json:"tournament_id"`
	TeamName     string          `json:"team_name"`
	Captain      Captain         `json:"captain"`
	Members      []TeamMember    `json:"members"`
	Payment      Payment         `json:"payment"`
	Status       ApplicantStatus `json:"status"`
	AppliedAt    time.Time       `json:"applied_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasMember reports whether userID is the captain or a listed member.
func (a *Applicant) HasMember(userID uuid.UUID) bool {
	if a.Captain.UserID == userID {
		return true
	}
	for _, m := range a.Members {
		if m.UserID != nil && *m.UserID == userID {
			return true
		}
	}
	return false
}

type ApplicantFilter struct {
	Status *ApplicantStatus
	Search string
	Limit  int
	Offset int
}

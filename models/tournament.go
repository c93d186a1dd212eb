package models

import (
	"time"

	"github.com/google/uuid"
)

// Game — поддерживаемые игры.
type Game string

const (
	GameValorant        Game = "Valorant"
	GameLeagueOfLegends Game = "League of Legends"
	GameDota2           Game = "Dota 2"
	GameCSGO            Game = "CS:GO"
	GameFortnite        Game = "Fortnite"
)

var Games = []Game{GameValorant, GameLeagueOfLegends, GameDota2, GameCSGO, GameFortnite}

func (g Game) Valid() bool {
	for _, known := range Games {
		if g == known {
			return true
		}
	}
	return false
}

// TournamentFormat — формат проведения турнира.
type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatRoundRobin        TournamentFormat = "round_robin"
	FormatSwiss             TournamentFormat = "swiss"
	FormatCustom            TournamentFormat = "custom"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination, FormatRoundRobin, FormatSwiss, FormatCustom:
		return true
	}
	return false
}

// RegistrationStatus представляет состояние окна регистрации.
type RegistrationStatus string

const (
	RegistrationOpen   RegistrationStatus = "open"
	RegistrationClosed RegistrationStatus = "closed"
	RegistrationFull   RegistrationStatus = "full"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationOpen, RegistrationClosed, RegistrationFull:
		return true
	}
	return false
}

// OrganizerRole — роль организатора внутри конкретного турнира.
type OrganizerRole string

const (
	OrganizerRoleAdmin     OrganizerRole = "admin"
	OrganizerRoleModerator OrganizerRole = "moderator"
	OrganizerRoleObserver  OrganizerRole = "observer"
)

func (r OrganizerRole) Valid() bool {
	switch r {
	case OrganizerRoleAdmin, OrganizerRoleModerator, OrganizerRoleObserver:
		return true
	}
	return false
}

type PrizeShare struct {
	Position int     `json:"position" validate:"gte=1"`
	Amount   float64 `json:"amount" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3,uppercase"`
}

type PrizePool struct {
	Total        float64      `json:"total" validate:"gte=0"`
	Currency     string       `json:"currency" validate:"omitempty,len=3,uppercase"`
	Distribution []PrizeShare `json:"distribution" validate:"dive"`
}

type EntryFee struct {
	Amount   float64 `json:"amount" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3,uppercase"`
	PerTeam  bool    `json:"per_team"`
}

type RegistrationWindow struct {
	Status    RegistrationStatus `json:"status" validate:"required,registration_status"`
	StartDate time.Time          `json:"start_date" validate:"required"`
	EndDate   time.Time          `json:"end_date" validate:"required"`
}

type Rule struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

type TournamentOrganizer struct {
	UserID uuid.UUID     `json:"user_id" validate:"required"`
	Role   OrganizerRole `json:"role" validate:"required,organizer_role"`
}

// Tournament представляет турнир.
type Tournament struct {
	ID           uuid.UUID             `json:"id" db:"id"`
	Slug         string                `json:"slug" db:"slug"`
	Title        string                `json:"title" db:"title" validate:"required,max=120"`
	Game         Game                  `json:"game" db:"game" validate:"required,game"`
	Description  string                `json:"description" db:"description" validate:"required,max=2000"`
	StartDate    time.Time             `json:"start_date" db:"start_date" validate:"required"`
	EndDate      time.Time             `json:"end_date" db:"end_date" validate:"required"`
	PrizePool    PrizePool             `json:"prize_pool" db:"prize_pool"`
	EntryFee     EntryFee              `json:"entry_fee" db:"entry_fee"`
	MaxTeams     int                   `json:"max_teams" db:"max_teams" validate:"gte=1,lte=1000"`
	CurrentTeams int                   `json:"current_teams" db:"current_teams" validate:"gte=0"`
	Registration RegistrationWindow    `json:"registration" db:"-"`
	Rules        []Rule                `json:"rules" db:"rules" validate:"dive"`
	Format       TournamentFormat      `json:"format" db:"format" validate:"required,tournament_format"`
	Organizers   []TournamentOrganizer `json:"organizers" db:"organizers" validate:"min=1,dive"`
	MinTeamSize  int                   `json:"min_team_size" db:"min_team_size" validate:"gte=1"`
	MaxTeamSize  int                   `json:"max_team_size" db:"max_team_size" validate:"gte=1"`
	Platforms    []string              `json:"platforms" db:"platforms" validate:"dive,required,max=40"`
	Regions      []string              `json:"regions" db:"regions" validate:"dive,required,max=40"`
	Version      int                   `json:"version" db:"version"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at" db:"updated_at"`
}

// HasOrganizer reports whether userID is listed among the tournament organizers.
func (t *Tournament) HasOrganizer(userID uuid.UUID) bool {
	_, ok := t.OrganizerRoleOf(userID)
	return ok
}

func (t *Tournament) OrganizerRoleOf(userID uuid.UUID) (OrganizerRole, bool) {
	for _, o := range t.Organizers {
		if o.UserID == userID {
			return o.Role, true
		}
	}
	return "", false
}

// SeatsLeft is never negative.
func (t *Tournament) SeatsLeft() int {
	if t.CurrentTeams >= t.MaxTeams {
		return 0
	}
	return t.MaxTeams - t.CurrentTeams
}

// TournamentUpdate — частичное обновление: nil означает «поле не трогаем».
type TournamentUpdate struct {
	Title             *string           `json:"title,omitempty"`
	Game              *Game             `json:"game,omitempty"`
	Description       *string           `json:"description,omitempty"`
	StartDate         *time.Time        `json:"start_date,omitempty"`
	EndDate           *time.Time        `json:"end_date,omitempty"`
	PrizePool         *PrizePool        `json:"prize_pool,omitempty"`
	EntryFee          *EntryFee         `json:"entry_fee,omitempty"`
	MaxTeams          *int              `json:"max_teams,omitempty"`
	RegistrationStart *time.Time        `json:"registration_start,omitempty"`
	RegistrationEnd   *time.Time        `json:"registration_end,omitempty"`
	Rules             *[]Rule           `json:"rules,omitempty"`
	Format            *TournamentFormat `json:"format,omitempty"`
	MinTeamSize       *int              `json:"min_team_size,omitempty"`
	MaxTeamSize       *int              `json:"max_team_size,omitempty"`
	Platforms         *[]string         `json:"platforms,omitempty"`
	Regions           *[]string         `json:"regions,omitempty"`
}

func (u TournamentUpdate) Empty() bool {
	return u.Title == nil && u.Game == nil && u.Description == nil && u.StartDate == nil &&
		u.EndDate == nil && u.PrizePool == nil && u.EntryFee == nil && u.MaxTeams == nil &&
		u.RegistrationStart == nil && u.RegistrationEnd == nil && u.Rules == nil &&
		u.Format == nil && u.MinTeamSize == nil && u.MaxTeamSize == nil &&
		u.Platforms == nil && u.Regions == nil
}

type TournamentFilter struct {
	Game        *Game
	Status      *RegistrationStatus
	OrganizerID *uuid.UUID
	Search      string
	Limit       int
	Offset      int
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Organizer — отдельный тип учётной записи с обязательными документами.
type Organizer struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	ContactNumber      string    `json:"contact_number"`
	DocumentImageKey   string    `json:"-"`
	HoldingDocumentKey string    `json:"-"`
	DocumentImageURL   string    `json:"document_image,omitempty"`
	HoldingDocumentURL string    `json:"holding_document_image,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

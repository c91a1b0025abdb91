package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Service is a dental service offered by the clinic (cleaning, extraction,
// braces adjustment, ...). The scheduler treats it as an opaque reference.
type Service struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is a dentist who can be assigned to a confirmed booking.
type Provider struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

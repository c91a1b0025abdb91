package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is the canonical identity record. Bookings reference it once the
// requester's identity has been resolved.
type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Provisional holds the identity fields captured at booking time, before a
// canonical patient record is matched or created.
type Provisional struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
}

func (p Provisional) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Complete reports whether the fields required for later resolution are set.
// Address is optional.
func (p Provisional) Complete() bool {
	return p.FirstName != "" && p.LastName != "" && p.Email != "" && p.Phone != ""
}

// NormalizePhone strips spaces, dashes and plus signs so that numbers entered
// in different formats compare equal.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '+':
			return -1
		}
		return r
	}, s)
}

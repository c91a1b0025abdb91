package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrPatientNotFound = errors.New("patient not found")

// Repository contains the patient store interactions the resolver needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// FindByEmail matches by case-insensitive exact email.
	FindByEmail(ctx context.Context, email string) (*Patient, error)

	// FindByPhone matches by normalized phone (see NormalizePhone).
	FindByPhone(ctx context.Context, phone string) (*Patient, error)

	Create(ctx context.Context, p *Patient) (*Patient, error)
	Update(ctx context.Context, p *Patient) (*Patient, error)
}

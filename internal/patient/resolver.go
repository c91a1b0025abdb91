package patient

import (
	"context"
	"errors"
	"fmt"
)

// Resolver matches provisional booking identities against the canonical
// patient store. Matching is exact: case-insensitive email first, then
// normalized phone. No fuzzy matching.
type Resolver struct {
	patients Repository
}

func NewResolver(patients Repository) *Resolver {
	return &Resolver{patients: patients}
}

// FindExisting returns the matching canonical patient, or nil when no record
// matches the provisional email or phone.
func (r *Resolver) FindExisting(ctx context.Context, info Provisional) (*Patient, error) {
	if info.Email != "" {
		p, err := r.patients.FindByEmail(ctx, info.Email)
		if err != nil && !errors.Is(err, ErrPatientNotFound) {
			return nil, fmt.Errorf("find patient by email: %w", err)
		}
		if p != nil {
			return p, nil
		}
	}

	if info.Phone != "" {
		p, err := r.patients.FindByPhone(ctx, info.Phone)
		if err != nil && !errors.Is(err, ErrPatientNotFound) {
			return nil, fmt.Errorf("find patient by phone: %w", err)
		}
		if p != nil {
			return p, nil
		}
	}

	return nil, nil
}

// Resolve returns the canonical patient for the provisional info, creating a
// new record when nothing matches. Matches are merged additively: a non-empty
// provisional field replaces a differing stored value, an empty provisional
// field never blanks a stored one. Safe to call again after a retried
// approval, since FindExisting will then find the just-created record.
func (r *Resolver) Resolve(ctx context.Context, info Provisional) (*Patient, error) {
	existing, err := r.FindExisting(ctx, info)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		created, err := r.patients.Create(ctx, &Patient{
			FirstName: info.FirstName,
			LastName:  info.LastName,
			Email:     info.Email,
			Phone:     info.Phone,
			Address:   info.Address,
		})
		if err != nil {
			return nil, fmt.Errorf("create patient: %w", err)
		}
		return created, nil
	}

	if merge(existing, info) {
		updated, err := r.patients.Update(ctx, existing)
		if err != nil {
			return nil, fmt.Errorf("update patient: %w", err)
		}
		return updated, nil
	}

	return existing, nil
}

// merge copies non-empty provisional fields onto the patient and reports
// whether anything changed.
func merge(p *Patient, info Provisional) bool {
	changed := false

	apply := func(dst *string, src string) {
		if src != "" && *dst != src {
			*dst = src
			changed = true
		}
	}

	apply(&p.FirstName, info.FirstName)
	apply(&p.LastName, info.LastName)
	apply(&p.Email, info.Email)
	apply(&p.Phone, info.Phone)
	apply(&p.Address, info.Address)

	return changed
}

package app

import (
	"context"
	"errors"
	"time"

	"bridgebites-service/internal/domain"
	"github.com/google/uuid"
)

// ProfileCreator is the store side of first-login provisioning.
type ProfileCreator interface {
	ProfileRepository
	InsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

// ProvisioningProfiles creates a zeroed profile row the first time an unknown
// user is looked up, so a fresh login can open a session without a separate
// signup step.
type ProvisioningProfiles struct {
	ProfileCreator
	clock func() time.Time
}

func NewProvisioningProfiles(store ProfileCreator) *ProvisioningProfiles {
	return &ProvisioningProfiles{ProfileCreator: store, clock: time.Now}
}

func (p *ProvisioningProfiles) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	profile, err := p.ProfileCreator.GetProfile(ctx, userID)
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return profile, err
	}
	fresh := domain.Profile{
		ID:               uuid.NewString(),
		UserID:           userID,
		Username:         userID,
		Level:            1,
		CountriesBridged: []string{},
		CreatedAt:        p.clock(),
	}
	created, err := p.InsertProfile(ctx, fresh)
	if err != nil {
		// Another instance may have provisioned concurrently.
		if existing, getErr := p.ProfileCreator.GetProfile(ctx, userID); getErr == nil {
			return existing, nil
		}
		return domain.Profile{}, err
	}
	return created, nil
}

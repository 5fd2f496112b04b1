package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
)

// LeaseStore grants a single writer per campaign
type LeaseStore struct {
	repo repository.CampaignLeaseRepository
	now  func() time.Time
}

func NewLeaseStore(repo repository.CampaignLeaseRepository, now func() time.Time) *LeaseStore {
	if now == nil {
		now = utils.UTCNow
	}
	return &LeaseStore{repo: repo, now: now}
}

// TryClaim acquires or renews the lease. A denied claim is not an error.
func (s *LeaseStore) TryClaim(ctx context.Context, campaignID uint, owner string, ttl time.Duration) (*models.CampaignLease, bool, error) {
	if owner == "" {
		return nil, false, ErrOwnerRequired
	}
	if ttl <= 0 {
		ttl = utils.DefaultLeaseTTL
	}

	granted, err := s.repo.TryClaim(ctx, campaignID, owner, s.now(), ttl)
	if err != nil {
		return nil, false, err
	}
	if !granted {
		return nil, false, nil
	}

	lease, err := s.repo.ByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, false, fmt.Errorf("lease granted but not readable: %w", err)
	}
	return lease, true, nil
}

// Release gives the lease up early; expiry would free it anyway
func (s *LeaseStore) Release(ctx context.Context, campaignID uint, owner string) error {
	return s.repo.Release(ctx, campaignID, owner, s.now())
}

// Current returns the lease row of a campaign, if any
func (s *LeaseStore) Current(ctx context.Context, campaignID uint) (*models.CampaignLease, error) {
	return s.repo.ByCampaignID(ctx, campaignID)
}

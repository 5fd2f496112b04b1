package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignLeaseRepositoryImpl implements CampaignLeaseRepository
type CampaignLeaseRepositoryImpl struct {
	*BaseRepository[models.CampaignLease, any]
}

func NewCampaignLeaseRepository(db *gorm.DB) CampaignLeaseRepository {
	return &CampaignLeaseRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignLease, any](db)}
}

// TryClaim takes the lease in one statement: a fresh row is inserted, an existing row is
// overwritten only when the caller already owns it or it has expired.
func (r *CampaignLeaseRepositoryImpl) TryClaim(ctx context.Context, campaignID uint, owner string, now time.Time, ttl time.Duration) (bool, error) {
	db := r.getDB(ctx)
	expiresAt := now.Add(ttl)

	lease := models.CampaignLease{
		CampaignID: campaignID,
		Owner:      owner,
		AcquiredAt: now,
		RenewedAt:  now,
		ExpiresAt:  expiresAt,
	}

	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"owner":       owner,
			"renewed_at":  now,
			"expires_at":  expiresAt,
			"acquired_at": gorm.Expr("CASE WHEN campaign_leases.owner = ? THEN campaign_leases.acquired_at ELSE ? END", owner, now),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("campaign_leases.owner = ? OR campaign_leases.expires_at <= ?", owner, now),
		}},
	}).Create(&lease)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim lease of campaign %d: %w", campaignID, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// Release expires the lease early if owner still holds it
func (r *CampaignLeaseRepositoryImpl) Release(ctx context.Context, campaignID uint, owner string, now time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.CampaignLease{}).
		Where("campaign_id = ? AND owner = ?", campaignID, owner).
		Updates(map[string]any{"expires_at": now, "renewed_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to release lease of campaign %d: %w", campaignID, err)
	}
	return nil
}

func (r *CampaignLeaseRepositoryImpl) ByCampaignID(ctx context.Context, campaignID uint) (*models.CampaignLease, error) {
	db := r.getDB(ctx)
	var row models.CampaignLease
	if err := db.Where("campaign_id = ?", campaignID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lease of campaign %d: %w", campaignID, err)
	}
	return &row, nil
}

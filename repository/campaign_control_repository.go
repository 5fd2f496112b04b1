package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignControlRepositoryImpl implements CampaignControlRepository
type CampaignControlRepositoryImpl struct {
	*BaseRepository[models.CampaignControl, any]
}

func NewCampaignControlRepository(db *gorm.DB) CampaignControlRepository {
	return &CampaignControlRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignControl, any](db)}
}

func (r *CampaignControlRepositoryImpl) Get(ctx context.Context, campaignID uint) (*models.CampaignControl, error) {
	db := r.getDB(ctx)
	var row models.CampaignControl
	if err := db.Where("campaign_id = ?", campaignID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefaultCampaignControl(campaignID), nil
		}
		return nil, fmt.Errorf("failed to read control flags of campaign %d: %w", campaignID, err)
	}
	return &row, nil
}

func (r *CampaignControlRepositoryImpl) Upsert(ctx context.Context, control *models.CampaignControl) error {
	db := r.getDB(ctx)
	control.UpdatedAt = utils.UTCNow()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"paused", "killed", "daily_quota", "reason", "updated_by", "updated_at"}),
	}).Create(control).Error
	if err != nil {
		return fmt.Errorf("failed to upsert control flags of campaign %d: %w", control.CampaignID, err)
	}
	return nil
}

// SetPaused flips only the paused flag, keeping the other flags
func (r *CampaignControlRepositoryImpl) SetPaused(ctx context.Context, campaignID uint, paused bool, reason, updatedBy string) error {
	return r.setFlag(ctx, campaignID, "paused", paused, reason, updatedBy)
}

// SetKilled flips only the killed flag, keeping the other flags
func (r *CampaignControlRepositoryImpl) SetKilled(ctx context.Context, campaignID uint, killed bool, reason, updatedBy string) error {
	return r.setFlag(ctx, campaignID, "killed", killed, reason, updatedBy)
}

func (r *CampaignControlRepositoryImpl) setFlag(ctx context.Context, campaignID uint, column string, value bool, reason, updatedBy string) error {
	db := r.getDB(ctx)
	row := models.DefaultCampaignControl(campaignID)
	row.Reason = reason
	row.UpdatedBy = updatedBy
	row.UpdatedAt = utils.UTCNow()
	switch column {
	case "paused":
		row.Paused = value
	case "killed":
		row.Killed = value
	default:
		return fmt.Errorf("unknown control flag %q", column)
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.AssignmentColumns([]string{column, "reason", "updated_by", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to set %s on campaign %d: %w", column, campaignID, err)
	}
	return nil
}

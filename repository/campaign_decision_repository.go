package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/orochi-outreach/models"
	"gorm.io/gorm"
)

// CampaignDecisionRepositoryImpl implements CampaignDecisionRepository
type CampaignDecisionRepositoryImpl struct {
	*BaseRepository[models.CampaignDecision, any]
}

func NewCampaignDecisionRepository(db *gorm.DB) CampaignDecisionRepository {
	return &CampaignDecisionRepositoryImpl{BaseRepository: NewBaseRepository[models.CampaignDecision, any](db)}
}

func (r *CampaignDecisionRepositoryImpl) LatestByCampaign(ctx context.Context, campaignID uint) (*models.CampaignDecision, error) {
	db := r.getDB(ctx)
	var row models.CampaignDecision
	if err := db.Where("campaign_id = ?", campaignID).Order("id DESC").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest decision of campaign %d: %w", campaignID, err)
	}
	return &row, nil
}

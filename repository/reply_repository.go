package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/orochi-outreach/models"
	"gorm.io/gorm"
)

// ReplyRepositoryImpl implements ReplyRepository
type ReplyRepositoryImpl struct {
	*BaseRepository[models.Reply, any]
}

func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &ReplyRepositoryImpl{BaseRepository: NewBaseRepository[models.Reply, any](db)}
}

// StatsByCampaign counts distinct replying contacts, and those with at least one positive reply
func (r *ReplyRepositoryImpl) StatsByCampaign(ctx context.Context, campaignID uint) (models.ReplyStats, error) {
	db := r.getDB(ctx)
	var stats models.ReplyStats

	err := db.Model(&models.Reply{}).
		Where("campaign_id = ?", campaignID).
		Distinct("contact_id").
		Count(&stats.Replied).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count replies of campaign %d: %w", campaignID, err)
	}

	err = db.Model(&models.Reply{}).
		Where("campaign_id = ? AND positive = ?", campaignID, true).
		Distinct("contact_id").
		Count(&stats.Positive).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count positive replies of campaign %d: %w", campaignID, err)
	}

	return stats, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/orochi-outreach/models"
	"gorm.io/gorm"
)

// OrchestratorRunRepositoryImpl implements OrchestratorRunRepository
type OrchestratorRunRepositoryImpl struct {
	*BaseRepository[models.OrchestratorRun, any]
}

func NewOrchestratorRunRepository(db *gorm.DB) OrchestratorRunRepository {
	return &OrchestratorRunRepositoryImpl{BaseRepository: NewBaseRepository[models.OrchestratorRun, any](db)}
}

// ListByCampaign returns the newest runs first
func (r *OrchestratorRunRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.OrchestratorRun, error) {
	db := r.getDB(ctx)
	var rows []*models.OrchestratorRun
	query := db.Where("campaign_id = ?", campaignID)
	if err := page(query, "started_at DESC, id DESC", limit, offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs of campaign %d: %w", campaignID, err)
	}
	return rows, nil
}

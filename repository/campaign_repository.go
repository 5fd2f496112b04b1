package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/orochi-outreach/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRepositoryImpl implements CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByName retrieves a campaign by its unique name
func (r *CampaignRepositoryImpl) ByName(ctx context.Context, name string) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Where("name = ?", name).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign by name: %w", err)
	}

	return &campaign, nil
}

// ListRunnable returns active campaigns that are not killed
func (r *CampaignRepositoryImpl) ListRunnable(ctx context.Context) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	err := db.Model(&models.Campaign{}).
		Joins("LEFT JOIN campaign_controls ON campaign_controls.campaign_id = campaigns.id").
		Where("campaigns.status = ?", models.CampaignStatusActive).
		Where("campaign_controls.killed IS NULL OR campaign_controls.killed = ?", false).
		Order("campaigns.id ASC").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runnable campaigns: %w", err)
	}

	return campaigns, nil
}

// Upsert inserts a campaign or replaces the configuration of the one with the same name
func (r *CampaignRepositoryImpl) Upsert(ctx context.Context, campaign *models.Campaign) error {
	db := r.getDB(ctx)

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"channel", "sender", "steps", "cooldown_seconds", "max_touches",
			"max_retries", "opt_out_footer", "status", "updated_at",
		}),
	}).Create(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to upsert campaign %s: %w", campaign.Name, err)
	}

	existing, err := r.ByName(ctx, campaign.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		campaign.ID = existing.ID
		campaign.UUID = existing.UUID
		campaign.CreatedAt = existing.CreatedAt
	}

	return nil
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}

	var campaigns []*models.Campaign
	if err := page(query, orderBy, limit, offset).Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}

	return campaigns, nil
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if filter.Channel != nil {
		db = db.Where("channel = ?", *filter.Channel)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}

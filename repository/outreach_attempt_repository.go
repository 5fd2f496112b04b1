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

// OutreachAttemptRepositoryImpl implements OutreachAttemptRepository
type OutreachAttemptRepositoryImpl struct {
	*BaseRepository[models.OutreachAttempt, models.OutreachAttemptFilter]
}

func NewOutreachAttemptRepository(db *gorm.DB) OutreachAttemptRepository {
	return &OutreachAttemptRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OutreachAttempt, models.OutreachAttemptFilter](db),
	}
}

func (r *OutreachAttemptRepositoryImpl) ByIdempotencyKey(ctx context.Context, key string) (*models.OutreachAttempt, error) {
	db := r.getDB(ctx)
	var row models.OutreachAttempt
	if err := db.Where("idempotency_key = ?", key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find attempt by idempotency key: %w", err)
	}
	return &row, nil
}

// CreateIfAbsent relies on the unique index: a conflicting insert affects no rows
func (r *OutreachAttemptRepositoryImpl) CreateIfAbsent(ctx context.Context, attempt *models.OutreachAttempt) (bool, error) {
	db := r.getDB(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(attempt)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create attempt %s: %w", attempt.IdempotencyKey, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *OutreachAttemptRepositoryImpl) UpdateQueued(ctx context.Context, id uint, updates map[string]any) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.OutreachAttempt{}).
		Where("id = ? AND status = ?", id, models.AttemptStatusQueued).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update attempt %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *OutreachAttemptRepositoryImpl) ClaimRetry(ctx context.Context, id uint, now time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.OutreachAttempt{}).
		Where("id = ? AND status = ? AND retry_count > 0 AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			id, models.AttemptStatusQueued, now).
		Updates(map[string]any{
			"next_retry_at":      nil,
			"dispatches":         gorm.Expr("dispatches + 1"),
			"last_dispatched_at": now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim retry of attempt %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FailOrphans closes dispatched attempts that never recorded an outcome; they are not re-sent
func (r *OutreachAttemptRepositoryImpl) FailOrphans(ctx context.Context, campaignID uint, cutoff, now time.Time, reason string) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.OutreachAttempt{}).
		Where("campaign_id = ? AND status = ? AND next_retry_at IS NULL AND updated_at < ?",
			campaignID, models.AttemptStatusQueued, cutoff).
		Updates(map[string]any{
			"status":       models.AttemptStatusFailed,
			"last_error":   reason,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to close orphaned attempts of campaign %d: %w", campaignID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *OutreachAttemptRepositoryImpl) AggregateByCampaign(ctx context.Context, campaignID uint) (models.AttemptStats, error) {
	type row struct {
		Status models.AttemptStatus
		Total  int64
	}
	db := r.getDB(ctx)
	var rows []row
	err := db.Model(&models.OutreachAttempt{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return models.AttemptStats{}, fmt.Errorf("failed to aggregate attempts of campaign %d: %w", campaignID, err)
	}

	var stats models.AttemptStats
	for _, it := range rows {
		switch it.Status {
		case models.AttemptStatusQueued:
			stats.Queued = it.Total
		case models.AttemptStatusSent:
			stats.Sent = it.Total
		case models.AttemptStatusFailed:
			stats.Failed = it.Total
		case models.AttemptStatusBounced:
			stats.Bounced = it.Total
		}
	}
	return stats, nil
}

// CountDispatchedSince counts attempts created at or after since, whatever their outcome
// CountDispatchedSince counts provider sends since the given instant. First sends count by
// created_at; the retries of an attempt are charged to the day of its latest dispatch.
func (r *OutreachAttemptRepositoryImpl) CountDispatchedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	db := r.getDB(ctx)
	var first int64
	err := db.Model(&models.OutreachAttempt{}).
		Where("campaign_id = ? AND created_at >= ?", campaignID, since).
		Count(&first).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts of campaign %d: %w", campaignID, err)
	}

	var retries int64
	err = db.Model(&models.OutreachAttempt{}).
		Select("COALESCE(SUM(dispatches - 1), 0)").
		Where("campaign_id = ? AND dispatches > 1 AND last_dispatched_at >= ?", campaignID, since).
		Scan(&retries).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count retries of campaign %d: %w", campaignID, err)
	}
	return first + retries, nil
}

func (r *OutreachAttemptRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.OutreachAttempt, error) {
	filter := models.OutreachAttemptFilter{CampaignID: &campaignID}
	return r.ByFilter(ctx, filter, "id ASC", limit, offset)
}

func (r *OutreachAttemptRepositoryImpl) ByFilter(ctx context.Context, filter models.OutreachAttemptFilter, orderBy string, limit, offset int) ([]*models.OutreachAttempt, error) {
	db := r.getDB(ctx)
	var rows []*models.OutreachAttempt
	query := r.applyFilter(db.Model(&models.OutreachAttempt{}), filter)
	if err := page(query, orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find attempts by filter: %w", err)
	}
	return rows, nil
}

func (r *OutreachAttemptRepositoryImpl) applyFilter(db *gorm.DB, filter models.OutreachAttemptFilter) *gorm.DB {
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.ContactID != nil {
		db = db.Where("contact_id = ?", *filter.ContactID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

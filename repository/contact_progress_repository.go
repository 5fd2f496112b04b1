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

// ContactProgressRepositoryImpl implements ContactProgressRepository
type ContactProgressRepositoryImpl struct {
	*BaseRepository[models.ContactProgress, models.ContactProgressFilter]
}

func NewContactProgressRepository(db *gorm.DB) ContactProgressRepository {
	return &ContactProgressRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ContactProgress, models.ContactProgressFilter](db),
	}
}

func (r *ContactProgressRepositoryImpl) ByContactAndCampaign(ctx context.Context, contactID, campaignID uint) (*models.ContactProgress, error) {
	db := r.getDB(ctx)
	var row models.ContactProgress
	err := db.Where("contact_id = ? AND campaign_id = ?", contactID, campaignID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find progress of contact %d in campaign %d: %w", contactID, campaignID, err)
	}
	return &row, nil
}

func (r *ContactProgressRepositoryImpl) Enroll(ctx context.Context, campaignID uint, contactIDs []uint, now time.Time) (int64, error) {
	if len(contactIDs) == 0 {
		return 0, nil
	}

	rows := make([]*models.ContactProgress, 0, len(contactIDs))
	for _, id := range contactIDs {
		rows = append(rows, &models.ContactProgress{
			ContactID:      id,
			CampaignID:     campaignID,
			Status:         models.ProgressStatusActive,
			NextEligibleAt: now,
		})
	}

	db := r.getDB(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contact_id"}, {Name: "campaign_id"}},
		DoNothing: true,
	}).CreateInBatches(rows, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to enroll contacts into campaign %d: %w", campaignID, res.Error)
	}
	return res.RowsAffected, nil
}

// ListDue applies the coarse compliance filter in SQL; the engine repeats the check per contact
func (r *ContactProgressRepositoryImpl) ListDue(ctx context.Context, campaignID uint, now time.Time, limit int) ([]*models.ContactProgress, error) {
	if limit <= 0 {
		limit = 25
	}
	db := r.getDB(ctx)

	var rows []*models.ContactProgress
	err := db.Model(&models.ContactProgress{}).
		Joins("JOIN contacts ON contacts.id = contact_progress.contact_id").
		Where("contact_progress.campaign_id = ?", campaignID).
		Where("contact_progress.status IN ?", models.SendableProgressStatuses).
		Where("contact_progress.next_eligible_at <= ?", now).
		Where("NOT EXISTS (SELECT 1 FROM unsubscribes WHERE unsubscribes.email = contacts.email)").
		Where("NOT EXISTS (SELECT 1 FROM suppressions WHERE suppressions.domain = contacts.domain)").
		Preload("Contact").
		Order("contact_progress.next_eligible_at ASC, contact_progress.id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due contacts of campaign %d: %w", campaignID, err)
	}
	return rows, nil
}

func (r *ContactProgressRepositoryImpl) Transition(ctx context.Context, id uint, update models.ProgressUpdate) (bool, error) {
	updates := map[string]any{}
	if update.Status != nil {
		updates["status"] = *update.Status
	}
	if update.StepIndex != nil {
		updates["step_index"] = *update.StepIndex
	}
	if update.NextEligibleAt != nil {
		updates["next_eligible_at"] = *update.NextEligibleAt
	}
	if update.LastAttemptAt != nil {
		updates["last_attempt_at"] = *update.LastAttemptAt
	}
	if update.LastTouchAt != nil {
		updates["last_touch_at"] = *update.LastTouchAt
	}
	if len(updates) == 0 {
		return false, nil
	}

	db := r.getDB(ctx)
	res := db.Model(&models.ContactProgress{}).
		Where("id = ? AND status IN ?", id, models.SendableProgressStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update contact progress %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ContactProgressRepositoryImpl) SweepBlocked(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)

	unsubscribed := db.Table("contacts").Select("contacts.id").
		Joins("JOIN unsubscribes ON unsubscribes.email = contacts.email")
	res := db.Model(&models.ContactProgress{}).
		Where("campaign_id = ? AND status IN ?", campaignID, models.SendableProgressStatuses).
		Where("contact_id IN (?)", unsubscribed).
		Update("status", models.ProgressStatusUnsubscribed)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep unsubscribed contacts of campaign %d: %w", campaignID, res.Error)
	}
	total := res.RowsAffected

	suppressed := db.Table("contacts").Select("contacts.id").
		Joins("JOIN suppressions ON suppressions.domain = contacts.domain")
	res = db.Model(&models.ContactProgress{}).
		Where("campaign_id = ? AND status IN ?", campaignID, models.SendableProgressStatuses).
		Where("contact_id IN (?)", suppressed).
		Update("status", models.ProgressStatusSuppressed)
	if res.Error != nil {
		return total, fmt.Errorf("failed to sweep suppressed contacts of campaign %d: %w", campaignID, res.Error)
	}

	return total + res.RowsAffected, nil
}

// SweepReplied qualifies positive repliers first, any other reply ends the sequence as exhausted
func (r *ContactProgressRepositoryImpl) SweepReplied(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)

	positive := db.Model(&models.Reply{}).Select("contact_id").
		Where("campaign_id = ? AND positive = ?", campaignID, true)
	res := db.Model(&models.ContactProgress{}).
		Where("campaign_id = ? AND status IN ?", campaignID, models.SendableProgressStatuses).
		Where("contact_id IN (?)", positive).
		Update("status", models.ProgressStatusQualified)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep positive replies of campaign %d: %w", campaignID, res.Error)
	}
	total := res.RowsAffected

	replied := db.Model(&models.Reply{}).Select("contact_id").Where("campaign_id = ?", campaignID)
	res = db.Model(&models.ContactProgress{}).
		Where("campaign_id = ? AND status IN ?", campaignID, models.SendableProgressStatuses).
		Where("contact_id IN (?)", replied).
		Update("status", models.ProgressStatusExhausted)
	if res.Error != nil {
		return total, fmt.Errorf("failed to sweep replies of campaign %d: %w", campaignID, res.Error)
	}

	return total + res.RowsAffected, nil
}

func (r *ContactProgressRepositoryImpl) CountSendable(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.ContactProgress{}).
		Where("campaign_id = ? AND status IN ?", campaignID, models.SendableProgressStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sendable contacts of campaign %d: %w", campaignID, err)
	}
	return count, nil
}

func (r *ContactProgressRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.ProgressStatus]int64, error) {
	type row struct {
		Status models.ProgressStatus
		Total  int64
	}
	db := r.getDB(ctx)
	var rows []row
	err := db.Model(&models.ContactProgress{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count progress by status of campaign %d: %w", campaignID, err)
	}

	out := make(map[models.ProgressStatus]int64, len(rows))
	for _, it := range rows {
		out[it.Status] = it.Total
	}
	return out, nil
}

func (r *ContactProgressRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactProgressFilter, orderBy string, limit, offset int) ([]*models.ContactProgress, error) {
	db := r.getDB(ctx)
	var rows []*models.ContactProgress
	query := r.applyFilter(db.Model(&models.ContactProgress{}), filter)
	if err := page(query, orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find contact progress by filter: %w", err)
	}
	return rows, nil
}

func (r *ContactProgressRepositoryImpl) applyFilter(db *gorm.DB, filter models.ContactProgressFilter) *gorm.DB {
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.ContactID != nil {
		db = db.Where("contact_id = ?", *filter.ContactID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}

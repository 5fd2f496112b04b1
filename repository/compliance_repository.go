package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/orochi-outreach/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ComplianceRepositoryImpl implements ComplianceRepository over the unsubscribes and suppressions tables
type ComplianceRepositoryImpl struct {
	db *gorm.DB
}

func NewComplianceRepository(db *gorm.DB) ComplianceRepository {
	return &ComplianceRepositoryImpl{db: db}
}

func (r *ComplianceRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *ComplianceRepositoryImpl) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	var count int64
	if err := r.getDB(ctx).Model(&models.Unsubscribe{}).Where("email = ?", email).Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up unsubscribe: %w", err)
	}
	return count > 0, nil
}

func (r *ComplianceRepositoryImpl) IsSuppressed(ctx context.Context, domain string) (bool, error) {
	domain = models.NormalizeDomain(domain)
	if domain == "" {
		return false, nil
	}
	var count int64
	if err := r.getDB(ctx).Model(&models.Suppression{}).Where("domain = ?", domain).Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up suppression: %w", err)
	}
	return count > 0, nil
}

// AddUnsubscribe is idempotent; the first record of an address wins
func (r *ComplianceRepositoryImpl) AddUnsubscribe(ctx context.Context, row *models.Unsubscribe) error {
	row.Email = models.NormalizeEmail(row.Email)
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record unsubscribe: %w", err)
	}
	return nil
}

// AddSuppression is idempotent; the first record of a domain wins
func (r *ComplianceRepositoryImpl) AddSuppression(ctx context.Context, row *models.Suppression) error {
	row.Domain = models.NormalizeDomain(row.Domain)
	err := r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record suppression: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/orochi-outreach/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, any]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, any](db)}
}

func (r *ContactRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Contact, error) {
	db := r.getDB(ctx)
	var row models.Contact
	if err := db.Where("email = ?", models.NormalizeEmail(email)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contact by email: %w", err)
	}
	return &row, nil
}

func (r *ContactRepositoryImpl) UpsertByEmail(ctx context.Context, contact *models.Contact) error {
	db := r.getDB(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"phone", "first_name", "last_name", "company", "attributes", "updated_at"}),
	}).Create(contact).Error
	if err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", contact.Email, err)
	}

	existing, err := r.ByEmail(ctx, contact.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		contact.ID = existing.ID
	}
	return nil
}

// ByFilter: no filter fields, just order/limit/offset
func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, _ any, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	var rows []*models.Contact
	if err := page(db, orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

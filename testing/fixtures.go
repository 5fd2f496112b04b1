// Package testing provides test utilities and database setup for testing the orchestrator
package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCampaign creates an active proof-channel campaign with the given number of steps
func (tf *TestFixtures) CreateTestCampaign(steps int, cooldown time.Duration) (*models.Campaign, error) {
	seq := make(models.SequenceSteps, 0, steps)
	for i := 0; i < steps; i++ {
		seq = append(seq, models.SequenceStep{
			Key:     fmt.Sprintf("step-%d", i+1),
			Subject: fmt.Sprintf("Hello {{.FirstName}} #%d", i+1),
			Body:    fmt.Sprintf("Touch %d for {{.Company}}", i+1),
		})
	}

	campaign := &models.Campaign{
		Name:            "campaign-" + uuid.NewString()[:8],
		Channel:         models.ChannelProof,
		Sender:          "outreach@example.com",
		Steps:           seq,
		CooldownSeconds: int64(cooldown / time.Second),
		MaxRetries:      3,
		Status:          models.CampaignStatusActive,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestContact creates a contact with the given email
func (tf *TestFixtures) CreateTestContact(email string) (*models.Contact, error) {
	contact := &models.Contact{
		Email:     email,
		FirstName: "Jane",
		LastName:  "Doe",
		Company:   "Acme",
		Phone:     "+15550000000",
	}
	if err := tf.DB.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create test contact %s: %w", email, err)
	}
	return contact, nil
}

// EnrollTestContacts creates n contacts at domain and enrolls them as ACTIVE and due at eligibleAt
func (tf *TestFixtures) EnrollTestContacts(campaign *models.Campaign, domain string, n int, eligibleAt time.Time) ([]*models.Contact, error) {
	contacts := make([]*models.Contact, 0, n)
	for i := 0; i < n; i++ {
		contact, err := tf.CreateTestContact(fmt.Sprintf("lead%d.%s@%s", i+1, uuid.NewString()[:6], domain))
		if err != nil {
			return nil, err
		}
		progress := &models.ContactProgress{
			ContactID:      contact.ID,
			CampaignID:     campaign.ID,
			Status:         models.ProgressStatusActive,
			NextEligibleAt: eligibleAt,
		}
		if err := tf.DB.DB.Create(progress).Error; err != nil {
			return nil, fmt.Errorf("failed to enroll test contact %s: %w", contact.Email, err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// Progress loads the progress row of a contact in a campaign
func (tf *TestFixtures) Progress(campaignID, contactID uint) (*models.ContactProgress, error) {
	var row models.ContactProgress
	err := tf.DB.DB.Where("campaign_id = ? AND contact_id = ?", campaignID, contactID).Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Attempts loads every ledger row of a campaign
func (tf *TestFixtures) Attempts(campaignID uint) ([]*models.OutreachAttempt, error) {
	var rows []*models.OutreachAttempt
	err := tf.DB.DB.Where("campaign_id = ?", campaignID).Order("id ASC").Find(&rows).Error
	return rows, err
}

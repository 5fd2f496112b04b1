package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/orochi-outreach/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of an outreach campaign
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusArchived CampaignStatus = "archived"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Channel names the delivery channel of a campaign
type Channel string

const (
	ChannelProof Channel = "proof"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Valid checks if the channel is known
func (c Channel) Valid() bool {
	switch c {
	case ChannelProof, ChannelSMS, ChannelEmail:
		return true
	default:
		return false
	}
}

// SequenceStep is one touch of a campaign sequence
type SequenceStep struct {
	Key     string `json:"key" yaml:"key"`
	Subject string `json:"subject,omitempty" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
	// WaitHours overrides the campaign cooldown before this step when positive
	WaitHours int `json:"wait_hours,omitempty" yaml:"wait_hours"`
}

// SequenceSteps is stored as a JSON array
type SequenceSteps []SequenceStep

// Value implements the driver.Valuer interface for SequenceSteps
func (s SequenceSteps) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for SequenceSteps
func (s *SequenceSteps) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SequenceSteps", value)
	}

	return json.Unmarshal(bytes, s)
}

// Campaign holds the sequence configuration the orchestrator executes
type Campaign struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	Name            string         `gorm:"size:255;not null;uniqueIndex:uk_campaigns_name" json:"name"`
	Channel         Channel        `gorm:"size:32;not null" json:"channel"`
	Sender          string         `gorm:"size:255" json:"sender"`
	Steps           SequenceSteps  `gorm:"type:jsonb;not null" json:"steps"`
	CooldownSeconds int64          `gorm:"not null;default:0" json:"cooldown_seconds"`
	MaxTouches      int            `gorm:"not null;default:0" json:"max_touches"`
	MaxRetries      int            `gorm:"not null;default:0" json:"max_retries"`
	OptOutFooter    string         `gorm:"type:text" json:"opt_out_footer,omitempty"`
	Status          CampaignStatus `gorm:"size:32;not null;index:idx_campaigns_status" json:"status"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusActive
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// Cooldown returns the default wait between touches
func (c *Campaign) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// WaitBefore returns the wait required before the step at index
func (c *Campaign) WaitBefore(index int) time.Duration {
	if index >= 0 && index < len(c.Steps) && c.Steps[index].WaitHours > 0 {
		return time.Duration(c.Steps[index].WaitHours) * time.Hour
	}
	return c.Cooldown()
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID      *uint           `json:"id,omitempty"`
	Name    *string         `json:"name,omitempty"`
	Channel *Channel        `json:"channel,omitempty"`
	Status  *CampaignStatus `json:"status,omitempty"`
}

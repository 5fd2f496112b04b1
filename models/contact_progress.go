package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ProgressStatus is the per-campaign state of a contact
type ProgressStatus string

const (
	ProgressStatusActive       ProgressStatus = "ACTIVE"
	ProgressStatusContacted    ProgressStatus = "CONTACTED"
	ProgressStatusQualified    ProgressStatus = "QUALIFIED"
	ProgressStatusSuppressed   ProgressStatus = "SUPPRESSED"
	ProgressStatusUnsubscribed ProgressStatus = "UNSUBSCRIBED"
	ProgressStatusExhausted    ProgressStatus = "EXHAUSTED"
)

// SendableProgressStatuses are the statuses a contact can still be reached in
var SendableProgressStatuses = []ProgressStatus{ProgressStatusActive, ProgressStatusContacted}

// Valid checks if the status is valid
func (s ProgressStatus) Valid() bool {
	switch s {
	case ProgressStatusActive, ProgressStatusContacted, ProgressStatusQualified,
		ProgressStatusSuppressed, ProgressStatusUnsubscribed, ProgressStatusExhausted:
		return true
	default:
		return false
	}
}

// Sendable reports whether the sequence may still dispatch to the contact
func (s ProgressStatus) Sendable() bool {
	return s == ProgressStatusActive || s == ProgressStatusContacted
}

// Terminal reports whether the status is absorbing
func (s ProgressStatus) Terminal() bool {
	return s.Valid() && !s.Sendable()
}

// Scan implements the sql.Scanner interface for ProgressStatus
func (s *ProgressStatus) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = ""
	case string:
		*s = ProgressStatus(v)
	case []byte:
		*s = ProgressStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ProgressStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for ProgressStatus
func (s ProgressStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ProgressStatus: %s", s)
	}
	return string(s), nil
}

// ContactProgress tracks where a contact is in a campaign sequence
// Table: contact_progress
// Indices: (contact_id, campaign_id) unique; (campaign_id, status, next_eligible_at)
type ContactProgress struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ContactID      uint           `gorm:"not null;uniqueIndex:uk_contact_progress_contact_campaign,priority:1" json:"contact_id"`
	CampaignID     uint           `gorm:"not null;uniqueIndex:uk_contact_progress_contact_campaign,priority:2;index:idx_contact_progress_due,priority:1" json:"campaign_id"`
	StepIndex      int            `gorm:"not null;default:0" json:"step_index"`
	Status         ProgressStatus `gorm:"size:32;not null;index:idx_contact_progress_due,priority:2" json:"status"`
	NextEligibleAt time.Time      `gorm:"not null;index:idx_contact_progress_due,priority:3" json:"next_eligible_at"`
	LastAttemptAt  *time.Time     `json:"last_attempt_at,omitempty"`
	LastTouchAt    *time.Time     `json:"last_touch_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`

	Contact *Contact `gorm:"foreignKey:ContactID;references:ID" json:"contact,omitempty"`
}

func (ContactProgress) TableName() string { return "contact_progress" }

// ContactProgressFilter provides filter fields for repository queries
type ContactProgressFilter struct {
	CampaignID *uint
	ContactID  *uint
	Status     *ProgressStatus
}

// ProgressUpdate is a guarded transition applied to a sendable progress row
type ProgressUpdate struct {
	Status         *ProgressStatus
	StepIndex      *int
	NextEligibleAt *time.Time
	LastAttemptAt  *time.Time
	LastTouchAt    *time.Time
}

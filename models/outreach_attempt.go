package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AttemptStatus is the delivery state of an outreach attempt
type AttemptStatus string

const (
	AttemptStatusQueued  AttemptStatus = "QUEUED"
	AttemptStatusSent    AttemptStatus = "SENT"
	AttemptStatusFailed  AttemptStatus = "FAILED"
	AttemptStatusBounced AttemptStatus = "BOUNCED"
)

// Valid checks if the status is valid
func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptStatusQueued, AttemptStatusSent, AttemptStatusFailed, AttemptStatusBounced:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AttemptStatus
func (s *AttemptStatus) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = ""
	case string:
		*s = AttemptStatus(v)
	case []byte:
		*s = AttemptStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AttemptStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AttemptStatus
func (s AttemptStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AttemptStatus: %s", s)
	}
	return string(s), nil
}

// OutreachAttempt is one ledger row per (campaign, contact, step)
// Table: outreach_attempts
// Indices: idempotency_key unique; (campaign_id, status, next_retry_at)
type OutreachAttempt struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	IdempotencyKey   string          `gorm:"size:191;not null;uniqueIndex:uk_outreach_attempts_idempotency_key" json:"idempotency_key"`
	CampaignID       uint            `gorm:"not null;index:idx_outreach_attempts_retry,priority:1" json:"campaign_id"`
	ContactID        uint            `gorm:"not null;index:idx_outreach_attempts_contact_id" json:"contact_id"`
	StepIndex        int             `gorm:"not null" json:"step_index"`
	StepKey          string          `gorm:"size:128" json:"step_key"`
	Status           AttemptStatus   `gorm:"size:16;not null;index:idx_outreach_attempts_retry,priority:2" json:"status"`
	RetryCount       int             `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries       int             `gorm:"not null;default:0" json:"max_retries"`
	NextRetryAt      *time.Time      `gorm:"index:idx_outreach_attempts_retry,priority:3" json:"next_retry_at,omitempty"`
	// Dispatches counts the first send and every claimed retry
	Dispatches       int             `gorm:"not null;default:0" json:"dispatches"`
	LastDispatchedAt *time.Time      `gorm:"index:idx_outreach_attempts_last_dispatched_at" json:"last_dispatched_at,omitempty"`
	ProviderRef      *string         `gorm:"size:255" json:"provider_ref,omitempty"`
	LastError        *string         `gorm:"type:text" json:"last_error,omitempty"`
	Metadata         json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

func (OutreachAttempt) TableName() string { return "outreach_attempts" }

// Terminal reports whether the attempt reached a final status
func (a *OutreachAttempt) Terminal() bool {
	return a.Status != AttemptStatusQueued
}

// RetryDue reports whether a scheduled retry can be dispatched at now
func (a *OutreachAttempt) RetryDue(now time.Time) bool {
	return a.Status == AttemptStatusQueued && a.RetryCount > 0 &&
		a.NextRetryAt != nil && !a.NextRetryAt.After(now)
}

// OutreachAttemptFilter provides filter fields for repository queries
type OutreachAttemptFilter struct {
	CampaignID    *uint
	ContactID     *uint
	Status        *AttemptStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// AttemptStats aggregates ledger rows of a campaign
type AttemptStats struct {
	Queued  int64 `json:"queued"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Bounced int64 `json:"bounced"`
}

// Delivered is the number of attempts accepted by the provider
func (s AttemptStats) Delivered() int64 {
	return s.Sent + s.Bounced
}

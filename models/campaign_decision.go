package models

import "time"

// DecisionAction is the verdict of the decision loop
type DecisionAction string

const (
	DecisionContinue DecisionAction = "CONTINUE"
	DecisionPause    DecisionAction = "PAUSE"
)

// CampaignDecision stores one evaluation of campaign performance
type CampaignDecision struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CampaignID    uint           `gorm:"not null;index:idx_campaign_decisions_campaign_id" json:"campaign_id"`
	Action        DecisionAction `gorm:"size:16;not null" json:"action"`
	Reason        string         `gorm:"type:text" json:"reason,omitempty"`
	SentCount     int64          `gorm:"not null" json:"sent_count"`
	BounceCount   int64          `gorm:"not null" json:"bounce_count"`
	ReplyCount    int64          `gorm:"not null" json:"reply_count"`
	PositiveCount int64          `gorm:"not null" json:"positive_count"`
	ReplyRate     float64        `gorm:"not null" json:"reply_rate"`
	PositiveRate  float64        `gorm:"not null" json:"positive_rate"`
	BounceRate    float64        `gorm:"not null" json:"bounce_rate"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

func (CampaignDecision) TableName() string { return "campaign_decisions" }

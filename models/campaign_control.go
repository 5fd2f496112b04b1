package models

import "time"

// CampaignControl carries the operator and decision-loop flags of a campaign
// A missing row means not paused, not killed and no daily quota
type CampaignControl struct {
	CampaignID uint      `gorm:"primaryKey;autoIncrement:false" json:"campaign_id"`
	Paused     bool      `gorm:"not null;default:false" json:"paused"`
	Killed     bool      `gorm:"not null;default:false" json:"killed"`
	DailyQuota int       `gorm:"not null;default:0" json:"daily_quota"`
	Reason     string    `gorm:"type:text" json:"reason,omitempty"`
	UpdatedBy  string    `gorm:"size:255" json:"updated_by,omitempty"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (CampaignControl) TableName() string { return "campaign_controls" }

// DefaultCampaignControl returns the flags of a campaign without a control row
func DefaultCampaignControl(campaignID uint) *CampaignControl {
	return &CampaignControl{CampaignID: campaignID}
}

// HasQuota reports whether a daily quota applies
func (c *CampaignControl) HasQuota() bool {
	return c.DailyQuota > 0
}

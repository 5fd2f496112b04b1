package models

import "time"

// CampaignLease grants exclusive write access to a campaign for a bounded time
// Table: campaign_leases
// One row per campaign; renewed in place by its owner, claimable by anyone once expired
type CampaignLease struct {
	CampaignID uint      `gorm:"primaryKey;autoIncrement:false" json:"campaign_id"`
	Owner      string    `gorm:"size:255;not null" json:"owner"`
	AcquiredAt time.Time `gorm:"not null" json:"acquired_at"`
	RenewedAt  time.Time `gorm:"not null" json:"renewed_at"`
	ExpiresAt  time.Time `gorm:"not null;index:idx_campaign_leases_expires_at" json:"expires_at"`
}

func (CampaignLease) TableName() string { return "campaign_leases" }

// HeldBy reports whether owner holds an unexpired lease at now
func (l *CampaignLease) HeldBy(owner string, now time.Time) bool {
	return l != nil && l.Owner == owner && l.ExpiresAt.After(now)
}

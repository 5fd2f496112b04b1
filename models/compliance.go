package models

import "time"

// Unsubscribe is a permanent opt-out of an email address
type Unsubscribe struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:320;not null;uniqueIndex:uk_unsubscribes_email" json:"email"`
	Source    string    `gorm:"size:64" json:"source,omitempty"`
	Reason    string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Unsubscribe) TableName() string { return "unsubscribes" }

// Suppression blocks every address of a domain
type Suppression struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Domain    string    `gorm:"size:255;not null;uniqueIndex:uk_suppressions_domain" json:"domain"`
	Source    string    `gorm:"size:64" json:"source,omitempty"`
	Reason    string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Suppression) TableName() string { return "suppressions" }

// Reply records an inbound answer from a contact
type Reply struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;index:idx_outreach_replies_campaign_contact,priority:1" json:"campaign_id"`
	ContactID  uint      `gorm:"not null;index:idx_outreach_replies_campaign_contact,priority:2" json:"contact_id"`
	Positive   bool      `gorm:"not null;default:false" json:"positive"`
	Note       string    `gorm:"type:text" json:"note,omitempty"`
	ReceivedAt time.Time `gorm:"not null" json:"received_at"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (Reply) TableName() string { return "outreach_replies" }

// ReplyStats aggregates replies of a campaign by distinct contact
type ReplyStats struct {
	Replied  int64 `json:"replied"`
	Positive int64 `json:"positive"`
}

package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/amirphl/orochi-outreach/utils"
	"gorm.io/gorm"
)

// Contact is a reachable person enrolled into campaigns
type Contact struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Email      string          `gorm:"size:320;not null;uniqueIndex:uk_contacts_email" json:"email"`
	Domain     string          `gorm:"size:255;not null;index:idx_contacts_domain" json:"domain"`
	Phone      string          `gorm:"size:32" json:"phone,omitempty"`
	FirstName  string          `gorm:"size:255" json:"first_name,omitempty"`
	LastName   string          `gorm:"size:255" json:"last_name,omitempty"`
	Company    string          `gorm:"size:255" json:"company,omitempty"`
	Attributes json.RawMessage `gorm:"type:jsonb" json:"attributes,omitempty"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

func (Contact) TableName() string { return "contacts" }

// BeforeSave normalises email and derives the domain
func (c *Contact) BeforeSave(tx *gorm.DB) error {
	c.Email = NormalizeEmail(c.Email)
	c.Domain = EmailDomain(c.Email)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeDomain trims, lower-cases and strips a leading "@" or "."
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimLeft(d, "@.")
}

// EmailDomain returns the normalised domain part of an email address
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return NormalizeDomain(email[at+1:])
}

// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/orochi-outreach/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
}

// CampaignRepository defines operations for campaign configurations
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByName(ctx context.Context, name string) (*models.Campaign, error)
	ListRunnable(ctx context.Context) ([]*models.Campaign, error)
	Upsert(ctx context.Context, campaign *models.Campaign) error
}

// CampaignControlRepository stores per-campaign control flags
type CampaignControlRepository interface {
	// Get returns the stored flags or the defaults when no row exists
	Get(ctx context.Context, campaignID uint) (*models.CampaignControl, error)
	Upsert(ctx context.Context, control *models.CampaignControl) error
	SetPaused(ctx context.Context, campaignID uint, paused bool, reason, updatedBy string) error
	SetKilled(ctx context.Context, campaignID uint, killed bool, reason, updatedBy string) error
}

// CampaignLeaseRepository defines the single-writer lease operations
type CampaignLeaseRepository interface {
	// TryClaim inserts or takes over the lease of a campaign; granted is false on contention
	TryClaim(ctx context.Context, campaignID uint, owner string, now time.Time, ttl time.Duration) (granted bool, err error)
	Release(ctx context.Context, campaignID uint, owner string, now time.Time) error
	ByCampaignID(ctx context.Context, campaignID uint) (*models.CampaignLease, error)
}

// ContactRepository defines operations for contacts
type ContactRepository interface {
	Repository[models.Contact, any]
	ByEmail(ctx context.Context, email string) (*models.Contact, error)
	// UpsertByEmail inserts the contact or refreshes the profile fields of an existing one
	UpsertByEmail(ctx context.Context, contact *models.Contact) error
}

// ContactProgressRepository defines operations for per-campaign contact state
type ContactProgressRepository interface {
	Repository[models.ContactProgress, models.ContactProgressFilter]
	ByContactAndCampaign(ctx context.Context, contactID, campaignID uint) (*models.ContactProgress, error)
	// Enroll creates ACTIVE rows for contacts not yet enrolled, returning the number created
	Enroll(ctx context.Context, campaignID uint, contactIDs []uint, now time.Time) (int64, error)
	// ListDue returns sendable, due rows with their contact, excluding blocked contacts
	ListDue(ctx context.Context, campaignID uint, now time.Time, limit int) ([]*models.ContactProgress, error)
	// Transition applies update only while the row is still in a sendable status
	Transition(ctx context.Context, id uint, update models.ProgressUpdate) (bool, error)
	// SweepBlocked moves sendable contacts matching the compliance registry to their absorbing status
	SweepBlocked(ctx context.Context, campaignID uint) (int64, error)
	// SweepReplied moves sendable contacts with a recorded reply out of the sequence
	SweepReplied(ctx context.Context, campaignID uint) (int64, error)
	CountSendable(ctx context.Context, campaignID uint) (int64, error)
	CountByStatus(ctx context.Context, campaignID uint) (map[models.ProgressStatus]int64, error)
}

// OutreachAttemptRepository defines ledger operations
type OutreachAttemptRepository interface {
	Repository[models.OutreachAttempt, models.OutreachAttemptFilter]
	ByIdempotencyKey(ctx context.Context, key string) (*models.OutreachAttempt, error)
	// CreateIfAbsent inserts the attempt unless its idempotency key exists
	CreateIfAbsent(ctx context.Context, attempt *models.OutreachAttempt) (created bool, err error)
	// UpdateQueued applies updates only while the attempt is QUEUED
	UpdateQueued(ctx context.Context, id uint, updates map[string]any) (bool, error)
	// ClaimRetry takes a due retry, clearing next_retry_at
	ClaimRetry(ctx context.Context, id uint, now time.Time) (bool, error)
	// FailOrphans marks QUEUED attempts without a scheduled retry untouched since cutoff as FAILED
	FailOrphans(ctx context.Context, campaignID uint, cutoff, now time.Time, reason string) (int64, error)
	AggregateByCampaign(ctx context.Context, campaignID uint) (models.AttemptStats, error)
	CountDispatchedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.OutreachAttempt, error)
}

// ComplianceRepository defines operations for the unsubscribe and suppression registries
type ComplianceRepository interface {
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
	IsSuppressed(ctx context.Context, domain string) (bool, error)
	AddUnsubscribe(ctx context.Context, row *models.Unsubscribe) error
	AddSuppression(ctx context.Context, row *models.Suppression) error
}

// ReplyRepository defines operations for inbound replies
type ReplyRepository interface {
	Save(ctx context.Context, reply *models.Reply) error
	StatsByCampaign(ctx context.Context, campaignID uint) (models.ReplyStats, error)
}

// OrchestratorRunRepository stores tick summaries
type OrchestratorRunRepository interface {
	Save(ctx context.Context, run *models.OrchestratorRun) error
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.OrchestratorRun, error)
}

// CampaignDecisionRepository stores decision loop verdicts
type CampaignDecisionRepository interface {
	Save(ctx context.Context, decision *models.CampaignDecision) error
	LatestByCampaign(ctx context.Context, campaignID uint) (*models.CampaignDecision, error)
}

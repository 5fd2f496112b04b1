package businessflow

import (
	"context"
	"errors"
	"log"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
	"gorm.io/gorm"
)

// ComplianceFlow takes opt-outs, domain blocks and replies from the outside world
type ComplianceFlow interface {
	Unsubscribe(ctx context.Context, req *dto.UnsubscribeRequest) error
	Suppress(ctx context.Context, req *dto.SuppressionRequest) error
	RecordReply(ctx context.Context, campaignID uint, req *dto.ReplyRequest) (*dto.ReplyResponse, error)
}

// ComplianceFlowImpl implements ComplianceFlow
type ComplianceFlowImpl struct {
	registry     *orchestrator.ComplianceRegistry
	campaignRepo repository.CampaignRepository
	contactRepo  repository.ContactRepository
	progressRepo repository.ContactProgressRepository
	replyRepo    repository.ReplyRepository
	db           *gorm.DB
	logger       *log.Logger
}

func NewComplianceFlow(
	registry *orchestrator.ComplianceRegistry,
	campaignRepo repository.CampaignRepository,
	contactRepo repository.ContactRepository,
	progressRepo repository.ContactProgressRepository,
	replyRepo repository.ReplyRepository,
	db *gorm.DB,
	logger *log.Logger,
) ComplianceFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &ComplianceFlowImpl{
		registry:     registry,
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		progressRepo: progressRepo,
		replyRepo:    replyRepo,
		db:           db,
		logger:       logger,
	}
}

func (f *ComplianceFlowImpl) Unsubscribe(ctx context.Context, req *dto.UnsubscribeRequest) error {
	source := req.Source
	if source == "" {
		source = "api"
	}
	if err := f.registry.Unsubscribe(ctx, req.Email, source, req.Reason); err != nil {
		if errors.Is(err, orchestrator.ErrInvalidAddress) {
			return NewBusinessError("INVALID_EMAIL", "Invalid email address", err)
		}
		return NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to record unsubscribe", err)
	}
	f.logger.Printf("compliance: unsubscribed %s source=%s", models.NormalizeEmail(req.Email), source)
	return nil
}

func (f *ComplianceFlowImpl) Suppress(ctx context.Context, req *dto.SuppressionRequest) error {
	source := req.Source
	if source == "" {
		source = "api"
	}
	if err := f.registry.Suppress(ctx, req.Domain, source, req.Reason); err != nil {
		if errors.Is(err, orchestrator.ErrInvalidAddress) {
			return NewBusinessError("INVALID_DOMAIN", "Invalid domain", err)
		}
		return NewBusinessError("SUPPRESS_FAILED", "Failed to record suppression", err)
	}
	f.logger.Printf("compliance: suppressed domain %s source=%s", models.NormalizeDomain(req.Domain), source)
	return nil
}

// RecordReply stores the reply and takes the contact out of the sequence in one transaction
func (f *ComplianceFlowImpl) RecordReply(ctx context.Context, campaignID uint, req *dto.ReplyRequest) (*dto.ReplyResponse, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessErrorf("CAMPAIGN_NOT_FOUND", "Campaign %d not found", ErrCampaignNotFound, campaignID)
	}

	contact, err := f.contactRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LOOKUP_FAILED", "Failed to lookup contact", err)
	}
	if contact == nil {
		return nil, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}
	progress, err := f.progressRepo.ByContactAndCampaign(ctx, contact.ID, campaignID)
	if err != nil {
		return nil, NewBusinessError("PROGRESS_LOOKUP_FAILED", "Failed to lookup contact progress", err)
	}
	if progress == nil {
		return nil, NewBusinessError("CONTACT_NOT_ENROLLED", "Contact is not enrolled in campaign", ErrContactNotEnrolled)
	}

	now := utils.UTCNow()
	receivedAt := now
	if req.ReceivedAt != nil {
		receivedAt = req.ReceivedAt.UTC()
	}
	reply := &models.Reply{
		CampaignID: campaignID,
		ContactID:  contact.ID,
		Positive:   req.Positive,
		Note:       req.Note,
		ReceivedAt: receivedAt,
		CreatedAt:  now,
	}

	status := models.ProgressStatusExhausted
	if req.Positive {
		status = models.ProgressStatusQualified
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.replyRepo.Save(txCtx, reply); err != nil {
			return err
		}
		// A contact already in a terminal status keeps it
		_, err := f.progressRepo.Transition(txCtx, progress.ID, models.ProgressUpdate{Status: &status})
		return err
	})
	if err != nil {
		return nil, NewBusinessError("REPLY_RECORD_FAILED", "Failed to record reply", err)
	}

	current, err := f.progressRepo.ByID(ctx, progress.ID)
	if err != nil || current == nil {
		current = progress
	}
	f.logger.Printf("compliance: reply campaign=%d contact=%d positive=%t status=%s", campaignID, contact.ID, req.Positive, current.Status)

	return &dto.ReplyResponse{
		ReplyID:    reply.ID,
		CampaignID: campaignID,
		ContactID:  contact.ID,
		Status:     string(current.Status),
	}, nil
}

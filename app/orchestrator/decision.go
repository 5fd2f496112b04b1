package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
)

// DecisionConfig holds the performance thresholds of the decision loop
type DecisionConfig struct {
	MinSampleSize      int64
	ReplyRateThreshold float64
	// MaxBounceRate pauses a campaign whose bounce rate exceeds it; zero disables the rule
	MaxBounceRate float64
}

func (c DecisionConfig) Validate() error {
	if c.MinSampleSize <= 0 {
		return fmt.Errorf("%w: min sample size must be positive", ErrInvalidDecisionCfg)
	}
	if c.ReplyRateThreshold < 0 || c.ReplyRateThreshold > 1 {
		return fmt.Errorf("%w: reply rate threshold must be within [0,1]", ErrInvalidDecisionCfg)
	}
	if c.MaxBounceRate < 0 || c.MaxBounceRate > 1 {
		return fmt.Errorf("%w: max bounce rate must be within [0,1]", ErrInvalidDecisionCfg)
	}
	return nil
}

// DecisionLoop evaluates campaign performance and pauses underperformers
type DecisionLoop struct {
	campaigns repository.CampaignRepository
	ledger    *AttemptLedger
	replies   repository.ReplyRepository
	controls  repository.CampaignControlRepository
	decisions repository.CampaignDecisionRepository
	cfg       DecisionConfig
	logger    *log.Logger
	now       func() time.Time
}

func NewDecisionLoop(
	campaigns repository.CampaignRepository,
	ledger *AttemptLedger,
	replies repository.ReplyRepository,
	controls repository.CampaignControlRepository,
	decisions repository.CampaignDecisionRepository,
	cfg DecisionConfig,
	logger *log.Logger,
	now func() time.Time,
) (*DecisionLoop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = utils.UTCNow
	}
	return &DecisionLoop{
		campaigns: campaigns,
		ledger:    ledger,
		replies:   replies,
		controls:  controls,
		decisions: decisions,
		cfg:       cfg,
		logger:    logger,
		now:       now,
	}, nil
}

// Evaluate computes the campaign's rates, pauses it when a threshold is crossed and stores the verdict
func (d *DecisionLoop) Evaluate(ctx context.Context, campaignID uint) (*models.CampaignDecision, error) {
	campaign, err := d.campaigns.ByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, fmt.Errorf("%w: id %d", ErrCampaignNotFound, campaignID)
	}

	attempts, err := d.ledger.Stats(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	replies, err := d.replies.StatsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	decision := &models.CampaignDecision{
		CampaignID:    campaignID,
		Action:        models.DecisionContinue,
		SentCount:     attempts.Delivered(),
		BounceCount:   attempts.Bounced,
		ReplyCount:    replies.Replied,
		PositiveCount: replies.Positive,
		CreatedAt:     d.now(),
	}
	if decision.SentCount > 0 {
		sent := float64(decision.SentCount)
		decision.ReplyRate = float64(decision.ReplyCount) / sent
		decision.PositiveRate = float64(decision.PositiveCount) / sent
		decision.BounceRate = float64(decision.BounceCount) / sent
	}

	switch {
	case decision.SentCount < d.cfg.MinSampleSize:
		decision.Reason = fmt.Sprintf("sample %d below minimum %d", decision.SentCount, d.cfg.MinSampleSize)
	case d.cfg.MaxBounceRate > 0 && decision.BounceRate > d.cfg.MaxBounceRate:
		decision.Action = models.DecisionPause
		decision.Reason = fmt.Sprintf("bounce rate %.4f above %.4f", decision.BounceRate, d.cfg.MaxBounceRate)
	case decision.ReplyRate < d.cfg.ReplyRateThreshold:
		decision.Action = models.DecisionPause
		decision.Reason = fmt.Sprintf("reply rate %.4f below %.4f", decision.ReplyRate, d.cfg.ReplyRateThreshold)
	default:
		decision.Reason = fmt.Sprintf("reply rate %.4f meets %.4f", decision.ReplyRate, d.cfg.ReplyRateThreshold)
	}

	if decision.Action == models.DecisionPause {
		control, err := d.controls.Get(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if !control.Paused {
			if err := d.controls.SetPaused(ctx, campaignID, true, decision.Reason, "decision-loop"); err != nil {
				return nil, err
			}
			d.logger.Printf("decision: paused campaign=%d: %s", campaignID, decision.Reason)
		}
	}

	if err := d.decisions.Save(ctx, decision); err != nil {
		return nil, fmt.Errorf("save decision of campaign %d: %w", campaignID, err)
	}
	decisionsTotal.WithLabelValues(string(decision.Action)).Inc()
	return decision, nil
}

// EvaluateAll runs Evaluate for every runnable campaign, logging failures
func (d *DecisionLoop) EvaluateAll(ctx context.Context) {
	campaigns, err := d.campaigns.ListRunnable(ctx)
	if err != nil {
		d.logger.Printf("decision: list campaigns failed: %v", err)
		return
	}
	for _, c := range campaigns {
		if ctx.Err() != nil {
			return
		}
		decision, err := d.Evaluate(ctx, c.ID)
		if err != nil {
			d.logger.Printf("decision: evaluate campaign=%d failed: %v", c.ID, err)
			continue
		}
		d.logger.Printf("decision: campaign=%d action=%s sent=%d replies=%d bounce=%d", c.ID, decision.Action, decision.SentCount, decision.ReplyCount, decision.BounceCount)
	}
}

// Package orchestrator runs outreach campaigns: one leased writer per campaign, ticking through
// due contacts, gating on compliance, dispatching through a channel adapter and recording every
// attempt in an idempotent ledger.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelAdapter delivers one message. Failures are reported in the result, never by panicking.
type ChannelAdapter interface {
	Send(ctx context.Context, contact *models.Contact, message models.OutreachMessage, metadata map[string]string) models.DeliveryResult
}

// MessageSource renders the content of a sequence step for a contact
type MessageSource interface {
	Render(ctx context.Context, campaign *models.Campaign, contact *models.Contact, stepIndex int) (models.OutreachMessage, error)
}

// EngineConfig holds the tick policy
type EngineConfig struct {
	Owner       string
	LeaseTTL    time.Duration
	TickTimeout time.Duration
	BatchSize   int
	// OrphanAge is how long a QUEUED attempt may sit without an outcome; defaults to LeaseTTL
	OrphanAge time.Duration
}

func (c *EngineConfig) applyDefaults() {
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = utils.DefaultLeaseTTL
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = utils.DefaultTickTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = utils.DefaultBatchSize
	}
	if c.OrphanAge <= 0 {
		c.OrphanAge = c.LeaseTTL
	}
}

// EngineDeps wires the engine to its stores and collaborators
type EngineDeps struct {
	DB         *gorm.DB
	Campaigns  repository.CampaignRepository
	Controls   repository.CampaignControlRepository
	Progress   repository.ContactProgressRepository
	Runs       repository.OrchestratorRunRepository
	Leases     *LeaseStore
	Ledger     *AttemptLedger
	Compliance *ComplianceRegistry
	Quota      QuotaCounter
	Adapters   map[models.Channel]ChannelAdapter
	Content    MessageSource
	Logger     *log.Logger
	Now        func() time.Time
}

// TickOptions adjusts a single tick
type TickOptions struct {
	// ReleaseLease gives the lease up when the tick ends instead of keeping it for the next tick
	ReleaseLease bool
}

// Engine executes campaign ticks
type Engine struct {
	db         *gorm.DB
	campaigns  repository.CampaignRepository
	controls   repository.CampaignControlRepository
	progress   repository.ContactProgressRepository
	runs       repository.OrchestratorRunRepository
	leases     *LeaseStore
	ledger     *AttemptLedger
	compliance *ComplianceRegistry
	quota      QuotaCounter
	adapters   map[models.Channel]ChannelAdapter
	content    MessageSource
	selector   Selector
	cfg        EngineConfig
	logger     *log.Logger
	now        func() time.Time
}

func NewEngine(deps EngineDeps, cfg EngineConfig) (*Engine, error) {
	if cfg.Owner == "" {
		return nil, ErrOwnerRequired
	}
	cfg.applyDefaults()

	e := &Engine{
		db:         deps.DB,
		campaigns:  deps.Campaigns,
		controls:   deps.Controls,
		progress:   deps.Progress,
		runs:       deps.Runs,
		leases:     deps.Leases,
		ledger:     deps.Ledger,
		compliance: deps.Compliance,
		quota:      deps.Quota,
		adapters:   deps.Adapters,
		content:    deps.Content,
		cfg:        cfg,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	if e.now == nil {
		e.now = utils.UTCNow
	}
	return e, nil
}

// Owner is the identity this engine claims leases with
func (e *Engine) Owner() string {
	return e.cfg.Owner
}

// tickState is shared by every contact of one tick
type tickState struct {
	run        *models.OrchestratorRun
	campaign   *models.Campaign
	adapter    ChannelAdapter
	control    *models.CampaignControl
	quotaUsed  int64
	quotaLimit int64
}

func (t *tickState) quotaExhausted() bool {
	return t.quotaLimit > 0 && t.quotaUsed >= t.quotaLimit
}

// Tick runs one bounded unit of work for a campaign. A denied lease yields a LEASE_DENIED run and no error.
func (e *Engine) Tick(ctx context.Context, campaignID uint, opts TickOptions) (*models.OrchestratorRun, error) {
	started := e.now()
	run := &models.OrchestratorRun{
		RunID:      uuid.New(),
		CampaignID: campaignID,
		Owner:      e.cfg.Owner,
		StartedAt:  started,
	}

	campaign, err := e.campaigns.ByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, fmt.Errorf("%w: id %d", ErrCampaignNotFound, campaignID)
	}
	if campaign.Status != models.CampaignStatusActive {
		return nil, fmt.Errorf("%w: id %d is %s", ErrCampaignNotActive, campaignID, campaign.Status)
	}
	adapter, ok := e.adapters[campaign.Channel]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoChannelAdapter, campaign.Channel)
	}

	// Claim
	if _, granted, err := e.leases.TryClaim(ctx, campaignID, e.cfg.Owner, e.cfg.LeaseTTL); err != nil {
		return nil, fmt.Errorf("claim lease of campaign %d: %w", campaignID, err)
	} else if !granted {
		run.Outcome = models.RunOutcomeLeaseDenied
		run.FinishedAt = e.now()
		ticksTotal.WithLabelValues(string(run.Outcome)).Inc()
		return run, nil
	}

	// Guard
	control, err := e.controls.Get(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("read control flags of campaign %d: %w", campaignID, err)
	}
	if control.Killed {
		run.Outcome = models.RunOutcomeKilled
		e.releaseLease(ctx, campaignID)
		return e.finish(ctx, run)
	}
	if control.Paused {
		run.Outcome = models.RunOutcomePaused
		return e.finish(ctx, run)
	}

	e.housekeeping(ctx, campaignID)

	ts := &tickState{run: run, campaign: campaign, adapter: adapter, control: control}
	if control.HasQuota() {
		used, err := e.quota.Used(ctx, campaignID, started)
		if err != nil {
			return nil, fmt.Errorf("read daily quota of campaign %d: %w", campaignID, err)
		}
		ts.quotaUsed = used
		ts.quotaLimit = int64(control.DailyQuota)
		if ts.quotaExhausted() {
			run.Outcome = models.RunOutcomeQuotaExhausted
			return e.finish(ctx, run)
		}
	}

	// Select batch
	due, err := e.progress.ListDue(ctx, campaignID, started, e.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("select batch of campaign %d: %w", campaignID, err)
	}

	// Per contact; the deadline is checked between contacts, never during a dispatch
	run.Outcome = models.RunOutcomeCompleted
	deadline := started.Add(e.cfg.TickTimeout)
	for _, p := range due {
		if !e.now().Before(deadline) {
			run.TimedOut = true
			e.logger.Printf("orchestrator: tick timeout campaign=%d run=%s after %d contacts", campaignID, run.RunID, run.Attempted+run.Skipped+run.Duplicates+run.Blocked)
			break
		}
		if ctx.Err() != nil {
			break
		}

		res := e.processContact(ctx, ts, p)
		tally(run, res)
		if res.outcome == stopKilled {
			run.Outcome = models.RunOutcomeKilled
			break
		}
		if res.outcome == stopQuota {
			run.Outcome = models.RunOutcomeQuotaExhausted
			break
		}
	}

	// Finalize
	release := opts.ReleaseLease || run.Outcome == models.RunOutcomeKilled
	if !release {
		remaining, err := e.progress.CountSendable(ctx, campaignID)
		if err != nil {
			e.logger.Printf("orchestrator: count sendable campaign=%d: %v", campaignID, err)
		} else if remaining == 0 {
			release = true
		}
	}
	if release {
		e.releaseLease(ctx, campaignID)
	}
	return e.finish(ctx, run)
}

// housekeeping closes orphaned attempts and moves replied or blocked contacts to terminal statuses
func (e *Engine) housekeeping(ctx context.Context, campaignID uint) {
	if n, err := e.ledger.ReapOrphans(ctx, campaignID, e.cfg.OrphanAge); err != nil {
		e.logger.Printf("orchestrator: reap orphans campaign=%d: %v", campaignID, err)
	} else if n > 0 {
		e.logger.Printf("orchestrator: failed %d orphaned attempts campaign=%d", n, campaignID)
	}
	if n, err := e.progress.SweepReplied(ctx, campaignID); err != nil {
		e.logger.Printf("orchestrator: sweep replies campaign=%d: %v", campaignID, err)
	} else if n > 0 {
		e.logger.Printf("orchestrator: %d replied contacts left the sequence campaign=%d", n, campaignID)
	}
	if n, err := e.progress.SweepBlocked(ctx, campaignID); err != nil {
		e.logger.Printf("orchestrator: sweep blocked campaign=%d: %v", campaignID, err)
	} else if n > 0 {
		e.logger.Printf("orchestrator: %d blocked contacts closed campaign=%d", n, campaignID)
	}
}

func (e *Engine) releaseLease(ctx context.Context, campaignID uint) {
	if err := e.leases.Release(context.WithoutCancel(ctx), campaignID, e.cfg.Owner); err != nil {
		e.logger.Printf("orchestrator: release lease campaign=%d: %v", campaignID, err)
	}
}

func (e *Engine) finish(ctx context.Context, run *models.OrchestratorRun) (*models.OrchestratorRun, error) {
	run.FinishedAt = e.now()
	ticksTotal.WithLabelValues(string(run.Outcome)).Inc()

	if err := e.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		return run, fmt.Errorf("save run summary of campaign %d: %w", run.CampaignID, err)
	}

	e.logger.Printf("orchestrator: tick campaign=%d run=%s outcome=%s attempted=%d succeeded=%d failed=%d skipped=%d duplicates=%d blocked=%d timed_out=%t",
		run.CampaignID, run.RunID, run.Outcome, run.Attempted, run.Succeeded, run.Failed,
		run.Skipped, run.Duplicates, run.Blocked, run.TimedOut)
	return run, nil
}

type contactOutcome int

const (
	outcomeSent contactOutcome = iota
	outcomeFailed
	outcomeSkipped
	outcomeDuplicate
	outcomeBlocked
	stopKilled
	stopQuota
)

type contactResult struct {
	outcome    contactOutcome
	dispatched bool
}

func tally(run *models.OrchestratorRun, res contactResult) {
	if res.dispatched {
		run.Attempted++
	}
	switch res.outcome {
	case outcomeSent:
		run.Succeeded++
	case outcomeFailed:
		run.Failed++
	case outcomeSkipped:
		run.Skipped++
	case outcomeDuplicate:
		run.Duplicates++
	case outcomeBlocked:
		run.Blocked++
	}
}

// contactWork carries the state of one contact through its failure boundary
type contactWork struct {
	progress   *models.ContactProgress
	selection  Selection
	attempt    *models.OutreachAttempt
	result     *models.DeliveryResult
	settled    bool
	dispatched bool
}

// processContact is the failure boundary: errors and panics become a failed outcome and,
// when an attempt exists, a ledger transition
func (e *Engine) processContact(ctx context.Context, ts *tickState, p *models.ContactProgress) (res contactResult) {
	w := &contactWork{progress: p}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("orchestrator: panic contact=%d campaign=%d: %v", p.ContactID, p.CampaignID, r)
			res = contactResult{outcome: e.settleUnfinished(ctx, ts, w, fmt.Errorf("panic: %v", r)), dispatched: w.dispatched}
		}
	}()

	outcome, err := e.handleContact(ctx, ts, w)
	if err != nil {
		e.logger.Printf("orchestrator: contact=%d campaign=%d: %v", p.ContactID, p.CampaignID, err)
		return contactResult{outcome: e.settleUnfinished(ctx, ts, w, err), dispatched: w.dispatched}
	}
	return contactResult{outcome: outcome, dispatched: w.dispatched}
}

func (e *Engine) handleContact(ctx context.Context, ts *tickState, w *contactWork) (contactOutcome, error) {
	p := w.progress
	contact := p.Contact
	if contact == nil {
		return outcomeFailed, fmt.Errorf("%w: progress %d", ErrContactNotLoaded, p.ID)
	}
	campaignID := ts.campaign.ID

	// Kill switch is re-read before every dispatch
	control, err := e.controls.Get(ctx, campaignID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("read control flags: %w", err)
	}
	if control.Killed {
		return stopKilled, nil
	}

	// Fine compliance check, never skipped
	verdict, err := e.compliance.Check(ctx, contact.Email, contact.Domain)
	if err != nil {
		return outcomeFailed, fmt.Errorf("compliance check: %w", err)
	}
	if verdict.Blocked() {
		status := verdict.ProgressStatus()
		if _, err := e.progress.Transition(ctx, p.ID, models.ProgressUpdate{Status: &status}); err != nil {
			return outcomeFailed, err
		}
		blockedTotal.WithLabelValues(string(verdict)).Inc()
		e.logger.Printf("orchestrator: blocked contact=%d campaign=%d reason=%s", contact.ID, campaignID, verdict)
		return outcomeBlocked, nil
	}

	now := e.now()
	sel := e.selector.NextStep(p, ts.campaign, now)
	w.selection = sel
	switch sel.Kind {
	case SequenceExhausted:
		status := models.ProgressStatusExhausted
		if _, err := e.progress.Transition(ctx, p.ID, models.ProgressUpdate{Status: &status}); err != nil {
			return outcomeFailed, err
		}
		return outcomeSkipped, nil
	case InCooldown:
		readyAt := sel.ReadyAt
		if _, err := e.progress.Transition(ctx, p.ID, models.ProgressUpdate{NextEligibleAt: &readyAt}); err != nil {
			return outcomeFailed, err
		}
		return outcomeSkipped, nil
	}

	if ts.quotaExhausted() {
		return stopQuota, nil
	}

	key := IdempotencyKey(campaignID, contact.ID, sel.StepIndex)
	metadata := map[string]string{
		"idempotency_key": key,
		"run_id":          ts.run.RunID.String(),
		"owner":           e.cfg.Owner,
		"channel":         string(ts.campaign.Channel),
		"step_key":        sel.Step.Key,
	}
	attempt, created, err := e.ledger.CreateIfAbsent(ctx, NewAttempt{
		Key:        key,
		CampaignID: campaignID,
		ContactID:  contact.ID,
		StepIndex:  sel.StepIndex,
		StepKey:    sel.Step.Key,
		MaxRetries: ts.campaign.MaxRetries,
		Metadata:   metadata,
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("record attempt: %w", err)
	}

	switch {
	case created:
	case attempt.RetryDue(now):
		claimed, err := e.ledger.ClaimRetry(ctx, attempt.ID)
		if err != nil {
			return outcomeFailed, fmt.Errorf("claim retry: %w", err)
		}
		if !claimed {
			return outcomeDuplicate, nil
		}
		metadata["retry"] = strconv.Itoa(attempt.RetryCount)
	default:
		if err := e.reconcile(ctx, ts, p, attempt, now); err != nil {
			return outcomeFailed, err
		}
		return outcomeDuplicate, nil
	}
	w.attempt = attempt

	// First sends and retries both count against the daily quota
	ts.quotaUsed++
	if _, err := e.quota.Add(ctx, campaignID, now); err != nil {
		e.logger.Printf("orchestrator: quota add campaign=%d: %v", campaignID, err)
	}

	message, err := e.content.Render(ctx, ts.campaign, contact, sel.StepIndex)
	if err != nil {
		return outcomeFailed, fmt.Errorf("render step %d: %w", sel.StepIndex, err)
	}

	// Adapters are wrapped in a per-call timeout when they are registered
	began := time.Now()
	w.dispatched = true
	result := ts.adapter.Send(ctx, contact, message, metadata)
	w.result = &result
	dispatchDuration.WithLabelValues(string(ts.campaign.Channel)).Observe(time.Since(began).Seconds())

	return e.settle(ctx, ts, w, result)
}

// settle records the dispatch outcome and advances the contact in one transaction
func (e *Engine) settle(ctx context.Context, ts *tickState, w *contactWork, result models.DeliveryResult) (contactOutcome, error) {
	p := w.progress
	attemptID := w.attempt.ID
	stepIndex := w.selection.StepIndex
	now := e.now()

	outcome := outcomeFailed
	err := repository.WithTransaction(ctx, e.db, func(txCtx context.Context) error {
		update := models.ProgressUpdate{LastAttemptAt: &now}

		switch {
		case result.Bounced:
			if err := e.ledger.MarkBounced(txCtx, attemptID, result.ProviderRef, result.Err); err != nil {
				return err
			}
			update.Status = utils.ToPtr(models.ProgressStatusExhausted)

		case result.Err == nil:
			if err := e.ledger.MarkSent(txCtx, attemptID, result.ProviderRef); err != nil {
				return err
			}
			next := stepIndex + 1
			update.StepIndex = &next
			update.Status = utils.ToPtr(models.ProgressStatusContacted)
			update.LastTouchAt = &now
			update.NextEligibleAt = utils.ToPtr(now.Add(ts.campaign.WaitBefore(next)))
			outcome = outcomeSent

		default:
			attempt, err := e.ledger.MarkFailed(txCtx, attemptID, result.Err, result.Retryable)
			if err != nil {
				return err
			}
			switch {
			case attempt.Status == models.AttemptStatusQueued && attempt.NextRetryAt != nil:
				update.NextEligibleAt = attempt.NextRetryAt
			case result.Retryable:
				// Retries exhausted: skip this touch
				next := stepIndex + 1
				update.StepIndex = &next
				update.NextEligibleAt = utils.ToPtr(now.Add(ts.campaign.WaitBefore(next)))
			default:
				update.Status = utils.ToPtr(models.ProgressStatusExhausted)
			}
		}

		if _, err := e.progress.Transition(txCtx, p.ID, update); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("settle attempt %d: %w", attemptID, err)
	}
	w.settled = true

	if result.Err != nil || result.Bounced {
		e.logger.Printf("orchestrator: delivery failed contact=%d campaign=%d step=%d retryable=%t bounced=%t: %v",
			p.ContactID, p.CampaignID, stepIndex, result.Retryable, result.Bounced, result.Err)
	}
	return outcome, nil
}

// settleUnfinished records a failure that happened outside the adapter. Before dispatch the
// attempt becomes a retryable failure. After dispatch only the adapter's own result may be
// recorded; otherwise the attempt stays QUEUED until the orphan reaper closes it.
func (e *Engine) settleUnfinished(ctx context.Context, ts *tickState, w *contactWork, cause error) (outcome contactOutcome) {
	outcome = outcomeFailed
	if w.attempt == nil || w.settled {
		return outcome
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("orchestrator: panic settling attempt=%d: %v", w.attempt.ID, r)
			outcome = outcomeFailed
		}
	}()

	result := models.DeliveryResult{Err: cause, Retryable: true}
	if w.dispatched {
		if w.result == nil {
			e.logger.Printf("orchestrator: attempt=%d outcome unknown, left queued: %v", w.attempt.ID, cause)
			return outcome
		}
		result = *w.result
	}
	settled, err := e.settle(context.WithoutCancel(ctx), ts, w, result)
	if err != nil {
		e.logger.Printf("orchestrator: attempt=%d left queued: %v", w.attempt.ID, err)
		return outcomeFailed
	}
	return settled
}

// reconcile aligns a contact with the ledger when its current step was already attempted
func (e *Engine) reconcile(ctx context.Context, ts *tickState, p *models.ContactProgress, attempt *models.OutreachAttempt, now time.Time) error {
	if attempt.StepIndex != p.StepIndex {
		return nil
	}

	next := attempt.StepIndex + 1
	var update models.ProgressUpdate
	switch attempt.Status {
	case models.AttemptStatusSent:
		touched := now
		if attempt.CompletedAt != nil {
			touched = *attempt.CompletedAt
		}
		update = models.ProgressUpdate{
			StepIndex:      &next,
			Status:         utils.ToPtr(models.ProgressStatusContacted),
			LastTouchAt:    &touched,
			NextEligibleAt: utils.ToPtr(touched.Add(ts.campaign.WaitBefore(next))),
		}
	case models.AttemptStatusFailed:
		update = models.ProgressUpdate{
			StepIndex:      &next,
			NextEligibleAt: utils.ToPtr(now.Add(ts.campaign.WaitBefore(next))),
		}
	case models.AttemptStatusBounced:
		update = models.ProgressUpdate{Status: utils.ToPtr(models.ProgressStatusExhausted)}
	default:
		// Still queued: wait for the retry, or for the orphan reaper to close it
		at := now.Add(e.cfg.OrphanAge)
		if attempt.NextRetryAt != nil {
			at = *attempt.NextRetryAt
		}
		update = models.ProgressUpdate{NextEligibleAt: &at}
	}

	if _, err := e.progress.Transition(ctx, p.ID, update); err != nil {
		return fmt.Errorf("reconcile progress %d: %w", p.ID, err)
	}
	return nil
}

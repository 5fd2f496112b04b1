package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
)

// orphanReason is stored on attempts whose outcome was never recorded
const orphanReason = "outcome unknown: dispatch did not complete"

// maxBackoffShift keeps base * 2^n inside int64 nanoseconds for sane bases
const maxBackoffShift = 20

// IdempotencyKey identifies one touch of one contact in one campaign
func IdempotencyKey(campaignID, contactID uint, stepIndex int) string {
	return fmt.Sprintf("cmp:%d:ct:%d:st:%d", campaignID, contactID, stepIndex)
}

// RetryDelay is base * 2^retryCount
func RetryDelay(base time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxBackoffShift {
		retryCount = maxBackoffShift
	}
	return base * time.Duration(1<<uint(retryCount))
}

// NewAttempt describes an attempt to record before dispatch
type NewAttempt struct {
	Key        string
	CampaignID uint
	ContactID  uint
	StepIndex  int
	StepKey    string
	// MaxRetries overrides the ledger default when positive
	MaxRetries int
	Metadata   map[string]string
}

// AttemptLedger is the append-mostly record of every dispatch
type AttemptLedger struct {
	repo       repository.OutreachAttemptRepository
	baseDelay  time.Duration
	maxRetries int
	now        func() time.Time
}

func NewAttemptLedger(repo repository.OutreachAttemptRepository, baseDelay time.Duration, maxRetries int, now func() time.Time) *AttemptLedger {
	if baseDelay <= 0 {
		baseDelay = utils.DefaultRetryBase
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if now == nil {
		now = utils.UTCNow
	}
	return &AttemptLedger{repo: repo, baseDelay: baseDelay, maxRetries: maxRetries, now: now}
}

// CreateIfAbsent records the attempt unless its key exists; the stored row is returned either way
func (l *AttemptLedger) CreateIfAbsent(ctx context.Context, in NewAttempt) (*models.OutreachAttempt, bool, error) {
	maxRetries := l.maxRetries
	if in.MaxRetries > 0 {
		maxRetries = in.MaxRetries
	}

	var metadata json.RawMessage
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, false, fmt.Errorf("encode attempt metadata: %w", err)
		}
		metadata = raw
	}

	now := l.now()
	attempt := &models.OutreachAttempt{
		IdempotencyKey:   in.Key,
		CampaignID:       in.CampaignID,
		ContactID:        in.ContactID,
		StepIndex:        in.StepIndex,
		StepKey:          in.StepKey,
		Status:           models.AttemptStatusQueued,
		MaxRetries:       maxRetries,
		Dispatches:       1,
		LastDispatchedAt: &now,
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := l.repo.CreateIfAbsent(ctx, attempt)
	if err != nil {
		return nil, false, err
	}
	if created {
		attemptsTotal.WithLabelValues(string(models.AttemptStatusQueued)).Inc()
		return attempt, true, nil
	}

	existing, err := l.repo.ByIdempotencyKey(ctx, in.Key)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("%w: key %s conflicted but is not readable", ErrAttemptNotFound, in.Key)
	}
	return existing, false, nil
}

// ClaimRetry takes a due retry for re-dispatch under the same key
func (l *AttemptLedger) ClaimRetry(ctx context.Context, attemptID uint) (bool, error) {
	return l.repo.ClaimRetry(ctx, attemptID, l.now())
}

func (l *AttemptLedger) MarkSent(ctx context.Context, attemptID uint, providerRef string) error {
	now := l.now()
	updates := map[string]any{
		"status":        models.AttemptStatusSent,
		"next_retry_at": nil,
		"completed_at":  now,
		"updated_at":    now,
	}
	if providerRef != "" {
		updates["provider_ref"] = providerRef
	}
	return l.transition(ctx, attemptID, models.AttemptStatusSent, updates)
}

func (l *AttemptLedger) MarkBounced(ctx context.Context, attemptID uint, providerRef string, cause error) error {
	now := l.now()
	updates := map[string]any{
		"status":        models.AttemptStatusBounced,
		"next_retry_at": nil,
		"completed_at":  now,
		"updated_at":    now,
	}
	if providerRef != "" {
		updates["provider_ref"] = providerRef
	}
	if cause != nil {
		updates["last_error"] = utils.Truncate(cause.Error(), utils.MaxErrorLength)
	}
	return l.transition(ctx, attemptID, models.AttemptStatusBounced, updates)
}

// MarkFailed schedules a retry while retries remain, otherwise dead-letters the attempt as FAILED
func (l *AttemptLedger) MarkFailed(ctx context.Context, attemptID uint, cause error, scheduleRetry bool) (*models.OutreachAttempt, error) {
	attempt, err := l.repo.ByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, fmt.Errorf("%w: id %d", ErrAttemptNotFound, attemptID)
	}
	if attempt.Status != models.AttemptStatusQueued {
		return nil, fmt.Errorf("%w: id %d is %s", ErrAttemptNotQueued, attemptID, attempt.Status)
	}

	now := l.now()
	msg := "unknown error"
	if cause != nil {
		msg = utils.Truncate(cause.Error(), utils.MaxErrorLength)
	}

	updates := map[string]any{
		"last_error": msg,
		"updated_at": now,
	}
	if scheduleRetry && attempt.RetryCount < attempt.MaxRetries {
		next := now.Add(RetryDelay(l.baseDelay, attempt.RetryCount))
		attempt.RetryCount++
		attempt.NextRetryAt = &next
		updates["retry_count"] = attempt.RetryCount
		updates["next_retry_at"] = next
	} else {
		attempt.Status = models.AttemptStatusFailed
		attempt.NextRetryAt = nil
		attempt.CompletedAt = &now
		updates["status"] = models.AttemptStatusFailed
		updates["next_retry_at"] = nil
		updates["completed_at"] = now
	}
	attempt.LastError = &msg
	attempt.UpdatedAt = now

	ok, err := l.repo.UpdateQueued(ctx, attemptID, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrAttemptNotQueued, attemptID)
	}

	attemptsTotal.WithLabelValues(string(attempt.Status)).Inc()
	return attempt, nil
}

// ReapOrphans fails attempts left QUEUED without a retry for longer than olderThan
func (l *AttemptLedger) ReapOrphans(ctx context.Context, campaignID uint, olderThan time.Duration) (int64, error) {
	now := l.now()
	n, err := l.repo.FailOrphans(ctx, campaignID, now.Add(-olderThan), now, orphanReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		attemptsTotal.WithLabelValues(string(models.AttemptStatusFailed)).Add(float64(n))
	}
	return n, nil
}

func (l *AttemptLedger) Stats(ctx context.Context, campaignID uint) (models.AttemptStats, error) {
	return l.repo.AggregateByCampaign(ctx, campaignID)
}

func (l *AttemptLedger) transition(ctx context.Context, attemptID uint, to models.AttemptStatus, updates map[string]any) error {
	ok, err := l.repo.UpdateQueued(ctx, attemptID, updates)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: id %d cannot become %s", ErrAttemptNotQueued, attemptID, to)
	}
	attemptsTotal.WithLabelValues(string(to)).Inc()
	return nil
}

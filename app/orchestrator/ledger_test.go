package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	testingutil "github.com/amirphl/orochi-outreach/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "cmp:7:ct:42:st:0", orchestrator.IdempotencyKey(7, 42, 0))
	assert.NotEqual(t, orchestrator.IdempotencyKey(7, 42, 0), orchestrator.IdempotencyKey(7, 42, 1))
	assert.NotEqual(t, orchestrator.IdempotencyKey(1, 23, 0), orchestrator.IdempotencyKey(12, 3, 0))
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  time.Duration
	}{
		{"first retry waits the base", 0, time.Minute},
		{"second doubles", 1, 2 * time.Minute},
		{"third doubles again", 2, 4 * time.Minute},
		{"negative counts as zero", -3, time.Minute},
		{"shift is capped", 40, time.Minute << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orchestrator.RetryDelay(time.Minute, tt.count))
		})
	}
}

func TestAttemptLedger(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewOutreachAttemptRepository(testDB.DB)
		clock := newFakeClock(epoch)
		ledger := orchestrator.NewAttemptLedger(repo, 30*time.Second, 1, clock.Now)
		ctx := context.Background()

		campaign, err := fixtures.CreateTestCampaign(2, 0)
		require.NoError(t, err)
		contact, err := fixtures.CreateTestContact("ledger-unit@example.com")
		require.NoError(t, err)

		newAttempt := func(step int) orchestrator.NewAttempt {
			return orchestrator.NewAttempt{
				Key:        orchestrator.IdempotencyKey(campaign.ID, contact.ID, step),
				CampaignID: campaign.ID,
				ContactID:  contact.ID,
				StepIndex:  step,
				StepKey:    campaign.Steps[step].Key,
				Metadata:   map[string]string{"owner": "engine-a"},
			}
		}

		t.Run("CreateIfAbsentReturnsStoredRow", func(t *testing.T) {
			first, created, err := ledger.CreateIfAbsent(ctx, newAttempt(0))
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, 1, first.MaxRetries)
			assert.True(t, first.CreatedAt.Equal(epoch))

			var meta map[string]string
			require.NoError(t, json.Unmarshal(first.Metadata, &meta))
			assert.Equal(t, "engine-a", meta["owner"])

			again, created, err := ledger.CreateIfAbsent(ctx, newAttempt(0))
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, again.ID)
		})

		t.Run("MarkFailedSchedulesThenDeadLetters", func(t *testing.T) {
			attempt, _, err := ledger.CreateIfAbsent(ctx, newAttempt(1))
			require.NoError(t, err)

			updated, err := ledger.MarkFailed(ctx, attempt.ID, errors.New("timeout"), true)
			require.NoError(t, err)
			assert.Equal(t, models.AttemptStatusQueued, updated.Status)
			assert.Equal(t, 1, updated.RetryCount)
			require.NotNil(t, updated.NextRetryAt)
			assert.True(t, updated.NextRetryAt.Equal(epoch.Add(30*time.Second)))

			clock.Advance(30 * time.Second)
			claimed, err := ledger.ClaimRetry(ctx, attempt.ID)
			require.NoError(t, err)
			require.True(t, claimed)

			updated, err = ledger.MarkFailed(ctx, attempt.ID, errors.New("timeout again"), true)
			require.NoError(t, err)
			assert.Equal(t, models.AttemptStatusFailed, updated.Status)
			assert.Nil(t, updated.NextRetryAt)
			require.NotNil(t, updated.CompletedAt)

			err = ledger.MarkSent(ctx, attempt.ID, "late")
			assert.ErrorIs(t, err, orchestrator.ErrAttemptNotQueued)

			_, err = ledger.MarkFailed(ctx, attempt.ID, errors.New("x"), true)
			assert.ErrorIs(t, err, orchestrator.ErrAttemptNotQueued)
		})

		t.Run("MarkFailedUnknownAttempt", func(t *testing.T) {
			_, err := ledger.MarkFailed(ctx, 987654, errors.New("x"), false)
			assert.ErrorIs(t, err, orchestrator.ErrAttemptNotFound)
		})

		t.Run("StatsCountOutcomes", func(t *testing.T) {
			other, err := fixtures.CreateTestCampaign(1, 0)
			require.NoError(t, err)
			for i, mark := range []func(id uint) error{
				func(id uint) error { return ledger.MarkSent(ctx, id, "ok") },
				func(id uint) error { return ledger.MarkBounced(ctx, id, "b", errors.New("no such user")) },
			} {
				c, err := fixtures.CreateTestContact("stats-" + string(rune('a'+i)) + "@example.com")
				require.NoError(t, err)
				a, _, err := ledger.CreateIfAbsent(ctx, orchestrator.NewAttempt{
					Key:        orchestrator.IdempotencyKey(other.ID, c.ID, 0),
					CampaignID: other.ID,
					ContactID:  c.ID,
					StepKey:    "step-1",
				})
				require.NoError(t, err)
				require.NoError(t, mark(a.ID))
			}

			stats, err := ledger.Stats(ctx, other.ID)
			require.NoError(t, err)
			assert.Equal(t, models.AttemptStats{Sent: 1, Bounced: 1}, stats)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestComplianceRegistry(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		registry := orchestrator.NewComplianceRegistry(repository.NewComplianceRepository(testDB.DB))
		ctx := context.Background()

		require.NoError(t, registry.Unsubscribe(ctx, "  Opted.Out@Example.com ", "form", ""))
		require.NoError(t, registry.Suppress(ctx, "@Rival.io", "ops", "competitor"))

		tests := []struct {
			name   string
			email  string
			domain string
			want   orchestrator.Verdict
		}{
			{"clear", "someone@example.com", "example.com", orchestrator.VerdictClear},
			{"unsubscribed any case", "OPTED.OUT@example.com", "", orchestrator.VerdictUnsubscribed},
			{"suppressed domain", "ceo@rival.io", "rival.io", orchestrator.VerdictSuppressed},
			{"domain derived from email", "cto@RIVAL.io", "", orchestrator.VerdictSuppressed},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := registry.Check(ctx, tt.email, tt.domain)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.want.Blocked(), tt.want != orchestrator.VerdictClear)
			})
		}

		assert.Equal(t, models.ProgressStatusSuppressed, orchestrator.VerdictSuppressed.ProgressStatus())
		assert.Equal(t, models.ProgressStatusUnsubscribed, orchestrator.VerdictUnsubscribed.ProgressStatus())

		assert.ErrorIs(t, registry.Unsubscribe(ctx, "not-an-address", "form", ""), orchestrator.ErrInvalidAddress)
		assert.ErrorIs(t, registry.Suppress(ctx, "localhost", "ops", ""), orchestrator.ErrInvalidAddress)

		// Repeated registrations are accepted
		require.NoError(t, registry.Unsubscribe(ctx, "opted.out@example.com", "reply", "again"))
		return nil
	})
	require.NoError(t, err)
}

package businessflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	testingutil "github.com/amirphl/orochi-outreach/testing"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordingTicker struct {
	opts orchestrator.TickOptions
	err  error
}

func (r *recordingTicker) Tick(_ context.Context, campaignID uint, opts orchestrator.TickOptions) (*models.OrchestratorRun, error) {
	r.opts = opts
	if r.err != nil {
		return nil, r.err
	}
	return &models.OrchestratorRun{
		ID:         1,
		RunID:      uuid.New(),
		CampaignID: campaignID,
		Owner:      "engine-a",
		Outcome:    models.RunOutcomeCompleted,
		Attempted:  2,
		Succeeded:  2,
	}, nil
}

type fixedEvaluator struct{}

func (fixedEvaluator) Evaluate(_ context.Context, campaignID uint) (*models.CampaignDecision, error) {
	return &models.CampaignDecision{CampaignID: campaignID, Action: models.DecisionPause, ReplyRate: 0.01}, nil
}

func TestCampaignControlFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := context.Background()
		fixtures := testingutil.NewTestFixtures(testDB)
		ticker := &recordingTicker{}
		runs := repository.NewOrchestratorRunRepository(testDB.DB)
		attempts := repository.NewOutreachAttemptRepository(testDB.DB)
		flow := NewCampaignControlFlow(
			repository.NewCampaignRepository(testDB.DB),
			repository.NewCampaignControlRepository(testDB.DB),
			runs,
			attempts,
			ticker,
			fixedEvaluator{},
		)

		campaign, err := fixtures.CreateTestCampaign(2, 0)
		require.NoError(t, err)

		t.Run("DefaultControl", func(t *testing.T) {
			res, err := flow.GetControl(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, campaign.ID, res.CampaignID)
			assert.False(t, res.Paused)
			assert.False(t, res.Killed)
		})

		t.Run("UpdateControlKeepsUntouchedFlags", func(t *testing.T) {
			_, err := flow.UpdateControl(ctx, campaign.ID, &dto.UpdateCampaignControlRequest{DailyQuota: utils.ToPtr(75)}, "alice")
			require.NoError(t, err)

			res, err := flow.UpdateControl(ctx, campaign.ID, &dto.UpdateCampaignControlRequest{Paused: utils.ToPtr(true), Reason: "holiday"}, "bob")
			require.NoError(t, err)
			assert.True(t, res.Paused)
			assert.Equal(t, 75, res.DailyQuota)

			stored, err := flow.GetControl(ctx, campaign.ID)
			require.NoError(t, err)
			assert.True(t, stored.Paused)
			assert.Equal(t, 75, stored.DailyQuota)
			assert.Equal(t, "bob", stored.UpdatedBy)
			assert.Equal(t, "holiday", stored.Reason)
		})

		t.Run("UpdateControlNeedsAField", func(t *testing.T) {
			_, err := flow.UpdateControl(ctx, campaign.ID, &dto.UpdateCampaignControlRequest{Reason: "nothing"}, "alice")
			assert.ErrorIs(t, err, ErrCampaignUpdateMissing)
		})

		t.Run("UnknownCampaign", func(t *testing.T) {
			_, err := flow.GetControl(ctx, 777777)
			assert.True(t, IsCampaignNotFound(err))
			_, err = flow.Tick(ctx, 777777, nil)
			assert.True(t, IsCampaignNotFound(err))
		})

		t.Run("TickReleasesLeaseByDefault", func(t *testing.T) {
			res, err := flow.Tick(ctx, campaign.ID, nil)
			require.NoError(t, err)
			assert.True(t, ticker.opts.ReleaseLease)
			assert.Equal(t, string(models.RunOutcomeCompleted), res.Outcome)
			assert.Equal(t, 2, res.Succeeded)
			assert.NotEmpty(t, res.RunID)

			_, err = flow.Tick(ctx, campaign.ID, &dto.TickRequest{KeepLease: true})
			require.NoError(t, err)
			assert.False(t, ticker.opts.ReleaseLease)
		})

		t.Run("TickOnInactiveCampaign", func(t *testing.T) {
			ticker.err = fmt.Errorf("campaign %d: %w", campaign.ID, orchestrator.ErrCampaignNotActive)
			defer func() { ticker.err = nil }()

			_, err := flow.Tick(ctx, campaign.ID, nil)
			var be *BusinessError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "CAMPAIGN_NOT_ACTIVE", be.Code)

			ticker.err = errors.New("lease table locked")
			_, err = flow.Tick(ctx, campaign.ID, nil)
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "TICK_FAILED", be.Code)
		})

		t.Run("Evaluate", func(t *testing.T) {
			res, err := flow.Evaluate(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, string(models.DecisionPause), res.Action)
		})

		t.Run("ListRunsNewestFirst", func(t *testing.T) {
			base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				require.NoError(t, runs.Save(ctx, &models.OrchestratorRun{
					RunID:      uuid.New(),
					CampaignID: campaign.ID,
					Owner:      "engine-a",
					Outcome:    models.RunOutcomeCompleted,
					StartedAt:  base.Add(time.Duration(i) * time.Minute),
					FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
					Attempted:  i,
				}))
			}

			res, err := flow.ListRuns(ctx, campaign.ID, &dto.ListRunsRequest{PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, 1, res.Page)
			require.Len(t, res.Items, 2)
			assert.Equal(t, 2, res.Items[0].Attempted)
			assert.Equal(t, 1, res.Items[1].Attempted)

			res, err = flow.ListRuns(ctx, campaign.ID, &dto.ListRunsRequest{Page: 2, PageSize: 2})
			require.NoError(t, err)
			require.Len(t, res.Items, 1)
			assert.Equal(t, 0, res.Items[0].Attempted)

			_, err = flow.ListRuns(ctx, campaign.ID, &dto.ListRunsRequest{PageSize: 500})
			assert.ErrorIs(t, err, ErrInvalidPageSize)
		})

		t.Run("ExportAttempts", func(t *testing.T) {
			contacts, err := fixtures.EnrollTestContacts(campaign, "export.example.com", 2, utils.UTCNow())
			require.NoError(t, err)
			now := utils.UTCNow()
			for i, c := range contacts {
				_, err := attempts.CreateIfAbsent(ctx, &models.OutreachAttempt{
					IdempotencyKey: orchestrator.IdempotencyKey(campaign.ID, c.ID, 0),
					CampaignID:     campaign.ID,
					ContactID:      c.ID,
					StepKey:        "step-1",
					Status:         []models.AttemptStatus{models.AttemptStatusSent, models.AttemptStatusBounced}[i],
					CreatedAt:      now,
					UpdatedAt:      now,
				})
				require.NoError(t, err)
			}

			name, data, err := flow.ExportAttempts(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("campaign_%d_attempts.xlsx", campaign.ID), name)

			xl, err := excelize.OpenReader(bytes.NewReader(data))
			require.NoError(t, err)
			defer func() { _ = xl.Close() }()
			assert.Equal(t, sanitizeSheetName(campaign.Name), xl.GetSheetName(0))

			rows, err := xl.GetRows(xl.GetSheetName(0))
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, "idempotency_key", rows[0][1])
			assert.Equal(t, orchestrator.IdempotencyKey(campaign.ID, contacts[0].ID, 0), rows[1][1])
			assert.Equal(t, string(models.AttemptStatusSent), rows[1][5])
			assert.Equal(t, string(models.AttemptStatusBounced), rows[2][5])
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "q1_launch_ eu", sanitizeSheetName("q1/launch[ eu"))
	assert.Equal(t, "Sheet", sanitizeSheetName("  "))
	assert.Len(t, sanitizeSheetName("a-very-long-campaign-name-that-overflows-excel"), 31)
}

func TestNormalizePage(t *testing.T) {
	page, size, err := normalizePage(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, size)

	_, _, err = normalizePage(-1, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, _, err = normalizePage(1, maxPageSize+1)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

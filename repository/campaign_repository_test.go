package repository_test

import (
	"testing"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	testingutil "github.com/amirphl/orochi-outreach/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCampaignRepository(testDB.DB)
		controls := repository.NewCampaignControlRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("UpsertByName", func(t *testing.T) {
			c := &models.Campaign{
				Name:            "spring-launch",
				Channel:         models.ChannelProof,
				Steps:           models.SequenceSteps{{Key: "intro", Body: "Hi"}},
				CooldownSeconds: 3600,
				Status:          models.CampaignStatusActive,
			}
			require.NoError(t, repo.Upsert(ctx, c))
			require.NotZero(t, c.ID)
			firstID, firstUUID := c.ID, c.UUID

			again := &models.Campaign{
				Name:            "spring-launch",
				Channel:         models.ChannelEmail,
				Steps:           models.SequenceSteps{{Key: "intro", Body: "Hi"}, {Key: "follow-up", Body: "Again"}},
				CooldownSeconds: 7200,
				Status:          models.CampaignStatusActive,
			}
			require.NoError(t, repo.Upsert(ctx, again))
			assert.Equal(t, firstID, again.ID)
			assert.Equal(t, firstUUID, again.UUID)

			stored, err := repo.ByName(ctx, "spring-launch")
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.ChannelEmail, stored.Channel)
			assert.Len(t, stored.Steps, 2)
			assert.Equal(t, "follow-up", stored.Steps[1].Key)
			assert.Equal(t, int64(7200), stored.CooldownSeconds)
		})

		t.Run("ListRunnableSkipsKilledAndArchived", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			running := &models.Campaign{Name: "runnable", Channel: models.ChannelProof, Steps: models.SequenceSteps{{Key: "a", Body: "b"}}}
			killed := &models.Campaign{Name: "killed", Channel: models.ChannelProof, Steps: models.SequenceSteps{{Key: "a", Body: "b"}}}
			archived := &models.Campaign{Name: "archived", Channel: models.ChannelProof, Steps: models.SequenceSteps{{Key: "a", Body: "b"}}, Status: models.CampaignStatusArchived}
			for _, c := range []*models.Campaign{running, killed, archived} {
				require.NoError(t, repo.Save(ctx, c))
			}
			require.NoError(t, controls.SetKilled(ctx, killed.ID, true, "stop", "test"))
			require.NoError(t, controls.SetPaused(ctx, running.ID, true, "hold", "test"))

			campaigns, err := repo.ListRunnable(ctx)
			require.NoError(t, err)

			names := make([]string, 0, len(campaigns))
			for _, c := range campaigns {
				names = append(names, c.Name)
			}
			assert.Equal(t, []string{"runnable"}, names)
		})

		t.Run("ByIDNotFound", func(t *testing.T) {
			c, err := repo.ByID(ctx, 999999)
			require.NoError(t, err)
			assert.Nil(t, c)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignControlRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCampaignControlRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		campaign, err := fixtures.CreateTestCampaign(1, 0)
		require.NoError(t, err)

		t.Run("DefaultsWithoutRow", func(t *testing.T) {
			control, err := repo.Get(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, campaign.ID, control.CampaignID)
			assert.False(t, control.Paused)
			assert.False(t, control.Killed)
			assert.False(t, control.HasQuota())
		})

		t.Run("SetFlagsKeepOthers", func(t *testing.T) {
			require.NoError(t, repo.Upsert(ctx, &models.CampaignControl{CampaignID: campaign.ID, DailyQuota: 40, UpdatedBy: "ops"}))
			require.NoError(t, repo.SetPaused(ctx, campaign.ID, true, "low replies", "decision-loop"))

			control, err := repo.Get(ctx, campaign.ID)
			require.NoError(t, err)
			assert.True(t, control.Paused)
			assert.False(t, control.Killed)
			assert.Equal(t, 40, control.DailyQuota)
			assert.Equal(t, "decision-loop", control.UpdatedBy)

			require.NoError(t, repo.SetKilled(ctx, campaign.ID, true, "abort", "ops"))
			control, err = repo.Get(ctx, campaign.ID)
			require.NoError(t, err)
			assert.True(t, control.Paused)
			assert.True(t, control.Killed)
		})

		return nil
	})
	require.NoError(t, err)
}

package repository_test

import (
	"testing"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	testingutil "github.com/amirphl/orochi-outreach/testing"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactProgressRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewContactProgressRepository(testDB.DB)
		compliance := repository.NewComplianceRepository(testDB.DB)
		replies := repository.NewReplyRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := utils.UTCNow()

		t.Run("EnrollSkipsExisting", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)
			a, err := fixtures.CreateTestContact("enroll-a@example.com")
			require.NoError(t, err)
			b, err := fixtures.CreateTestContact("enroll-b@example.com")
			require.NoError(t, err)

			n, err := repo.Enroll(ctx, campaign.ID, []uint{a.ID}, now)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = repo.Enroll(ctx, campaign.ID, []uint{a.ID, b.ID}, now)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			row, err := repo.ByContactAndCampaign(ctx, b.ID, campaign.ID)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, models.ProgressStatusActive, row.Status)
			assert.Equal(t, 0, row.StepIndex)
		})

		t.Run("ListDueExcludesBlockedAndFuture", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)
			due, err := fixtures.EnrollTestContacts(campaign, "due.example.com", 2, now.Add(-time.Minute))
			require.NoError(t, err)
			_, err = fixtures.EnrollTestContacts(campaign, "later.example.com", 1, now.Add(time.Hour))
			require.NoError(t, err)
			optedOut, err := fixtures.EnrollTestContacts(campaign, "optout.example.com", 1, now.Add(-time.Minute))
			require.NoError(t, err)
			_, err = fixtures.EnrollTestContacts(campaign, "blocked.example.com", 1, now.Add(-time.Minute))
			require.NoError(t, err)

			require.NoError(t, compliance.AddUnsubscribe(ctx, &models.Unsubscribe{Email: optedOut[0].Email, CreatedAt: now}))
			require.NoError(t, compliance.AddSuppression(ctx, &models.Suppression{Domain: "blocked.example.com", CreatedAt: now}))

			rows, err := repo.ListDue(ctx, campaign.ID, now, 10)
			require.NoError(t, err)
			require.Len(t, rows, 2)

			ids := []uint{rows[0].ContactID, rows[1].ContactID}
			assert.ElementsMatch(t, []uint{due[0].ID, due[1].ID}, ids)
			for _, r := range rows {
				require.NotNil(t, r.Contact)
				assert.Equal(t, "due.example.com", r.Contact.Domain)
			}

			limited, err := repo.ListDue(ctx, campaign.ID, now, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})

		t.Run("TransitionGuardsTerminalStatus", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)
			contacts, err := fixtures.EnrollTestContacts(campaign, "guard.example.com", 1, now)
			require.NoError(t, err)
			row, err := fixtures.Progress(campaign.ID, contacts[0].ID)
			require.NoError(t, err)

			step := 1
			contacted := models.ProgressStatusContacted
			ok, err := repo.Transition(ctx, row.ID, models.ProgressUpdate{Status: &contacted, StepIndex: &step, LastTouchAt: &now})
			require.NoError(t, err)
			assert.True(t, ok)

			unsubscribed := models.ProgressStatusUnsubscribed
			ok, err = repo.Transition(ctx, row.ID, models.ProgressUpdate{Status: &unsubscribed})
			require.NoError(t, err)
			assert.True(t, ok)

			active := models.ProgressStatusActive
			ok, err = repo.Transition(ctx, row.ID, models.ProgressUpdate{Status: &active})
			require.NoError(t, err)
			assert.False(t, ok)

			row, err = fixtures.Progress(campaign.ID, contacts[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.ProgressStatusUnsubscribed, row.Status)
			assert.Equal(t, 1, row.StepIndex)

			ok, err = repo.Transition(ctx, row.ID, models.ProgressUpdate{})
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run("SweepBlocked", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)
			unsub, err := fixtures.EnrollTestContacts(campaign, "sweep.example.com", 1, now)
			require.NoError(t, err)
			suppressed, err := fixtures.EnrollTestContacts(campaign, "sweep-suppressed.example.com", 1, now)
			require.NoError(t, err)
			untouched, err := fixtures.EnrollTestContacts(campaign, "sweep-clear.example.com", 1, now)
			require.NoError(t, err)

			require.NoError(t, compliance.AddUnsubscribe(ctx, &models.Unsubscribe{Email: unsub[0].Email, CreatedAt: now}))
			require.NoError(t, compliance.AddSuppression(ctx, &models.Suppression{Domain: "sweep-suppressed.example.com", CreatedAt: now}))

			n, err := repo.SweepBlocked(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			row, err := fixtures.Progress(campaign.ID, unsub[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.ProgressStatusUnsubscribed, row.Status)
			row, err = fixtures.Progress(campaign.ID, suppressed[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.ProgressStatusSuppressed, row.Status)
			row, err = fixtures.Progress(campaign.ID, untouched[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.ProgressStatusActive, row.Status)
		})

		t.Run("SweepReplied", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)
			contacts, err := fixtures.EnrollTestContacts(campaign, "replies.example.com", 3, now)
			require.NoError(t, err)

			require.NoError(t, replies.Save(ctx, &models.Reply{CampaignID: campaign.ID, ContactID: contacts[0].ID, Positive: true, ReceivedAt: now, CreatedAt: now}))
			require.NoError(t, replies.Save(ctx, &models.Reply{CampaignID: campaign.ID, ContactID: contacts[1].ID, Positive: false, ReceivedAt: now, CreatedAt: now}))

			n, err := repo.SweepReplied(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			counts, err := repo.CountByStatus(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), counts[models.ProgressStatusQualified])
			assert.Equal(t, int64(1), counts[models.ProgressStatusExhausted])
			assert.Equal(t, int64(1), counts[models.ProgressStatusActive])

			sendable, err := repo.CountSendable(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), sendable)

			stats, err := replies.StatsByCampaign(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ReplyStats{Replied: 2, Positive: 1}, stats)
		})

		return nil
	})
	require.NoError(t, err)
}

package repository_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/orochi-outreach/repository"
	testingutil "github.com/amirphl/orochi-outreach/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignLeaseRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewCampaignLeaseRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		ttl := 5 * time.Minute

		t.Run("FreshClaim", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)

			granted, err := repo.TryClaim(ctx, campaign.ID, "worker-a", base, ttl)
			require.NoError(t, err)
			assert.True(t, granted)

			lease, err := repo.ByCampaignID(ctx, campaign.ID)
			require.NoError(t, err)
			require.NotNil(t, lease)
			assert.Equal(t, "worker-a", lease.Owner)
			assert.True(t, lease.ExpiresAt.Equal(base.Add(ttl)))
			assert.True(t, lease.HeldBy("worker-a", base.Add(time.Minute)))
		})

		t.Run("ContendedClaimDenied", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)

			granted, err := repo.TryClaim(ctx, campaign.ID, "worker-a", base, ttl)
			require.NoError(t, err)
			require.True(t, granted)

			granted, err = repo.TryClaim(ctx, campaign.ID, "worker-b", base.Add(time.Minute), ttl)
			require.NoError(t, err)
			assert.False(t, granted)

			lease, err := repo.ByCampaignID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, "worker-a", lease.Owner)
		})

		t.Run("OwnerRenewKeepsAcquiredAt", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)

			_, err = repo.TryClaim(ctx, campaign.ID, "worker-a", base, ttl)
			require.NoError(t, err)

			renewAt := base.Add(2 * time.Minute)
			granted, err := repo.TryClaim(ctx, campaign.ID, "worker-a", renewAt, ttl)
			require.NoError(t, err)
			assert.True(t, granted)

			lease, err := repo.ByCampaignID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.True(t, lease.AcquiredAt.Equal(base))
			assert.True(t, lease.RenewedAt.Equal(renewAt))
			assert.True(t, lease.ExpiresAt.Equal(renewAt.Add(ttl)))
		})

		t.Run("ExpiredLeaseTakenOver", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)

			_, err = repo.TryClaim(ctx, campaign.ID, "worker-a", base, ttl)
			require.NoError(t, err)

			later := base.Add(ttl + time.Second)
			granted, err := repo.TryClaim(ctx, campaign.ID, "worker-b", later, ttl)
			require.NoError(t, err)
			assert.True(t, granted)

			lease, err := repo.ByCampaignID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, "worker-b", lease.Owner)
			assert.True(t, lease.AcquiredAt.Equal(later))
		})

		t.Run("ReleaseFreesLease", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)

			_, err = repo.TryClaim(ctx, campaign.ID, "worker-a", base, ttl)
			require.NoError(t, err)

			// Another owner's release is a no-op
			require.NoError(t, repo.Release(ctx, campaign.ID, "worker-b", base.Add(time.Second)))
			granted, err := repo.TryClaim(ctx, campaign.ID, "worker-b", base.Add(2*time.Second), ttl)
			require.NoError(t, err)
			assert.False(t, granted)

			require.NoError(t, repo.Release(ctx, campaign.ID, "worker-a", base.Add(3*time.Second)))
			granted, err = repo.TryClaim(ctx, campaign.ID, "worker-b", base.Add(4*time.Second), ttl)
			require.NoError(t, err)
			assert.True(t, granted)
		})

		t.Run("ConcurrentClaimsGrantOne", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(2, 0)
			require.NoError(t, err)

			const workers = 8
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				granted []string
				errs    []error
			)
			for i := 0; i < workers; i++ {
				owner := fmt.Sprintf("worker-%d", i)
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := repo.TryClaim(ctx, campaign.ID, owner, base, ttl)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						errs = append(errs, err)
						return
					}
					if ok {
						granted = append(granted, owner)
					}
				}()
			}
			wg.Wait()

			require.Empty(t, errs)
			require.Len(t, granted, 1)

			lease, err := repo.ByCampaignID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, granted[0], lease.Owner)
		})

		t.Run("MissingLease", func(t *testing.T) {
			lease, err := repo.ByCampaignID(ctx, 999999)
			require.NoError(t, err)
			assert.Nil(t, lease)
		})

		return nil
	})
	require.NoError(t, err)
}

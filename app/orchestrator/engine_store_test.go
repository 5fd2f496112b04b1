package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockEngine builds an engine over a postgres dialect backed by sqlmock
func newMockEngine(t *testing.T) (*orchestrator.Engine, sqlmock.Sqlmock, *scriptedAdapter) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	clock := newFakeClock(epoch)
	attempts := repository.NewOutreachAttemptRepository(db)
	adapter := &scriptedAdapter{}
	engine, err := orchestrator.NewEngine(orchestrator.EngineDeps{
		DB:         db,
		Campaigns:  repository.NewCampaignRepository(db),
		Controls:   repository.NewCampaignControlRepository(db),
		Progress:   repository.NewContactProgressRepository(db),
		Runs:       repository.NewOrchestratorRunRepository(db),
		Leases:     orchestrator.NewLeaseStore(repository.NewCampaignLeaseRepository(db), clock.Now),
		Ledger:     orchestrator.NewAttemptLedger(attempts, 0, 3, clock.Now),
		Compliance: orchestrator.NewComplianceRegistry(repository.NewComplianceRepository(db)),
		Quota:      orchestrator.NewLedgerQuotaCounter(attempts),
		Adapters:   map[models.Channel]orchestrator.ChannelAdapter{models.ChannelProof: adapter},
		Content:    stepContent{},
		Logger:     utils.DiscardLogger(),
		Now:        clock.Now,
	}, defaultEngineConfig())
	require.NoError(t, err)
	return engine, mock, adapter
}

func TestTickSurfacesStoreFailures(t *testing.T) {
	t.Run("CampaignLookup", func(t *testing.T) {
		engine, mock, adapter := newMockEngine(t)
		mock.ExpectQuery(`SELECT \* FROM "campaigns"`).WillReturnError(errors.New("connection reset by peer"))

		run, err := engine.Tick(context.Background(), 1, orchestrator.TickOptions{})
		require.Error(t, err)
		assert.Nil(t, run)
		assert.Contains(t, err.Error(), "connection reset by peer")
		assert.Empty(t, adapter.Calls())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LeaseClaim", func(t *testing.T) {
		engine, mock, adapter := newMockEngine(t)
		rows := sqlmock.NewRows([]string{"id", "name", "channel", "steps", "max_retries", "status"}).
			AddRow(1, "spring", string(models.ChannelProof), `[{"key":"step-1","body":"Hi"}]`, 3, string(models.CampaignStatusActive))
		mock.ExpectQuery(`SELECT \* FROM "campaigns"`).WillReturnRows(rows)
		mock.ExpectExec(`INSERT INTO "campaign_leases"`).WillReturnError(errors.New("deadlock detected"))

		run, err := engine.Tick(context.Background(), 1, orchestrator.TickOptions{})
		require.Error(t, err)
		assert.Nil(t, run)
		assert.Contains(t, err.Error(), "claim lease of campaign 1")
		assert.Contains(t, err.Error(), "deadlock detected")
		assert.Empty(t, adapter.Calls())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

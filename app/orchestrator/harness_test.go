package orchestrator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	testingutil "github.com/amirphl/orochi-outreach/testing"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/stretchr/testify/require"
)

const testOwner = "engine-a"

// epoch is a fixed mid-day instant so daily quota windows never straddle midnight
var epoch = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sendCall struct {
	ContactID uint
	Key       string
	StepKey   string
	Retry     string
}

// scriptedAdapter records every send; script decides the result and may panic
type scriptedAdapter struct {
	mu     sync.Mutex
	calls  []sendCall
	script func(call int, contact *models.Contact) models.DeliveryResult
}

func (a *scriptedAdapter) Send(ctx context.Context, contact *models.Contact, message models.OutreachMessage, metadata map[string]string) models.DeliveryResult {
	a.mu.Lock()
	n := len(a.calls)
	a.calls = append(a.calls, sendCall{
		ContactID: contact.ID,
		Key:       metadata["idempotency_key"],
		StepKey:   message.TemplateKey,
		Retry:     metadata["retry"],
	})
	script := a.script
	a.mu.Unlock()

	if script == nil {
		return models.DeliveryResult{ProviderRef: fmt.Sprintf("ref-%d", n+1)}
	}
	return script(n, contact)
}

func (a *scriptedAdapter) Calls() []sendCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]sendCall, len(a.calls))
	copy(out, a.calls)
	return out
}

type stepContent struct{}

func (stepContent) Render(_ context.Context, campaign *models.Campaign, _ *models.Contact, stepIndex int) (models.OutreachMessage, error) {
	step := campaign.Steps[stepIndex]
	return models.OutreachMessage{Subject: step.Subject, Body: step.Body, TemplateKey: step.Key, Sender: campaign.Sender}, nil
}

type harness struct {
	db       *testingutil.TestDB
	fixtures *testingutil.TestFixtures
	clock    *fakeClock
	adapter  *scriptedAdapter

	campaigns  repository.CampaignRepository
	controls   repository.CampaignControlRepository
	progress   repository.ContactProgressRepository
	attempts   repository.OutreachAttemptRepository
	runs       repository.OrchestratorRunRepository
	leaseRepo  repository.CampaignLeaseRepository
	replies    repository.ReplyRepository
	leases     *orchestrator.LeaseStore
	ledger     *orchestrator.AttemptLedger
	compliance *orchestrator.ComplianceRegistry
	engine     *orchestrator.Engine
}

func defaultEngineConfig() orchestrator.EngineConfig {
	return orchestrator.EngineConfig{
		Owner:       testOwner,
		LeaseTTL:    5 * time.Minute,
		TickTimeout: 20 * time.Second,
		BatchSize:   25,
	}
}

func newHarness(t *testing.T, cfg orchestrator.EngineConfig) *harness {
	t.Helper()
	return newHarnessWithProgress(t, cfg, nil)
}

// newHarnessWithProgress lets a test put a wrapper around the progress store the engine writes through
func newHarnessWithProgress(t *testing.T, cfg orchestrator.EngineConfig, wrap func(repository.ContactProgressRepository) repository.ContactProgressRepository) *harness {
	t.Helper()

	testDB, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = testDB.TeardownTestDB() })

	h := &harness{
		db:        testDB,
		fixtures:  testingutil.NewTestFixtures(testDB),
		clock:     newFakeClock(epoch),
		adapter:   &scriptedAdapter{},
		campaigns: repository.NewCampaignRepository(testDB.DB),
		controls:  repository.NewCampaignControlRepository(testDB.DB),
		progress:  repository.NewContactProgressRepository(testDB.DB),
		attempts:  repository.NewOutreachAttemptRepository(testDB.DB),
		runs:      repository.NewOrchestratorRunRepository(testDB.DB),
		leaseRepo: repository.NewCampaignLeaseRepository(testDB.DB),
		replies:   repository.NewReplyRepository(testDB.DB),
	}
	h.leases = orchestrator.NewLeaseStore(h.leaseRepo, h.clock.Now)
	h.ledger = orchestrator.NewAttemptLedger(h.attempts, time.Minute, 3, h.clock.Now)
	h.compliance = orchestrator.NewComplianceRegistry(repository.NewComplianceRepository(testDB.DB))

	engineProgress := h.progress
	if wrap != nil {
		engineProgress = wrap(h.progress)
	}

	h.engine, err = orchestrator.NewEngine(orchestrator.EngineDeps{
		DB:         testDB.DB,
		Campaigns:  h.campaigns,
		Controls:   h.controls,
		Progress:   engineProgress,
		Runs:       h.runs,
		Leases:     h.leases,
		Ledger:     h.ledger,
		Compliance: h.compliance,
		Quota:      orchestrator.NewLedgerQuotaCounter(h.attempts),
		Adapters:   map[models.Channel]orchestrator.ChannelAdapter{models.ChannelProof: h.adapter},
		Content:    stepContent{},
		Logger:     utils.DiscardLogger(),
		Now:        h.clock.Now,
	}, cfg)
	require.NoError(t, err)
	return h
}

// seed creates a campaign and enrolls n contacts due now
func (h *harness) seed(t *testing.T, steps int, cooldown time.Duration, n int) (*models.Campaign, []*models.Contact) {
	t.Helper()
	campaign, err := h.fixtures.CreateTestCampaign(steps, cooldown)
	require.NoError(t, err)
	contacts, err := h.fixtures.EnrollTestContacts(campaign, "example.com", n, h.clock.Now())
	require.NoError(t, err)
	return campaign, contacts
}

func (h *harness) tick(t *testing.T, campaignID uint) *models.OrchestratorRun {
	t.Helper()
	run, err := h.engine.Tick(context.Background(), campaignID, orchestrator.TickOptions{})
	require.NoError(t, err)
	require.NotNil(t, run)
	return run
}

func (h *harness) progressOf(t *testing.T, campaignID, contactID uint) *models.ContactProgress {
	t.Helper()
	p, err := h.fixtures.Progress(campaignID, contactID)
	require.NoError(t, err)
	return p
}

func (h *harness) attemptsOf(t *testing.T, campaignID uint) []*models.OutreachAttempt {
	t.Helper()
	rows, err := h.fixtures.Attempts(campaignID)
	require.NoError(t, err)
	return rows
}

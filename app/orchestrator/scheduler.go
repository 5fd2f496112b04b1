package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Ticker is the part of the engine the scheduler drives
type Ticker interface {
	Tick(ctx context.Context, campaignID uint, opts TickOptions) (*models.OrchestratorRun, error)
}

// CampaignLister lists campaigns the scheduler should tick
type CampaignLister interface {
	ListRunnable(ctx context.Context) ([]*models.Campaign, error)
}

// Evaluator is the part of the decision loop the scheduler drives
type Evaluator interface {
	EvaluateAll(ctx context.Context)
}

// SchedulerConfig controls the host loop
type SchedulerConfig struct {
	Interval               time.Duration
	MaxConcurrentCampaigns int
	// DecisionSchedule is a cron spec or descriptor such as "@daily"; empty disables the decision loop
	DecisionSchedule string
}

// Scheduler ticks every runnable campaign on an interval and runs the decision loop on a cron schedule
type Scheduler struct {
	ticker    Ticker
	campaigns CampaignLister
	evaluator Evaluator
	cfg       SchedulerConfig
	logger    *log.Logger
}

func NewScheduler(ticker Ticker, campaigns CampaignLister, evaluator Evaluator, cfg SchedulerConfig, logger *log.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = utils.DefaultTickInterval
	}
	if cfg.MaxConcurrentCampaigns <= 0 {
		cfg.MaxConcurrentCampaigns = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{ticker: ticker, campaigns: campaigns, evaluator: evaluator, cfg: cfg, logger: logger}
}

// Start launches the tick loop and the decision cron. The returned stop function waits for both to exit.
func (s *Scheduler) Start(parent context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(parent)

	var c *cron.Cron
	if s.cfg.DecisionSchedule != "" && s.evaluator != nil {
		cronLogger := cron.PrintfLogger(s.logger)
		c = cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		)
		if _, err := c.AddFunc(s.cfg.DecisionSchedule, func() { s.evaluator.EvaluateAll(ctx) }); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid decision schedule %q: %w", s.cfg.DecisionSchedule, err)
		}
		c.Start()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	stop := func() {
		cancel()
		if c != nil {
			<-c.Stop().Done()
		}
		wg.Wait()
	}
	return stop, nil
}

// RunOnce ticks every runnable campaign, several in parallel, and waits for all of them
func (s *Scheduler) RunOnce(ctx context.Context) {
	campaigns, err := s.campaigns.ListRunnable(ctx)
	if err != nil {
		s.logger.Printf("scheduler: list runnable campaigns failed: %v", err)
		return
	}
	if len(campaigns) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentCampaigns)
	for _, campaign := range campaigns {
		id := campaign.ID
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Printf("scheduler: tick campaign=%d panicked: %v", id, r)
				}
			}()
			// One campaign failing must not cancel the others
			if _, err := s.ticker.Tick(gctx, id, TickOptions{}); err != nil {
				s.logger.Printf("scheduler: tick campaign=%d failed: %v", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

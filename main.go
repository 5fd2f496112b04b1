// Package main provides the entry point of the campaign outreach orchestrator
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/app/services"
	businessflow "github.com/amirphl/orochi-outreach/business_flow"
	"github.com/amirphl/orochi-outreach/config"
	"github.com/amirphl/orochi-outreach/models"
	"github.com/amirphl/orochi-outreach/repository"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application holds every long-lived component of the host process
type Application struct {
	config *config.Config
	logger *log.Logger
	db     *gorm.DB
	redis  *redis.Client

	campaignRepo repository.CampaignRepository
	controlRepo  repository.CampaignControlRepository
	contactRepo  repository.ContactRepository
	progressRepo repository.ContactProgressRepository
	attemptRepo  repository.OutreachAttemptRepository
	runRepo      repository.OrchestratorRunRepository
	replyRepo    repository.ReplyRepository

	engine     *orchestrator.Engine
	decisions  *orchestrator.DecisionLoop
	compliance *orchestrator.ComplianceRegistry

	closers []io.Closer
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orochi-outreach",
		Short:         "Campaign outreach orchestrator",
		Long:          `Runs outreach campaigns as a single leased writer per campaign, with an admin API, a tick scheduler and a decision loop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newTickCommand(),
		newEvaluateCommand(),
		newImportCampaignsCommand(),
		newEnrollCommand(),
		newExportCommand(),
	)
	return root
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *log.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		NowFunc: utils.UTCNow,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity; nil when disabled
func initializeCache(cfg config.CacheConfig, logger *log.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis; the returned function stops it
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *log.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// defaultOwnerID identifies this process when ORCH_OWNER_ID is not set
func defaultOwnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "orchestrator"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// initializeChannels builds the adapter of the configured provider next to the proof adapter
func initializeChannels(ctx context.Context, cfg *config.Config, logger *log.Logger) (map[models.Channel]orchestrator.ChannelAdapter, error) {
	// SafeChannel is the only place the per-call send timeout is applied
	sendTimeout := cfg.Orchestrator.SendTimeout
	adapters := map[models.Channel]orchestrator.ChannelAdapter{
		models.ChannelProof: services.NewSafeChannel(services.NewProofChannel(logger), sendTimeout, logger),
	}

	switch cfg.Orchestrator.ChannelProvider {
	case config.ChannelProviderSMS:
		adapters[models.ChannelSMS] = services.NewSafeChannel(services.NewSMSChannel(cfg.SMS), sendTimeout, logger)
	case config.ChannelProviderEmail:
		ses, err := services.NewSESChannelFromConfig(ctx, cfg.Email)
		if err != nil {
			return nil, err
		}
		adapters[models.ChannelEmail] = services.NewSafeChannel(ses, sendTimeout, logger)
	}
	return adapters, nil
}

// initializeApplication loads configuration and wires the stores, the engine and the decision loop
func initializeApplication(ctx context.Context, prefix string) (*Application, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logCloser := utils.NewRotatingLogger(prefix, utils.RotatingLogOptions{
		Dir:        cfg.Logging.Dir,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	app := &Application{config: cfg, logger: logger, closers: []io.Closer{logCloser}}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.db = db

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.redis = rc

	app.campaignRepo = repository.NewCampaignRepository(db)
	app.controlRepo = repository.NewCampaignControlRepository(db)
	app.contactRepo = repository.NewContactRepository(db)
	app.progressRepo = repository.NewContactProgressRepository(db)
	app.attemptRepo = repository.NewOutreachAttemptRepository(db)
	app.runRepo = repository.NewOrchestratorRunRepository(db)
	app.replyRepo = repository.NewReplyRepository(db)
	leaseRepo := repository.NewCampaignLeaseRepository(db)
	complianceRepo := repository.NewComplianceRepository(db)
	decisionRepo := repository.NewCampaignDecisionRepository(db)

	orch := cfg.Orchestrator
	ledger := orchestrator.NewAttemptLedger(app.attemptRepo, orch.RetryBaseDelay, orch.MaxRetries, utils.UTCNow)
	app.compliance = orchestrator.NewComplianceRegistry(complianceRepo)

	var quota orchestrator.QuotaCounter = orchestrator.NewLedgerQuotaCounter(app.attemptRepo)
	if rc != nil {
		quota = orchestrator.NewRedisQuotaCounter(rc, cfg.Cache.RedisPrefix, quota)
	}

	adapters, err := initializeChannels(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	owner := orch.OwnerID
	if owner == "" {
		owner = defaultOwnerID()
	}

	app.engine, err = orchestrator.NewEngine(orchestrator.EngineDeps{
		DB:         db,
		Campaigns:  app.campaignRepo,
		Controls:   app.controlRepo,
		Progress:   app.progressRepo,
		Runs:       app.runRepo,
		Leases:     orchestrator.NewLeaseStore(leaseRepo, utils.UTCNow),
		Ledger:     ledger,
		Compliance: app.compliance,
		Quota:      quota,
		Adapters:   adapters,
		Content:    services.NewTemplateMessageSource(),
		Logger:     logger,
		Now:        utils.UTCNow,
	}, orchestrator.EngineConfig{
		Owner:       owner,
		LeaseTTL:    orch.LeaseTTL,
		TickTimeout: orch.TickTimeout,
		BatchSize:   orch.BatchSize,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.decisions, err = orchestrator.NewDecisionLoop(
		app.campaignRepo,
		ledger,
		app.replyRepo,
		app.controlRepo,
		decisionRepo,
		orchestrator.DecisionConfig{
			MinSampleSize:      int64(orch.MinSampleSize),
			ReplyRateThreshold: orch.ReplyRateThreshold,
			MaxBounceRate:      orch.MaxBounceRate,
		},
		logger,
		utils.UTCNow,
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	logger.Printf("orchestrator: owner=%s channel=%s batch=%d lease_ttl=%s", owner, orch.ChannelProvider, orch.BatchSize, orch.LeaseTTL)
	return app, nil
}

func (a *Application) controlFlow() businessflow.CampaignControlFlow {
	return businessflow.NewCampaignControlFlow(a.campaignRepo, a.controlRepo, a.runRepo, a.attemptRepo, a.engine, a.decisions)
}

func (a *Application) enrollmentFlow() businessflow.EnrollmentFlow {
	return businessflow.NewEnrollmentFlow(a.campaignRepo, a.controlRepo, a.contactRepo, a.progressRepo, a.logger)
}

func (a *Application) complianceFlow() businessflow.ComplianceFlow {
	return businessflow.NewComplianceFlow(a.compliance, a.campaignRepo, a.contactRepo, a.progressRepo, a.replyRepo, a.db, a.logger)
}

// Close releases connections and flushes the log file
func (a *Application) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

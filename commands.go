package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amirphl/orochi-outreach/app/dto"
	"github.com/amirphl/orochi-outreach/app/handlers"
	"github.com/amirphl/orochi-outreach/app/middleware"
	"github.com/amirphl/orochi-outreach/app/orchestrator"
	"github.com/amirphl/orochi-outreach/app/router"
	"github.com/amirphl/orochi-outreach/app/services"
	businessflow "github.com/amirphl/orochi-outreach/business_flow"
	"github.com/amirphl/orochi-outreach/config"
	"github.com/amirphl/orochi-outreach/migrations"
	"github.com/amirphl/orochi-outreach/utils"
	"github.com/spf13/cobra"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, the tick scheduler and the decision loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stopSignals := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stopSignals()

			app, err := initializeApplication(ctx, "orchestrator ")
			if err != nil {
				return err
			}
			defer app.Close()
			cfg := app.config

			tokenService, err := services.NewTokenService(cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SecretKey)
			if err != nil {
				if len(cfg.Operators) > 0 {
					return fmt.Errorf("failed to create token service: %w", err)
				}
				// Without operators nobody can log in; a random key keeps the admin routes closed
				tokenService, err = services.NewTokenService(cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience, utils.RandomSecret())
				if err != nil {
					return fmt.Errorf("failed to create token service: %w", err)
				}
				app.logger.Println("No OPERATORS configured; the admin API rejects every request")
			}

			authHandler := handlers.NewAuthHandler(businessflow.NewOperatorAuthFlow(cfg.Operators, tokenService))
			campaignAdminHandler := handlers.NewCampaignAdminHandler(app.controlFlow(), app.enrollmentFlow())
			complianceHandler := handlers.NewComplianceHandler(app.complianceFlow())
			authMiddleware := middleware.NewAuthMiddleware(tokenService)

			fiberRouter := router.NewFiberRouter(cfg, authHandler, campaignAdminHandler, complianceHandler, authMiddleware)
			fiberRouter.SetupRoutes()

			var stopFuncs []func()
			if app.redis != nil {
				stopFuncs = append(stopFuncs, startCacheHealthMonitor(ctx, app.redis, 0, app.logger))
			}
			if cfg.Orchestrator.Enabled {
				sched := orchestrator.NewScheduler(app.engine, app.campaignRepo, app.decisions, orchestrator.SchedulerConfig{
					Interval:               cfg.Orchestrator.TickInterval,
					MaxConcurrentCampaigns: cfg.Orchestrator.MaxConcurrentCampaigns,
					DecisionSchedule:       cfg.Orchestrator.DecisionSchedule,
				}, app.logger)
				stopScheduler, err := sched.Start(ctx)
				if err != nil {
					return err
				}
				stopFuncs = append(stopFuncs, stopScheduler)
			}

			serverErr := make(chan error, 1)
			go func() {
				address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
				serverErr <- fiberRouter.Start(address)
			}()

			select {
			case <-ctx.Done():
				app.logger.Println("Shutting down gracefully...")
			case err := <-serverErr:
				if err != nil {
					app.logger.Printf("Server stopped: %v", err)
				}
			}

			// Background workers first so no tick starts after the API is gone
			for _, fn := range stopFuncs {
				fn()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := fiberRouter.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
				app.logger.Printf("Error during shutdown: %v", err)
			}

			app.logger.Println("Server stopped")
			return nil
		},
	}
}

func newMigrateCommand() *cobra.Command {
	var down int
	var showVersion bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger := log.New(os.Stdout, "migrate ", log.LstdFlags|log.LUTC)

			db, err := migrations.Open(cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer db.Close()

			switch {
			case showVersion:
				version, dirty, err := migrations.Version(db)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"version": version, "dirty": dirty})
			case down > 0:
				return migrations.Down(db, down, logger)
			default:
				return migrations.Up(db, logger)
			}
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	cmd.Flags().BoolVar(&showVersion, "version", false, "print the applied migration version")
	return cmd
}

func newTickCommand() *cobra.Command {
	var campaignID uint
	var keepLease bool

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one tick of a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initializeApplication(cmd.Context(), "tick ")
			if err != nil {
				return err
			}
			defer app.Close()

			run, err := app.controlFlow().Tick(cmd.Context(), campaignID, &dto.TickRequest{KeepLease: keepLease})
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	}
	cmd.Flags().UintVar(&campaignID, "campaign", 0, "campaign id")
	cmd.Flags().BoolVar(&keepLease, "keep-lease", false, "keep the lease after the tick")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func newEvaluateCommand() *cobra.Command {
	var campaignID uint
	var all bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the decision loop for a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && campaignID == 0 {
				return errors.New("either --campaign or --all is required")
			}
			app, err := initializeApplication(cmd.Context(), "decision ")
			if err != nil {
				return err
			}
			defer app.Close()

			if all {
				app.decisions.EvaluateAll(cmd.Context())
				return nil
			}
			decision, err := app.controlFlow().Evaluate(cmd.Context(), campaignID)
			if err != nil {
				return err
			}
			return printJSON(decision)
		},
	}
	cmd.Flags().UintVar(&campaignID, "campaign", 0, "campaign id")
	cmd.Flags().BoolVar(&all, "all", false, "evaluate every runnable campaign")
	return cmd
}

func newImportCampaignsCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "import-campaigns",
		Short: "Create or update campaigns from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.LoadCampaignFile(path)
			if err != nil {
				return err
			}
			app, err := initializeApplication(cmd.Context(), "import ")
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.enrollmentFlow().ImportCampaigns(cmd.Context(), file)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&path, "file", "campaigns.yaml", "campaign definitions")
	return cmd
}

func newEnrollCommand() *cobra.Command {
	var campaignID uint
	var path string

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll the contacts of an xlsx sheet into a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open contact sheet: %w", err)
			}
			defer f.Close()

			app, err := initializeApplication(cmd.Context(), "enroll ")
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.enrollmentFlow().EnrollContacts(cmd.Context(), campaignID, f)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().UintVar(&campaignID, "campaign", 0, "campaign id")
	cmd.Flags().StringVar(&path, "file", "", "xlsx contact sheet")
	_ = cmd.MarkFlagRequired("campaign")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCommand() *cobra.Command {
	var campaignID uint
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the attempt ledger of a campaign to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := initializeApplication(cmd.Context(), "export ")
			if err != nil {
				return err
			}
			defer app.Close()

			filename, data, err := app.controlFlow().ExportAttempts(cmd.Context(), campaignID)
			if err != nil {
				return err
			}
			out := filepath.Join(dir, filename)
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			app.logger.Printf("export: wrote %s (%d bytes)", out, len(data))
			return nil
		},
	}
	cmd.Flags().UintVar(&campaignID, "campaign", 0, "campaign id")
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

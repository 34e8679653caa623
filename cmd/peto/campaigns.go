package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/models"
	"github.com/ternarybob/peto/internal/queue"
	"github.com/ternarybob/peto/internal/services/campaigns"
	"github.com/ternarybob/peto/internal/storage/badger"
)

// campaignContext is the short-lived graph behind the campaign commands:
// storage plus queue plus the campaign service, torn down when the command
// exits. The Badger stores are single-process; campaign commands run against
// the same data directory only while no serve process holds it.
type campaignContext struct {
	service *campaigns.Service
	close   func()
}

func newCampaignContext(config *common.Config, logger arbor.ILogger) (*campaignContext, error) {
	storage, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := badger.LoadResumesFromFiles(context.Background(), storage.ResumeStorage(), config.Resumes.Dir, logger); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to load resume profiles: %w", err)
	}

	queueClient := queue.NewClient(queue.Config{
		Path:              config.Queue.Path,
		VisibilityTimeout: common.ParseDuration(config.Queue.VisibilityTimeout, 5*time.Minute),
		MaxReceive:        config.Queue.MaxReceive,
		PollInterval:      common.ParseDuration(config.Queue.PollInterval, time.Second),
	}, logger)
	if err := queueClient.Open(); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	for _, q := range []string{models.QueueScrapeMissions, models.QueueMatchJobs, models.QueueTailorMissions} {
		if err := queueClient.DeclareQueue(q); err != nil {
			queueClient.Close()
			storage.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", q, err)
		}
	}

	return &campaignContext{
		service: campaigns.NewService(storage, queueClient, logger),
		close: func() {
			queueClient.Close()
			storage.Close()
		},
	}, nil
}

func runLaunch(args []string) {
	fs := flag.NewFlagSet("launch", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file path")
	owner := fs.String("owner", "", "Owner ID (required)")
	role := fs.String("role", "", "Target role (required)")
	location := fs.String("location", "", "Target location")
	resumeID := fs.String("resume", "", "Resume ID (required)")
	scrapers := fs.Int("scrapers", 0, "Scraper instances (default from config)")
	fs.Parse(args)

	config, logger, err := boot(*configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	instances := models.InstanceCounts{Scrapers: *scrapers}
	if instances.Scrapers == 0 {
		instances.Scrapers = config.Workers.ScraperInstances
	}

	cc, err := newCampaignContext(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
		os.Exit(1)
	}
	defer cc.close()

	campaign, err := cc.service.Launch(context.Background(), *owner, *role, *location, *resumeID, instances)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to launch campaign")
		os.Exit(1)
	}

	fmt.Printf("Campaign %s launched: %s", campaign.ID, campaign.TargetRole)
	if campaign.TargetLocation != "" {
		fmt.Printf(" (%s)", campaign.TargetLocation)
	}
	fmt.Println()
}

func runStop(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file path")
	owner := fs.String("owner", "", "Owner ID (required)")
	campaignID := fs.String("campaign", "", "Campaign ID (required)")
	fs.Parse(args)

	config, logger, err := boot(*configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	cc, err := newCampaignContext(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
		os.Exit(1)
	}
	defer cc.close()

	campaign, err := cc.service.Stop(context.Background(), *owner, *campaignID)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to stop campaign")
		os.Exit(1)
	}

	fmt.Printf("Campaign %s is %s\n", campaign.ID, campaign.Status)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file path")
	owner := fs.String("owner", "", "Owner ID (required)")
	campaignID := fs.String("campaign", "", "Campaign ID (required)")
	fs.Parse(args)

	config, logger, err := boot(*configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	cc, err := newCampaignContext(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
		os.Exit(1)
	}
	defer cc.close()

	report, err := cc.service.Status(context.Background(), *owner, *campaignID)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to read campaign status")
		os.Exit(1)
	}

	fmt.Printf("Campaign:       %s\n", report.CampaignID)
	fmt.Printf("Status:         %s\n", report.Status)
	fmt.Printf("Jobs scraped:   %d\n", report.JobsScraped)
	fmt.Printf("Jobs matched:   %d\n", report.JobsMatched)
	fmt.Printf("Jobs tailored:  %d\n", report.JobsTailored)
	fmt.Printf("Total matched:  %d\n", report.TotalMatched)
}

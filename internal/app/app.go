package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
	"github.com/ternarybob/peto/internal/queue"
	"github.com/ternarybob/peto/internal/renderer"
	"github.com/ternarybob/peto/internal/scraper"
	"github.com/ternarybob/peto/internal/services/campaigns"
	"github.com/ternarybob/peto/internal/services/llm"
	"github.com/ternarybob/peto/internal/storage/badger"
	matcherworker "github.com/ternarybob/peto/internal/workers/matcher"
	scraperworker "github.com/ternarybob/peto/internal/workers/scraper"
	tailorworker "github.com/ternarybob/peto/internal/workers/tailor"
)

// Worker roles selectable at startup. A process can run any subset; "all"
// runs the full pipeline in one process.
const (
	RoleScraper = "scraper"
	RoleMatcher = "matcher"
	RoleTailor  = "tailor"
	RoleAll     = "all"
)

// runnable is one worker loop owned by the app lifecycle.
type runnable struct {
	name string
	run  func(context.Context) error
}

// App wires storage, queue, analyzer, browser, and the selected workers
// behind one Start/Stop lifecycle.
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	Storage   interfaces.StorageManager
	Queue     interfaces.QueueClient
	Analyzer  interfaces.AnalyzerService
	Browser   interfaces.Scraper
	Renderer  interfaces.DocumentRenderer
	Campaigns *campaigns.Service
	Sweeper   *campaigns.Sweeper

	workers []runnable
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds the application graph for the given roles. Everything that can
// fail at boot fails here; Start only launches loops.
func New(cfg *common.Config, logger arbor.ILogger, roles []string) (*App, error) {
	storage, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := badger.LoadResumesFromFiles(context.Background(), storage.ResumeStorage(), cfg.Resumes.Dir, logger); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to load resume profiles: %w", err)
	}

	queueClient := queue.NewClient(queue.Config{
		Path:              cfg.Queue.Path,
		VisibilityTimeout: common.ParseDuration(cfg.Queue.VisibilityTimeout, 5*time.Minute),
		MaxReceive:        cfg.Queue.MaxReceive,
		PollInterval:      common.ParseDuration(cfg.Queue.PollInterval, time.Second),
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

	analyzer, err := llm.NewAnalyzerService(cfg, logger)
	if err != nil {
		queueClient.Close()
		storage.Close()
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	browser := scraper.NewBrowser(&cfg.Scraper, logger)
	docs := renderer.NewPDFRenderer(&cfg.Documents, logger)
	campaignService := campaigns.NewService(storage, queueClient, logger)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Storage:   storage,
		Queue:     queueClient,
		Analyzer:  analyzer,
		Browser:   browser,
		Renderer:  docs,
		Campaigns: campaignService,
		Sweeper:   campaigns.NewSweeper(storage, queueClient, &cfg.Campaigns, logger),
	}

	if hasRole(roles, RoleScraper) {
		w := scraperworker.NewWorker(storage, queueClient, browser, campaignService, &cfg.Scraper, logger)
		a.workers = append(a.workers, runnable{name: RoleScraper, run: w.Run})
	}
	if hasRole(roles, RoleMatcher) {
		w := matcherworker.NewWorker(storage, queueClient, analyzer, &cfg.Workers, logger)
		a.workers = append(a.workers, runnable{name: RoleMatcher, run: w.Run})
	}
	if hasRole(roles, RoleTailor) {
		w := tailorworker.NewWorker(storage, queueClient, analyzer, docs, logger)
		a.workers = append(a.workers, runnable{name: RoleTailor, run: w.Run})
	}
	if len(a.workers) == 0 {
		queueClient.Close()
		storage.Close()
		return nil, fmt.Errorf("no worker roles selected from %v", roles)
	}

	return a, nil
}

// Start launches the completion sweeper and one consumer loop per selected
// role. It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.Sweeper.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start campaign sweeper: %w", err)
	}

	for _, w := range a.workers {
		a.wg.Add(1)
		go func(w runnable) {
			defer a.wg.Done()
			a.Logger.Info().Str("worker", w.name).Msg("Worker started")
			if err := w.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Str("worker", w.name).Msg("Worker stopped with error")
				return
			}
			a.Logger.Info().Str("worker", w.name).Msg("Worker stopped")
		}(w)
	}

	a.Logger.Info().
		Int("workers", len(a.workers)).
		Str("environment", a.Config.Environment).
		Msg("Application started")
	return nil
}

// Stop cancels the worker loops and tears the graph down in reverse
// dependency order.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.Sweeper.Stop()

	if err := a.Browser.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close browser")
	}
	if err := a.Queue.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close queue")
	}
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}
	a.Logger.Info().Msg("Application stopped")
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role || r == RoleAll {
			return true
		}
	}
	return false
}

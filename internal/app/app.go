// Package app wires configuration, storage, clients, and handlers into a
// running application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tidyhost/turnsync/internal/common"
	"github.com/tidyhost/turnsync/internal/fieldservice"
	"github.com/tidyhost/turnsync/internal/handlers"
	"github.com/tidyhost/turnsync/internal/ingest/feed"
	"github.com/tidyhost/turnsync/internal/interfaces"
	"github.com/tidyhost/turnsync/internal/orchestrator"
	"github.com/tidyhost/turnsync/internal/projector"
	"github.com/tidyhost/turnsync/internal/recordstore"
	"github.com/tidyhost/turnsync/internal/storage/badger"
	"github.com/tidyhost/turnsync/internal/webhook"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB         *badger.BadgerDB
	RunStorage interfaces.RunStorage

	// Record-store gateway and its typed table views.
	Reservations interfaces.ReservationStore
	Properties   interfaces.PropertyStore
	Automations  interfaces.AutomationStore

	FieldService interfaces.FieldServiceClient

	// Webhook intake pipeline.
	Queue *webhook.Queue
	Pool  *webhook.Pool

	Orchestrator *orchestrator.Orchestrator

	// HTTP handlers
	WebhookHandler *handlers.WebhookHandler
	EmailHandler   *handlers.EmailHandler
	StatusHandler  *handlers.StatusHandler

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// New initializes the application with all dependencies.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}
	loc := cfg.BusinessLocation()

	db, err := badger.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run journal: %w", err)
	}
	a.DB = db
	a.RunStorage = badger.NewRunStorage(db, logger)

	rsClient := recordstore.NewClient(
		cfg.RecordStore.APIKey,
		cfg.RecordStore.BaseID,
		recordstore.WithBaseURL(cfg.RecordStore.BaseURL),
		recordstore.WithTimeout(time.Duration(cfg.RecordStore.TimeoutSeconds)*time.Second),
		recordstore.WithLogger(logger),
	)
	a.Reservations = recordstore.NewReservationRepo(rsClient, loc, logger)
	a.Properties = recordstore.NewPropertyRepo(rsClient, logger)
	a.Automations = recordstore.NewAutomationRepo(rsClient, logger)

	a.FieldService = fieldservice.NewClient(
		cfg.FieldService.Token,
		fieldservice.WithBaseURL(cfg.FieldService.BaseURL),
		fieldservice.WithRateLimit(cfg.FieldService.RequestsPerMinute),
		fieldservice.WithTimeout(time.Duration(cfg.FieldService.TimeoutSeconds)*time.Second),
		fieldservice.WithLogger(logger),
	)

	a.Queue = webhook.NewQueue(cfg.Webhook.QueueCapacity, cfg.WebhookOverflowDir(), logger)
	a.Pool = webhook.NewPool(a.Queue, webhook.NewProcessor(a.Reservations, logger), cfg.Webhook.Workers, logger)

	proj := projector.New(a.Reservations, a.FieldService, cfg.FieldService.EmployeeID, loc, logger)
	fetcher := feed.NewFetcher(feed.Options{
		Concurrency:  cfg.Feeds.Concurrency,
		Timeout:      time.Duration(cfg.Feeds.TimeoutSeconds) * time.Second,
		Location:     loc,
		MonthsBefore: cfg.Ingest.WindowMonthsBefore,
		MonthsAfter:  cfg.Ingest.WindowMonthsAfter,
		Logger:       logger,
	})

	a.Orchestrator = orchestrator.New(cfg, orchestrator.Deps{
		Reservations: a.Reservations,
		Properties:   a.Properties,
		Automations:  a.Automations,
		Runs:         a.RunStorage,
		Projector:    proj,
		Fetcher:      fetcher,
		Queue:        a.Queue,
		Logger:       logger,
	})

	a.WebhookHandler = handlers.NewWebhookHandler(logger, cfg.Webhook.SignatureSecret, cfg.Webhook.InternalAuthSecret, a.Queue)
	a.EmailHandler = handlers.NewEmailHandler(logger, cfg.Webhook.EmailSecret, cfg.CSVInboxDir())
	a.StatusHandler = handlers.NewStatusHandler(logger, a.Queue, a.RunStorage)

	a.ctx, a.cancelCtx = context.WithCancel(context.Background())

	// Events spilled to disk during a previous shutdown get re-enqueued
	// before live traffic starts flowing.
	if replayed, err := a.Queue.ReplayOverflow(); err != nil {
		logger.Warn().Err(err).Msg("Webhook overflow replay failed at startup")
	} else if replayed > 0 {
		logger.Info().Int("replayed", replayed).Msg("Webhook overflow events re-enqueued at startup")
	}
	a.Pool.Start(a.ctx)

	return a, nil
}

// Start launches the suite scheduler.
func (a *App) Start() error {
	return a.Orchestrator.Start()
}

// Close shuts the application down in drain order: stop scheduling new
// runs, stop webhook intake, let the workers finish the queue, then
// release the journal.
func (a *App) Close() {
	a.Orchestrator.Stop()

	a.Queue.Close()
	a.Pool.Wait()
	a.cancelCtx()

	if err := a.DB.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Run journal close failed")
	}
	a.Logger.Info().Msg("Application stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airways-scraper/internal/infrastructure/config"
	"airways-scraper/internal/infrastructure/persistence"
	"airways-scraper/internal/interface/feed"
	gormRepo "airways-scraper/internal/interface/repository"
	"airways-scraper/internal/usecase"
	"airways-scraper/pkg/logger"
	"airways-scraper/pkg/metrics"
	"airways-scraper/pkg/utils"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Create logger
	log := logger.NewLogger()
	defer log.Sync()
	log.Info("Starting Airways Scraper")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	clock, err := utils.NewClock(cfg.Timezone)
	if err != nil {
		log.Fatal("Invalid timezone", "timezone", cfg.Timezone, "error", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up PostgreSQL connection
	log.Info("Connecting to PostgreSQL")
	gormDB, err := persistence.NewPostgresDB(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	// Set up MongoDB connection for the raw snapshot archive
	log.Info("Connecting to MongoDB")
	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	mongoDB := persistence.GetDatabase(mongoClient, cfg.MongoDB)

	// Set up repositories
	flightRepo := gormRepo.NewGormFlightRepository(gormDB)
	estimateRepo := gormRepo.NewGormEstimatedTimeRepository(gormDB)
	noteRepo := gormRepo.NewGormFlightNoteRepository(gormDB)
	runRepo := gormRepo.NewGormScrapeRunRepository(gormDB)
	snapshotRepo := gormRepo.NewMongoFeedSnapshotRepository(mongoDB)

	// Set up metrics
	m := metrics.NewMetrics("airways_scraper")

	// Set up the feed pipeline
	provider := feed.NewHTTPSessionProvider(cfg.FeedBaseURL, cfg.FeedTimeout, log)
	parser := feed.NewParser(log)
	executor := usecase.NewScrapeExecutor(
		provider, parser,
		flightRepo, estimateRepo, noteRepo, runRepo, snapshotRepo,
		m, log,
		usecase.RetryConfig{
			MaxRetries: cfg.MaxScrapeRetries,
			Base:       cfg.RetryBase,
			Max:        cfg.RetryMax,
		},
	)

	// Set up scheduling components
	calc := usecase.NewIntervalCalculator(usecase.IntervalConfig{
		HighThreshold: cfg.HighThreshold,
		MedThreshold:  cfg.MedThreshold,
		LowThreshold:  cfg.LowThreshold,
		High:          cfg.IntervalHigh,
		Medium:        cfg.IntervalMedium,
		Low:           cfg.IntervalLow,
		Idle:          cfg.IntervalIdle,
		JitterHigh:    cfg.JitterHigh,
		JitterMedium:  cfg.JitterMedium,
		JitterLow:     cfg.JitterLow,
		JitterIdle:    cfg.JitterIdle,
	})
	decider := usecase.NewSleepDecider(flightRepo, clock, usecase.SleepWakeConfig{
		CutoffHour:       cfg.CutoffHour,
		StaleThreshold:   cfg.StaleThreshold,
		WakeOffset:       cfg.WakeOffset,
		FallbackWakeHour: cfg.FallbackWakeHour,
	}, log)
	breaker := usecase.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset)
	prefetchState := usecase.NewPrefetchState(cfg.PrefetchClaimReset)

	scheduler := usecase.NewScheduler(
		usecase.SchedulerConfig{
			CutoffHour:           cfg.CutoffHour,
			WakeTolerance:        cfg.WakeTolerance,
			FallbackRearm:        cfg.FallbackRearm,
			PrefetchBundleWindow: cfg.PrefetchBundleWindow,
			PrefetchMaxRetries:   cfg.PrefetchMaxRetries,
			PrefetchRetryBase:    cfg.RetryBase,
			StartupPrefetchDelay: cfg.StartupPrefetchDelay,
		},
		executor, calc, decider, breaker, prefetchState,
		flightRepo, estimateRepo, runRepo,
		clock, m, log,
	)

	slots, err := usecase.NewSlotScheduler(cfg.PrefetchSlotSpec, clock.Location(), scheduler.PostSlot, log)
	if err != nil {
		log.Fatal("Invalid prefetch slot spec", "spec", cfg.PrefetchSlotSpec, "error", err)
	}
	scheduler.SetSlots(slots)

	// Start the scheduler loop
	scheduler.Start(ctx)

	// Set up HTTP server for metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop the scheduler loop
	scheduler.Wait()

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Airways Scraper stopped")
}

// Manual one-shot scrape trigger. Useful for backfilling a date or
// verifying upstream access without starting the scheduler:
//
//	go run ./cmd/utils -date 2026-08-26 -date 2026-08-27
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/infrastructure/config"
	"airways-scraper/internal/infrastructure/persistence"
	"airways-scraper/internal/interface/feed"
	gormRepo "airways-scraper/internal/interface/repository"
	"airways-scraper/internal/usecase"
	"airways-scraper/pkg/logger"
	"airways-scraper/pkg/metrics"
	"airways-scraper/pkg/utils"
)

type dateList []string

func (d *dateList) String() string { return strings.Join(*d, ",") }

func (d *dateList) Set(v string) error {
	if _, err := time.Parse("2006-01-02", v); err != nil {
		return fmt.Errorf("bad date %q: want YYYY-MM-DD", v)
	}
	*d = append(*d, v)
	return nil
}

func main() {
	var dates dateList
	flag.Var(&dates, "date", "local flight date to scrape (repeatable, default today)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	clock, err := utils.NewClock(cfg.Timezone)
	if err != nil {
		log.Fatal("Invalid timezone", "timezone", cfg.Timezone, "error", err)
	}
	if len(dates) == 0 {
		dates = dateList{clock.Today()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	gormDB, err := persistence.NewPostgresDB(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := persistence.GetDatabase(mongoClient, cfg.MongoDB)

	executor := usecase.NewScrapeExecutor(
		feed.NewHTTPSessionProvider(cfg.FeedBaseURL, cfg.FeedTimeout, log),
		feed.NewParser(log),
		gormRepo.NewGormFlightRepository(gormDB),
		gormRepo.NewGormEstimatedTimeRepository(gormDB),
		gormRepo.NewGormFlightNoteRepository(gormDB),
		gormRepo.NewGormScrapeRunRepository(gormDB),
		gormRepo.NewMongoFeedSnapshotRepository(mongoDB),
		metrics.NewMetrics("airways_scraper_manual"),
		log,
		usecase.RetryConfig{
			MaxRetries: cfg.MaxScrapeRetries,
			Base:       cfg.RetryBase,
			Max:        cfg.RetryMax,
		},
	)

	if err := executor.Run(ctx, dates, entity.RunLabelManual); err != nil {
		log.Error("Manual scrape failed", "dates", dates.String(), "error", err)
		os.Exit(1)
	}
	log.Info("Manual scrape finished", "dates", dates.String())
}

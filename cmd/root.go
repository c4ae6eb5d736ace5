package cmd

import (
	"context"
	"errors"
	"flag"
	"github.com/csr-ugra/hh-vacancy-loader/internal"
	"github.com/csr-ugra/hh-vacancy-loader/internal/cache"
	"github.com/csr-ugra/hh-vacancy-loader/internal/db"
	"github.com/csr-ugra/hh-vacancy-loader/internal/hh"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/csr-ugra/hh-vacancy-loader/internal/retry"
	"github.com/csr-ugra/hh-vacancy-loader/internal/schedule"
	"github.com/csr-ugra/hh-vacancy-loader/internal/util"
	"github.com/uptrace/bun"
	"net/http"
	"os"
)

func Run(ctx context.Context, connection *bun.DB, config *util.Config, logger log.Logger) error {
	var dryRun, skipIngest, noMenu bool
	var employerIds, scheduleSpec string
	flag.BoolVar(&dryRun, "dry", false, "fetch and validate without saving")
	flag.BoolVar(&skipIngest, "skip-ingest", false, "open the menu without loading data, not allowed with -schedule")
	flag.BoolVar(&noMenu, "no-menu", false, "exit after loading data")
	flag.StringVar(&employerIds, "employers", config.EmployerIds.Value, "comma separated hh.ru employer ids")
	flag.StringVar(&scheduleSpec, "schedule", config.IngestSchedule.Value, "cron spec to repeat loading until interrupted, the menu is not shown")
	flag.Parse()

	if err := checkFlags(skipIngest, scheduleSpec); err != nil {
		return err
	}

	if dryRun {
		logger = logger.WithField("DryRun", dryRun)
	}

	logger.Debug("creating schema")
	if err := db.CreateSchema(ctx, connection); err != nil {
		return err
	}

	source, closeSource := newSource(ctx, config, logger)
	defer closeSource()

	policy := retry.Policy{
		MaxRetries: config.FetchMaxRetries.Int(),
		Unit:       config.FetchBackoffUnit.Duration(),
		Sleep:      retry.Sleep,
	}
	fetcher := internal.NewRetryingFetcher(source, policy, logger)
	pipeline := internal.NewPipeline(fetcher, connection, logger,
		internal.WithWorkers(config.FetchWorkers.Int()),
		internal.WithDryRun(dryRun))

	ids := util.SplitList(employerIds)
	ingest := func(ctx context.Context) error {
		result, err := pipeline.Run(ctx, ids)
		if err != nil {
			return err
		}
		logger.WithFields(result.Fields()).Info("ingestion finished")
		return nil
	}

	if scheduleSpec != "" {
		s, err := schedule.New(scheduleSpec, ingest, logger)
		if err != nil {
			return err
		}
		return s.Run(ctx)
	}

	if !skipIngest {
		if err := ingest(ctx); err != nil {
			return err
		}
	}

	if noMenu {
		return nil
	}

	return NewMenu(db.NewReports(connection), os.Stdin, os.Stdout, logger).Run(ctx)
}

// checkFlags rejects -skip-ingest in scheduled mode, which always ingests.
// Pass -schedule "" to override INGEST_SCHEDULE.
func checkFlags(skipIngest bool, scheduleSpec string) error {
	if skipIngest && scheduleSpec != "" {
		return errors.New("-skip-ingest cannot be combined with -schedule")
	}

	return nil
}

// newSource builds the hh.ru client, behind an employer cache unless the
// cache ttl is zero. Redis is used when REDIS_URL is set and reachable.
func newSource(ctx context.Context, config *util.Config, logger log.Logger) (internal.Source, func()) {
	client := hh.New(
		hh.WithBaseUrl(config.HhApiUrl.Value),
		hh.WithUserAgent(config.HhUserAgent.Value),
		hh.WithPerPage(config.HhPerPage.Int()),
		hh.WithHttpClient(&http.Client{Timeout: config.HttpTimeout.Duration()}),
		hh.WithLogger(logger),
	)

	ttl := config.EmployerCacheTtl.Duration()
	if ttl <= 0 {
		return client, func() {}
	}

	var c cache.Cache = cache.NewMemory()
	if config.RedisUrl.Value != "" {
		r, err := cache.NewRedis(ctx, config.RedisUrl.Value)
		if err != nil {
			logger.WithField("Error", err).Warn("redis unavailable, caching employers in memory")
		} else {
			c = r
		}
	}

	closeCache := func() {
		if err := c.Close(); err != nil {
			logger.WithField("Error", err).Warn("failed to close employer cache")
		}
	}

	return internal.NewCachingSource(client, c, ttl, logger), closeCache
}

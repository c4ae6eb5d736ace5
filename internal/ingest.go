package internal

import (
	"context"
	"errors"
	"github.com/csr-ugra/hh-vacancy-loader/internal/apperror"
	"github.com/csr-ugra/hh-vacancy-loader/internal/db"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
	"strconv"
	"strings"
)

// IngestionResult counts what happened to every record of one run.
type IngestionResult struct {
	EmployersRequested    int
	EmployersFetched      int
	EmployerFetchFailures int
	EmployersInserted     int
	EmployersSkipped      int
	VacanciesFetched      int
	VacanciesInvalid      int
	VacanciesInserted     int
	VacanciesSkipped      int
	VacanciesOrphaned     int
	WriteFailures         int
	InvalidEmployerIds    []string
}

func (r *IngestionResult) Fields() logrus.Fields {
	return logrus.Fields{
		"EmployersRequested":    r.EmployersRequested,
		"EmployersFetched":      r.EmployersFetched,
		"EmployerFetchFailures": r.EmployerFetchFailures,
		"EmployersInserted":     r.EmployersInserted,
		"EmployersSkipped":      r.EmployersSkipped,
		"VacanciesFetched":      r.VacanciesFetched,
		"VacanciesInvalid":      r.VacanciesInvalid,
		"VacanciesInserted":     r.VacanciesInserted,
		"VacanciesSkipped":      r.VacanciesSkipped,
		"VacanciesOrphaned":     r.VacanciesOrphaned,
		"WriteFailures":         r.WriteFailures,
	}
}

type Pipeline struct {
	fetcher    *RetryingFetcher
	connection *bun.DB
	logger     log.Logger
	workers    int
	dryRun     bool
}

type PipelineOption func(*Pipeline)

// WithWorkers sets how many employers are fetched at the same time.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDryRun makes the pipeline fetch and validate without writing.
func WithDryRun(dryRun bool) PipelineOption {
	return func(p *Pipeline) { p.dryRun = dryRun }
}

func NewPipeline(fetcher *RetryingFetcher, connection *bun.DB, logger log.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher:    fetcher,
		connection: connection,
		logger:     logger,
		workers:    1,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type fetchedEmployer struct {
	id        int64
	employer  *RawEmployer
	failed    bool
	vacancies []RawVacancy
}

// Run fetches, validates and stores employers and vacancies for the given ids.
// Employers are committed in one transaction before any vacancy is written.
// Only a failure of the store itself is returned as an error; bad records are
// counted in the result and skipped.
func (p *Pipeline) Run(ctx context.Context, employerIds []string) (*IngestionResult, error) {
	result := &IngestionResult{}
	logger := p.logger
	if p.dryRun {
		logger = logger.WithField("DryRun", true)
	}

	ids := p.parseEmployerIds(employerIds, result, logger)
	result.EmployersRequested = len(ids)
	if len(ids) == 0 {
		logger.Warn("no employer ids to ingest")
		return result, nil
	}

	logger.WithField("EmployerCount", len(ids)).Info("fetching employers and vacancies")
	fetched := p.fetch(ctx, ids)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	employers := make([]*Employer, 0, len(fetched))
	var vacancies []RawVacancy
	for _, f := range fetched {
		vacancies = append(vacancies, f.vacancies...)

		if f.failed {
			result.EmployerFetchFailures++
			continue
		}
		if f.employer == nil {
			logger.WithField("EmployerId", f.id).Warn("employer not found")
			continue
		}

		employer, err := NormalizeEmployer(f.employer)
		if err != nil {
			result.EmployerFetchFailures++
			logger.WithFields(logrus.Fields{"EmployerId": f.id, "Error": err}).Warn("skipping employer")
			continue
		}

		result.EmployersFetched++
		employers = append(employers, employer)
	}
	result.VacanciesFetched = len(vacancies)

	if p.dryRun {
		for _, v := range vacancies {
			if err := ValidateVacancy(v); err != nil {
				result.VacanciesInvalid++
				logValidationError(logger, err)
			}
		}
		return result, nil
	}

	if err := p.storeEmployers(ctx, employers, result, logger); err != nil {
		return result, err
	}
	logger.WithFields(logrus.Fields{
		"Inserted": result.EmployersInserted,
		"Skipped":  result.EmployersSkipped,
	}).Info("saved employers")

	if err := p.storeVacancies(ctx, vacancies, result, logger); err != nil {
		return result, err
	}
	logger.WithFields(logrus.Fields{
		"Inserted": result.VacanciesInserted,
		"Skipped":  result.VacanciesSkipped,
		"Invalid":  result.VacanciesInvalid,
		"Orphaned": result.VacanciesOrphaned,
	}).Info("saved vacancies")

	return result, nil
}

func (p *Pipeline) parseEmployerIds(input []string, result *IngestionResult, logger log.Logger) []int64 {
	ids := make([]int64, 0, len(input))
	seen := make(map[int64]bool, len(input))

	for _, raw := range input {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}

		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			result.InvalidEmployerIds = append(result.InvalidEmployerIds, s)
			logger.WithField("EmployerId", s).Warn("skipping invalid employer id")
			continue
		}

		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids
}

// fetch reads every employer with at most p.workers requests in flight.
// Results keep the order of ids.
func (p *Pipeline) fetch(ctx context.Context, ids []int64) []fetchedEmployer {
	results := make([]fetchedEmployer, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			employer, err := p.fetcher.FetchEmployer(ctx, id)
			vacancies := p.fetcher.FetchVacanciesWithRetry(ctx, id)

			results[i] = fetchedEmployer{
				id:        id,
				employer:  employer,
				failed:    err != nil,
				vacancies: vacancies,
			}
			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (p *Pipeline) storeEmployers(ctx context.Context, employers []*Employer, result *IngestionResult, logger log.Logger) error {
	return p.inTx(ctx, func(tx bun.Tx) error {
		for _, employer := range employers {
			var outcome db.Outcome
			err := db.WithSavepoint(ctx, tx, func() (err error) {
				outcome, err = db.InsertEmployer(ctx, tx, employer.Model())
				return err
			})

			if apperror.IsKind(err, apperror.KindStoreConnection) {
				return err
			}
			if err != nil {
				result.WriteFailures++
				logger.WithFields(logrus.Fields{"EmployerId": employer.Id, "Error": err}).Error("failed to save employer")
				continue
			}

			switch outcome {
			case db.OutcomeInserted:
				result.EmployersInserted++
			case db.OutcomeSkipped:
				result.EmployersSkipped++
				logger.WithField("EmployerId", employer.Id).Debug("employer already stored")
			}
		}
		return nil
	})
}

func (p *Pipeline) storeVacancies(ctx context.Context, vacancies []RawVacancy, result *IngestionResult, logger log.Logger) error {
	return p.inTx(ctx, func(tx bun.Tx) error {
		for _, raw := range vacancies {
			vacancy, err := NormalizeVacancy(raw)
			if err != nil {
				result.VacanciesInvalid++
				logValidationError(logger, err)
				continue
			}
			if raw.SalaryMalformed() {
				logger.WithField("VacancyId", vacancy.Id).Debug("ignoring malformed salary")
			}

			var outcome db.Outcome
			err = db.WithSavepoint(ctx, tx, func() (err error) {
				outcome, err = db.InsertVacancy(ctx, tx, vacancy.Model())
				return err
			})

			if apperror.IsKind(err, apperror.KindStoreConnection) {
				return err
			}
			if err != nil {
				result.WriteFailures++
				logger.WithFields(logrus.Fields{"VacancyId": vacancy.Id, "Error": err}).Error("failed to save vacancy")
				continue
			}

			switch outcome {
			case db.OutcomeInserted:
				result.VacanciesInserted++
			case db.OutcomeSkipped:
				result.VacanciesSkipped++
				logger.WithField("VacancyId", vacancy.Id).Debug("vacancy already stored")
			case db.OutcomeOrphan:
				result.VacanciesOrphaned++
				logger.WithFields(logrus.Fields{
					"VacancyId":  vacancy.Id,
					"EmployerId": vacancy.EmployerId,
				}).Warn("skipping vacancy of unknown employer")
			}
		}
		return nil
	})
}

// inTx commits once after fn returns nil. A failure to begin or commit the
// transaction is a store connection error.
func (p *Pipeline) inTx(ctx context.Context, fn func(tx bun.Tx) error) error {
	tx, err := p.connection.BeginTx(ctx, nil)
	if err != nil {
		return apperror.StoreConnection("failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.StoreConnection("failed to commit transaction", err)
	}

	return nil
}

func logValidationError(logger log.Logger, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		logger.WithFields(logrus.Fields{
			"VacancyId": validationErr.VacancyId,
			"Field":     validationErr.Field,
		}).Warn("skipping invalid vacancy")
		return
	}

	logger.WithField("Error", err).Warn("skipping invalid vacancy")
}

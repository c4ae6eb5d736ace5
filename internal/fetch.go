package internal

import (
	"context"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/csr-ugra/hh-vacancy-loader/internal/retry"
	"github.com/sirupsen/logrus"
	"time"
)

// Source returns employer metadata and vacancy listings for an employer id.
// FetchEmployer returns a nil employer when the source does not know the id.
type Source interface {
	FetchEmployer(ctx context.Context, employerId int64) (*RawEmployer, error)
	FetchVacancies(ctx context.Context, employerId int64) ([]RawVacancy, error)
}

// RetryingFetcher reads vacancies from a Source under a retry policy.
// Employer metadata is read once without retries.
type RetryingFetcher struct {
	source Source
	policy retry.Policy
	logger log.Logger
}

func NewRetryingFetcher(source Source, policy retry.Policy, logger log.Logger) *RetryingFetcher {
	return &RetryingFetcher{
		source: source,
		policy: policy,
		logger: logger,
	}
}

// FetchVacanciesWithRetry returns the vacancies of the employer, or an empty
// list once every attempt has failed. It never returns an error.
func (f *RetryingFetcher) FetchVacanciesWithRetry(ctx context.Context, employerId int64) []RawVacancy {
	logger := f.logger.WithField("EmployerId", employerId)

	vacancies, err := retry.Do(ctx, f.policy, func(ctx context.Context) ([]RawVacancy, error) {
		return f.source.FetchVacancies(ctx, employerId)
	}, func(attempt int, delay time.Duration, err error) {
		logger.WithFields(logrus.Fields{
			"Attempt": attempt,
			"Delay":   delay.String(),
			"Error":   err,
		}).Warn("failed to fetch vacancies, trying again")
	})
	if err != nil && ctx.Err() != nil {
		logger.WithField("Error", err).Warn("vacancy fetch cancelled")
		return []RawVacancy{}
	}
	if err != nil {
		logger.WithFields(logrus.Fields{
			"Attempts": f.policy.MaxRetries + 1,
			"Error":    err,
		}).Error("giving up fetching vacancies")
		return []RawVacancy{}
	}

	if vacancies == nil {
		vacancies = []RawVacancy{}
	}

	return vacancies
}

// FetchEmployer is a single attempt; a failure is logged and yields nil.
func (f *RetryingFetcher) FetchEmployer(ctx context.Context, employerId int64) (*RawEmployer, error) {
	employer, err := f.source.FetchEmployer(ctx, employerId)
	if err != nil {
		f.logger.WithFields(logrus.Fields{
			"EmployerId": employerId,
			"Error":      err,
		}).Error("failed to fetch employer")
		return nil, err
	}

	return employer, nil
}

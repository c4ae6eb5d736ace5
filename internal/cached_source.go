package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal/cache"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/sirupsen/logrus"
	"time"
)

// CachingSource keeps employer metadata in a cache so repeated runs do not
// refetch it. Vacancy listings always go to the wrapped source.
type CachingSource struct {
	next   Source
	cache  cache.Cache
	ttl    time.Duration
	logger log.Logger
}

func NewCachingSource(next Source, c cache.Cache, ttl time.Duration, logger log.Logger) *CachingSource {
	return &CachingSource{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func employerCacheKey(employerId int64) string {
	return fmt.Sprintf("hh:employer:%d", employerId)
}

func (s *CachingSource) FetchEmployer(ctx context.Context, employerId int64) (*RawEmployer, error) {
	key := employerCacheKey(employerId)
	logger := s.logger.WithField("EmployerId", employerId)

	data, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var employer RawEmployer
		if err := json.Unmarshal(data, &employer); err == nil {
			logger.Debug("employer served from cache")
			return &employer, nil
		}
		logger.Warn("dropping unreadable cached employer")
		_ = s.cache.Delete(ctx, key)
	case !errors.Is(err, cache.ErrNotFound):
		logger.WithField("Error", err).Warn("employer cache unavailable")
	}

	employer, err := s.next.FetchEmployer(ctx, employerId)
	if err != nil || employer == nil {
		return employer, err
	}

	data, err = json.Marshal(employer)
	if err == nil {
		err = s.cache.Set(ctx, key, data, s.ttl)
	}
	if err != nil {
		logger.WithFields(logrus.Fields{"Error": err}).Warn("failed to cache employer")
	}

	return employer, nil
}

func (s *CachingSource) FetchVacancies(ctx context.Context, employerId int64) ([]RawVacancy, error) {
	return s.next.FetchVacancies(ctx, employerId)
}

package advisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mfGuruBot/internal/finance"
)

// NAVSource yields the cleaned NAV history of a scheme.
type NAVSource interface {
	History(ctx context.Context, code string) (finance.Scheme, finance.PriceSeries, error)
}

// RawFetcher is the subset of the mfapi client the cache wraps.
type RawFetcher interface {
	FetchHistoryRaw(ctx context.Context, code string) ([]byte, error)
}

// NAVCache persists raw provider payloads.
type NAVCache interface {
	GetNAV(code string, maxAge time.Duration) ([]byte, bool, error)
	PutNAV(code string, body []byte) error
}

// CachedSource serves NAV histories from the cache while they are younger than
// ttl and refetches otherwise. A zero ttl disables caching.
type CachedSource struct {
	cache   NAVCache
	fetcher RawFetcher
	ttl     time.Duration
	logger  *zap.Logger
}

func NewCachedSource(cache NAVCache, fetcher RawFetcher, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{cache: cache, fetcher: fetcher, ttl: ttl, logger: logger.With(zap.String("component", "nav_cache"))}
}

func (s *CachedSource) History(ctx context.Context, code string) (finance.Scheme, finance.PriceSeries, error) {
	if s.ttl > 0 {
		body, ok, err := s.cache.GetNAV(code, s.ttl)
		if err != nil {
			s.logger.Warn("cache read failed", zap.String("code", code), zap.Error(err))
		} else if ok {
			scheme, series, perr := finance.ParseHistory(code, body)
			if perr == nil {
				s.logger.Debug("cache hit", zap.String("code", code))
				return scheme, series, nil
			}
			s.logger.Warn("cached payload unreadable, refetching", zap.String("code", code), zap.Error(perr))
		}
	}

	body, err := s.fetcher.FetchHistoryRaw(ctx, code)
	if err != nil {
		return finance.Scheme{}, finance.PriceSeries{}, err
	}
	scheme, series, err := finance.ParseHistory(code, body)
	if err != nil {
		return finance.Scheme{}, finance.PriceSeries{}, err
	}
	if s.ttl > 0 {
		if err := s.cache.PutNAV(code, body); err != nil {
			s.logger.Warn("cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return scheme, series, nil
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mfGuruBot/internal/finance"
)

// Catalogue fetches the full scheme list.
type Catalogue interface {
	FetchSchemes(ctx context.Context) ([]finance.Scheme, error)
}

// Maintenance is the storage housekeeping the jobs run.
type Maintenance interface {
	ReplaceSchemes(schemes []finance.Scheme) error
	PurgeNAV(before time.Time) (int64, error)
	PruneSessions(before time.Time) (int64, error)
}

type Specs struct {
	RefreshSchemes string
	PurgeNAV       string
	PruneSessions  string
	NAVCacheTTL    time.Duration
	SessionIdle    time.Duration
}

// Scheduler manages the background cron jobs.
type Scheduler struct {
	Cron      *cron.Cron
	catalogue Catalogue
	store     Maintenance
	specs     Specs
	ctx       context.Context
	logger    *zap.Logger

	afterPrune []func(before time.Time)
}

func NewScheduler(ctx context.Context, catalogue Catalogue, store Maintenance, specs Specs, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		catalogue: catalogue,
		store:     store,
		specs:     specs,
		ctx:       ctx,
		logger:    log.With(zap.String("component", "scheduler")),
	}
}

// RegisterAll registers every job whose spec is non-empty.
func (s *Scheduler) RegisterAll() error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"refresh schemes", s.specs.RefreshSchemes, s.RefreshSchemesNow},
		{"purge nav cache", s.specs.PurgeNAV, s.purgeNAV},
		{"prune sessions", s.specs.PruneSessions, s.pruneSessions},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// AfterPrune registers fn to run with the idle cutoff after each successful
// session prune. Call before Start.
func (s *Scheduler) AfterPrune(fn func(before time.Time)) {
	s.afterPrune = append(s.afterPrune, fn)
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RefreshSchemesNow reloads the scheme catalogue; also run once at startup.
func (s *Scheduler) RefreshSchemesNow() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()
	schemes, err := s.catalogue.FetchSchemes(ctx)
	if err != nil {
		s.logger.Error("refresh schemes: fetch failed", zap.Error(err))
		return
	}
	if len(schemes) == 0 {
		s.logger.Warn("refresh schemes: empty catalogue, keeping previous")
		return
	}
	if err := s.store.ReplaceSchemes(schemes); err != nil {
		s.logger.Error("refresh schemes: store failed", zap.Error(err))
		return
	}
	s.logger.Info("scheme catalogue refreshed", zap.Int("schemes", len(schemes)))
}

func (s *Scheduler) purgeNAV() {
	n, err := s.store.PurgeNAV(time.Now().Add(-s.specs.NAVCacheTTL))
	if err != nil {
		s.logger.Error("purge nav cache failed", zap.Error(err))
		return
	}
	s.logger.Info("nav cache purged", zap.Int64("rows", n))
}

func (s *Scheduler) pruneSessions() {
	before := time.Now().Add(-s.specs.SessionIdle)
	n, err := s.store.PruneSessions(before)
	if err != nil {
		s.logger.Error("prune sessions failed", zap.Error(err))
		return
	}
	for _, fn := range s.afterPrune {
		fn(before)
	}
	s.logger.Info("idle sessions pruned", zap.Int64("rows", n))
}

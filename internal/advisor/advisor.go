package advisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mfGuruBot/internal/finance"
	"mfGuruBot/internal/logger"
)

// Default display hints attached to live candidates; mfapi does not publish them.
const (
	DefaultExpensePct = 0.6
	DefaultAUMCr      = 25000
)

// FallbackExplanation is sent when the language model is unavailable.
const FallbackExplanation = "• Past mein bahut achha return diya\n• Kam kharcha\n• Aapke risk level ke liye perfect\n• Trusted fund house"

type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Explainer produces short bullet text for one fund.
type Explainer interface {
	Explain(ctx context.Context, fundName string, p finance.Profile) (string, error)
}

// Pick is one ranked fund with its explanation.
type Pick struct {
	finance.Candidate
	Explanation         string
	ExplanationFallback bool
}

type Recommendation struct {
	RunID       string
	Profile     finance.Profile
	Plan        finance.ContributionPlan
	FutureValue decimal.Decimal
	Picks       []Pick
	Source      Source
	// Skipped lists codes that were dropped during screening.
	Skipped []string
}

// FundReport is the standalone view of one scheme.
type FundReport struct {
	Scheme  finance.Scheme
	Series  finance.PriceSeries
	Returns finance.ReturnsRecord
	// Insufficient is set when the history is too short for statistics.
	Insufficient bool
}

type Options struct {
	Codes   []string
	TopN    int
	Workers int
	// Fallback is substituted when no live candidate survives screening.
	Fallback []finance.Candidate
}

type Service struct {
	source    NAVSource
	explainer Explainer
	opts      Options
	logger    *zap.Logger
}

// New builds the advisor. A nil explainer means every pick gets FallbackExplanation.
func New(source NAVSource, explainer Explainer, opts Options, log *zap.Logger) *Service {
	if opts.TopN <= 0 {
		opts.TopN = finance.DefaultTopN
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{source: source, explainer: explainer, opts: opts, logger: log.With(zap.String("component", "advisor"))}
}

// Advise screens the configured schemes, ranks them for the profile's risk tier,
// explains each pick and projects the SIP. An out-of-range plan returns
// finance.ErrInvalidInput before any network work.
func (s *Service) Advise(ctx context.Context, p finance.Profile) (Recommendation, error) {
	plan := p.Plan()
	fv, err := finance.ProjectFutureValue(plan)
	if err != nil {
		return Recommendation{}, err
	}

	log, runID := logger.WithRun(s.logger, "advise")
	start := time.Now()

	rec := Recommendation{RunID: runID, Profile: p, Plan: plan, FutureValue: fv, Source: SourceLive}
	candidates, skipped := s.screen(ctx, log)
	rec.Skipped = skipped
	if ctx.Err() != nil {
		return Recommendation{}, ctx.Err()
	}

	if len(candidates) == 0 {
		if len(s.opts.Fallback) == 0 {
			return Recommendation{}, errors.New("no live fund data and no fallback catalogue")
		}
		log.Warn("no live candidates, using fallback catalogue",
			zap.Int("fallback_funds", len(s.opts.Fallback)), zap.Strings("skipped", skipped))
		candidates = s.opts.Fallback
		rec.Source = SourceFallback
	}

	ranked := finance.Rank(candidates, p.Risk, s.opts.TopN)
	rec.Picks = s.explain(ctx, log, p, ranked)

	log.Info("advice ready",
		zap.String("risk", string(p.Risk)),
		zap.Int("screened", len(candidates)),
		zap.Int("picks", len(rec.Picks)),
		zap.String("source", string(rec.Source)),
		zap.Duration("elapsed", time.Since(start)))
	return rec, nil
}

// screen fetches every configured scheme concurrently. Failures drop the
// candidate and never abort the others.
func (s *Service) screen(ctx context.Context, log *zap.Logger) ([]finance.Candidate, []string) {
	results := make([]*finance.Candidate, len(s.opts.Codes))
	var (
		mu      sync.Mutex
		skipped []string
	)
	skip := func(code string) {
		mu.Lock()
		skipped = append(skipped, code)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, code := range s.opts.Codes {
		g.Go(func() error {
			scheme, series, err := s.source.History(gctx, code)
			if err != nil {
				log.Warn("fetch failed, skipping scheme", zap.String("code", code), zap.Error(err))
				skip(code)
				return nil
			}
			ret, err := finance.ComputeReturns(series)
			if errors.Is(err, finance.ErrInsufficient) {
				log.Info("history too short, skipping scheme", zap.String("code", code), zap.Int("points", series.Len()))
				skip(code)
				return nil
			}
			if err != nil {
				log.Warn("returns failed, skipping scheme", zap.String("code", code), zap.Error(err))
				skip(code)
				return nil
			}
			results[i] = &finance.Candidate{
				Scheme:     scheme,
				Returns:    ret,
				ExpensePct: DefaultExpensePct,
				AUMCr:      DefaultAUMCr,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]finance.Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, skipped
}

func (s *Service) explain(ctx context.Context, log *zap.Logger, p finance.Profile, ranked []finance.Candidate) []Pick {
	picks := make([]Pick, len(ranked))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, c := range ranked {
		picks[i] = Pick{Candidate: c}
		g.Go(func() error {
			if s.explainer == nil {
				picks[i].Explanation = FallbackExplanation
				picks[i].ExplanationFallback = true
				return nil
			}
			text, err := s.explainer.Explain(ctx, c.Name, p)
			if err != nil {
				log.Warn("explanation failed, using fallback text", zap.String("code", c.Code), zap.Error(err))
				picks[i].Explanation = FallbackExplanation
				picks[i].ExplanationFallback = true
				return nil
			}
			picks[i].Explanation = text
			return nil
		})
	}
	_ = g.Wait()
	return picks
}

// Inspect computes the statistics of any single scheme. Short histories are
// reported through FundReport.Insufficient rather than as an error.
func (s *Service) Inspect(ctx context.Context, code string) (FundReport, error) {
	scheme, series, err := s.source.History(ctx, code)
	if err != nil {
		return FundReport{}, fmt.Errorf("fund %s: %w", code, err)
	}
	rep := FundReport{Scheme: scheme, Series: series}
	ret, err := finance.ComputeReturns(series)
	switch {
	case errors.Is(err, finance.ErrInsufficient):
		rep.Insufficient = true
	case err != nil:
		return FundReport{}, fmt.Errorf("fund %s: %w", code, err)
	default:
		rep.Returns = ret
	}
	return rep, nil
}

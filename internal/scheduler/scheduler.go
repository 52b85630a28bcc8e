package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JeffBrines/dive-bar-detective/pkg/analyze"
	"github.com/JeffBrines/dive-bar-detective/pkg/lens"
)

// Scheduler runs the analyze and aggregate steps on fixed intervals so the
// daemon keeps location scores current as new reviews land.
type Scheduler struct {
	analyzer   *analyze.Analyzer
	aggregator *lens.Aggregator
	log        *zap.Logger

	analyzeEvery   time.Duration
	aggregateEvery time.Duration
	analyzeBatch   int
}

// New creates a scheduler.
func New(analyzer *analyze.Analyzer, aggregator *lens.Aggregator,
	analyzeEvery, aggregateEvery time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		analyzer:       analyzer,
		aggregator:     aggregator,
		log:            log,
		analyzeEvery:   analyzeEvery,
		aggregateEvery: aggregateEvery,
		analyzeBatch:   25,
	}
}

// Run blocks until ctx is canceled. Both steps fire once at startup so a
// fresh daemon converges immediately instead of waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Duration("analyze_every", s.analyzeEvery),
		zap.Duration("aggregate_every", s.aggregateEvery))

	s.runAnalyze(ctx)
	s.runAggregate(ctx)

	analyzeTicker := time.NewTicker(s.analyzeEvery)
	defer analyzeTicker.Stop()
	aggregateTicker := time.NewTicker(s.aggregateEvery)
	defer aggregateTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-analyzeTicker.C:
			s.runAnalyze(ctx)
		case <-aggregateTicker.C:
			s.runAggregate(ctx)
		}
	}
}

func (s *Scheduler) runAnalyze(ctx context.Context) {
	n, err := s.analyzer.ProcessPending(ctx, s.analyzeBatch, 0)
	if err != nil {
		s.log.Error("scheduled analyze failed", zap.Int("processed", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("scheduled analyze done", zap.Int("processed", n))
	}
}

func (s *Scheduler) runAggregate(ctx context.Context) {
	n, err := s.aggregator.Run(ctx)
	if err != nil {
		s.log.Error("scheduled aggregate failed", zap.Int("updated", n), zap.Error(err))
		return
	}
	s.log.Info("scheduled aggregate done", zap.Int("updated", n))
}

// Package engine runs the resolution cycle: load the ledger, sample the
// market once, resolve pending calls, apply retention, recompute statistics
// and save with a version check.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/oracle"
	"github.com/newthinker/verdict/internal/resolver"
	"github.com/newthinker/verdict/internal/retention"
	"github.com/newthinker/verdict/internal/stats"
	"github.com/newthinker/verdict/internal/storage/ledger"
	"go.uber.org/zap"
)

// Sampler takes one market snapshot. *oracle.Oracle implements it.
type Sampler interface {
	Sample(ctx context.Context, since time.Time, withCandles bool) (*oracle.Snapshot, error)
}

// Recorder receives cycle metrics. *metrics.Registry implements it.
type Recorder interface {
	RecordCycle(status string, duration float64)
	RecordResolved(policy string, correct bool)
	RecordSkipped(n int)
	RecordPurged(n int)
	RecordConflict()
	SetStats(acc7d, acc30d, accAll float64, streakCurrent, streakBest, pending int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCycle(string, float64)                       {}
func (nopRecorder) RecordResolved(string, bool)                       {}
func (nopRecorder) RecordSkipped(int)                                 {}
func (nopRecorder) RecordPurged(int)                                  {}
func (nopRecorder) RecordConflict()                                   {}
func (nopRecorder) SetStats(float64, float64, float64, int, int, int) {}

// Config holds cycle settings.
type Config struct {
	CycleTimeout time.Duration
	MaxRetries   uint64
	RetryInitial time.Duration
	RetryMax     time.Duration
	ArchiveTime  time.Duration
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		CycleTimeout: 45 * time.Second,
		MaxRetries:   5,
		RetryInitial: 100 * time.Millisecond,
		RetryMax:     2 * time.Second,
		ArchiveTime:  10 * time.Second,
	}
}

// Result summarizes one completed cycle. Checked and Correct count only
// calls still in the ledger after retention; a call resolved and purged in
// the same cycle is reported in Purged alone.
type Result struct {
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"duration"`
	Attempts  int                `json:"attempts"`
	Checked   int                `json:"checkedCount"`
	Correct   int                `json:"correctCount"`
	Purged    int                `json:"purgedCount"`
	Skipped   int                `json:"skippedCount"`
	Pending   int                `json:"pendingCount"`
	Source    string             `json:"source,omitempty"`
	Stats     core.StatsSnapshot `json:"stats"`
}

// Engine runs resolution cycles against a ledger. It holds no state between
// cycles; concurrent cycles are reconciled by the ledger version check.
type Engine struct {
	store     ledger.Store
	sampler   Sampler
	resolver  *resolver.Resolver
	retention *retention.Manager
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
	cfg       Config
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithResolver replaces the default resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithRetention replaces the default 90 day retention with no archive.
func WithRetention(m *retention.Manager) Option {
	return func(e *Engine) {
		if m != nil {
			e.retention = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine.
func New(store ledger.Store, sampler Sampler, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = def.CycleTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.ArchiveTime <= 0 {
		cfg.ArchiveTime = def.ArchiveTime
	}

	e := &Engine{
		store:    store,
		sampler:  sampler,
		recorder: nopRecorder{},
		logger:   zap.NewNop(),
		now:      time.Now,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = resolver.New(e.logger)
	}
	if e.retention == nil {
		e.retention = retention.NewManager(retention.DefaultWindow, nil, e.logger)
	}
	return e
}

// Store returns the ledger the engine writes.
func (e *Engine) Store() ledger.Store {
	return e.store
}

// Run executes one cycle. On any failure the ledger is left as it was.
// Conflicting writes restart the whole cycle from a fresh load.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := e.now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CycleTimeout)
	defer cancel()

	var (
		snap     *oracle.Snapshot
		result   *Result
		purged   []core.Call
		verdicts []resolver.Verdict
		attempts int
	)

	op := func() error {
		attempts++

		doc, version, err := e.store.Load(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		plan := e.resolver.Plan(doc.Signals, started)
		var market resolver.Market
		if plan.NeedMarket() {
			if !snap.Covers(plan.Since, plan.NeedCandles) {
				snap, err = e.sampler.Sample(ctx, plan.Since, plan.NeedCandles)
				if err != nil {
					return backoff.Permanent(err)
				}
			}
			market = resolver.Market{
				Source:     snap.Source,
				Price:      snap.Price,
				HasCandles: snap.HasCandles,
				Candles:    snap.Candles,
			}
		}

		calls, outcome, err := e.resolver.Resolve(doc.Signals, market, started)
		if err != nil {
			return backoff.Permanent(err)
		}

		kept, dropped := e.retention.Trim(calls, started)
		snapshot := stats.Compute(kept, started)

		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		next := &ledger.Document{LastUpdated: started, Signals: kept, Stats: snapshot}
		if _, err := e.store.Save(ctx, next, version); err != nil {
			if errors.Is(err, core.ErrLedgerConflict) {
				e.recorder.RecordConflict()
				e.logger.Info("ledger changed during cycle, retrying", zap.Int("attempt", attempts))
				return err
			}
			return backoff.Permanent(err)
		}

		verdicts = retained(outcome.Verdicts, dropped)
		correct := 0
		for _, v := range verdicts {
			if v.Correct {
				correct++
			}
		}
		result = &Result{
			StartedAt: started,
			Attempts:  attempts,
			Checked:   len(verdicts),
			Correct:   correct,
			Purged:    len(dropped),
			Skipped:   outcome.Skipped,
			Pending:   snapshot.Pending,
			Source:    market.Source,
			Stats:     snapshot,
		}
		purged = dropped
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(e.backoff(), ctx))
	elapsed := e.now().Sub(started)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = core.WrapError(core.ErrCycleTimeout, err)
		}
		e.recorder.RecordCycle("failure", elapsed.Seconds())
		e.logger.Error("resolution cycle failed",
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, fmt.Errorf("resolution cycle: %w", err)
	}
	result.Duration = elapsed

	e.record(result, verdicts)
	e.archive(ctx, purged, started)

	e.logger.Info("resolution cycle complete",
		zap.Int("checked", result.Checked),
		zap.Int("correct", result.Correct),
		zap.Int("purged", result.Purged),
		zap.Int("skipped", result.Skipped),
		zap.Int("pending", result.Pending),
		zap.Int("attempts", result.Attempts),
		zap.String("source", result.Source),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (e *Engine) backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInitial
	b.MaxInterval = e.cfg.RetryMax
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, e.cfg.MaxRetries)
}

// retained drops verdicts for calls removed by retention.
func retained(verdicts []resolver.Verdict, dropped []core.Call) []resolver.Verdict {
	if len(dropped) == 0 {
		return verdicts
	}
	gone := make(map[string]struct{}, len(dropped))
	for _, c := range dropped {
		gone[c.ID] = struct{}{}
	}
	out := make([]resolver.Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if _, ok := gone[v.CallID]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func (e *Engine) record(r *Result, verdicts []resolver.Verdict) {
	e.recorder.RecordCycle("success", r.Duration.Seconds())
	for _, v := range verdicts {
		e.recorder.RecordResolved(v.Policy, v.Correct)
	}
	e.recorder.RecordSkipped(r.Skipped)
	e.recorder.RecordPurged(r.Purged)
	s := r.Stats
	e.recorder.SetStats(s.Accuracy7d, s.Accuracy30d, s.AccuracyAll, s.StreakCurrent, s.StreakBest, s.Pending)
}

// archive runs after the ledger is committed, so it gets its own deadline
// independent of the cycle budget.
func (e *Engine) archive(ctx context.Context, purged []core.Call, at time.Time) {
	if len(purged) == 0 {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ArchiveTime)
	defer cancel()
	// Errors are logged by the manager.
	_ = e.retention.Archive(actx, purged, at)
}

// Stats returns the statistics stored with the ledger.
func (e *Engine) Stats(ctx context.Context) (core.StatsSnapshot, error) {
	doc, _, err := e.store.Load(ctx)
	if err != nil {
		return core.StatsSnapshot{}, err
	}
	return doc.Stats, nil
}

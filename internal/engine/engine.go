// internal/engine/engine.go
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/bugscan/internal/analysis/core"
	"github.com/xkilldash9x/bugscan/internal/analysis/flow"
	"github.com/xkilldash9x/bugscan/internal/assertions"
	"github.com/xkilldash9x/bugscan/internal/config"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// -- Interfaces for Dependency Inversion --

// ExpectationSource supplies the declared expectations of a method, if any.
type ExpectationSource interface {
	Expectations(t *syntax.TypeDef, m *syntax.MethodDef) (assertions.Expectations, bool)
}

// MethodObserver is implemented by metrics that also count analyzed methods.
type MethodObserver interface {
	MethodAnalyzed()
}

// FlowFactory builds the value flow resolver for one method.
type FlowFactory func(m *syntax.MethodDef) core.ValueFlow

// DefaultFlow resolves variable reads with reaching-definition analysis.
func DefaultFlow(m *syntax.MethodDef) core.ValueFlow {
	return flow.Analyze(m)
}

// -- Engine --

// Engine analyzes methods concurrently. Each method gets its own dispatcher,
// aggregator, flow resolver and checker chain; the sinks and metrics are
// shared.
type Engine struct {
	registry     *core.Registry
	findings     core.FindingSink
	errors       core.ErrorSink
	metrics      core.Metrics
	logger       *zap.Logger
	concurrency  int
	flow         FlowFactory
	expectations ExpectationSource
	checkers     []core.Checker
	analysis     *config.AnalysisConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the number of methods analyzed at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m core.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFlow replaces the value flow analysis. A nil factory disables it.
func WithFlow(f FlowFactory) Option {
	return func(e *Engine) { e.flow = f }
}

// WithExpectations enables assertion checking against src.
func WithExpectations(src ExpectationSource) Option {
	return func(e *Engine) { e.expectations = src }
}

// WithCheckers appends shared checkers that run after the asserter.
// Checkers given here must be safe for concurrent use.
func WithCheckers(checkers ...core.Checker) Option {
	return func(e *Engine) { e.checkers = append(e.checkers, checkers...) }
}

// WithAnalysisConfig disables the configured rules and installs a
// suppressor for the configured kinds and rank floor.
func WithAnalysisConfig(cfg config.AnalysisConfig) Option {
	return func(e *Engine) { e.analysis = &cfg }
}

// New creates an engine over registry that delivers to the given sinks.
// Neither sink may be nil.
func New(registry *core.Registry, findings core.FindingSink, errs core.ErrorSink, opts ...Option) *Engine {
	e := &Engine{
		registry:    registry,
		findings:    findings,
		errors:      errs,
		metrics:     core.NopMetrics(),
		logger:      zap.NewNop(),
		concurrency: 4,
		flow:        DefaultFlow,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency <= 0 {
		e.concurrency = 1
	}
	if cfg := e.analysis; cfg != nil {
		if len(cfg.DisabledRules) > 0 {
			e.registry = e.registry.Without(cfg.DisabledRules...)
		}
		if len(cfg.SuppressedKinds) > 0 || cfg.MinRank > 0 {
			e.checkers = append(e.checkers, assertions.NewSuppressor(cfg.SuppressedKinds, cfg.MinRank, e.logger))
		}
	}
	e.logger = e.logger.Named("engine")
	return e
}

// Registry returns the registry the engine dispatches from.
func (e *Engine) Registry() *core.Registry {
	return e.registry
}

// Run analyzes every method of types. Method failures never abort the run;
// they arrive in the error sink. The only error returned is the context's.
func (e *Engine) Run(ctx context.Context, types []*syntax.TypeDef) error {
	start := time.Now()
	var analyzed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	e.logger.Info("Starting analysis",
		zap.Int("types", len(types)),
		zap.Int("rules", len(e.registry.Bindings())),
		zap.Int("concurrency", e.concurrency))

dispatch:
	for _, t := range types {
		for _, m := range t.Methods {
			if gctx.Err() != nil {
				break dispatch
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				e.AnalyzeMethod(t, m)
				analyzed.Add(1)
				return nil
			})
		}
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.logger.Warn("Analysis interrupted", zap.Int64("methods", analyzed.Load()), zap.Error(err))
		return err
	}
	e.logger.Info("Analysis complete",
		zap.Int64("methods", analyzed.Load()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// AnalyzeMethod runs the per-method pipeline synchronously.
func (e *Engine) AnalyzeMethod(t *syntax.TypeDef, m *syntax.MethodDef) {
	logger := e.logger.With(zap.String("method", t.Ref(m)))
	logger.Debug("Analyzing method")

	var vf core.ValueFlow
	if e.flow != nil && m.Body != nil {
		vf = e.flow(m)
	}

	core.AnalyzeMethod(core.Unit{
		Type:     t,
		Method:   m,
		Registry: e.registry,
		Flow:     vf,
		Checker:  e.checkerFor(t, m),
		Findings: e.findings,
		Errors:   e.errors,
		Metrics:  e.metrics,
		Logger:   e.logger,
	})

	if obs, ok := e.metrics.(MethodObserver); ok {
		obs.MethodAnalyzed()
	}
}

// checkerFor builds the method's chain. The asserter goes first so it sees
// every finding, including the ones a later checker vetoes.
func (e *Engine) checkerFor(t *syntax.TypeDef, m *syntax.MethodDef) core.Checker {
	chain := make(assertions.Chain, 0, len(e.checkers)+1)
	if e.expectations != nil {
		if exp, ok := e.expectations.Expectations(t, m); ok && !exp.IsZero() {
			chain = append(chain, assertions.NewAsserter(exp, e.errors, t.Ref(m)))
		}
	}
	chain = append(chain, e.checkers...)
	if len(chain) == 0 {
		return nil
	}
	return chain
}

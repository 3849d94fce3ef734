// Package resolution turns an API operation, the run's execution memory, a
// role and a seed into a fully formed, reproducible request. The Engine runs
// a fixed pipeline of stages over a per-call Context:
//
//	schema -> dependency -> strategy -> seed -> field -> rbac -> validate
//
// Any failure inside the pipeline degrades to a request synthesized directly
// from the schema, so one malformed operation never blocks a whole run.
package resolution

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/erp/tools/testgen/internal/datagen"
)

// Outcomes reported to the Observer.
const (
	OutcomeResolved = "resolved"
	OutcomeFallback = "fallback"
)

// Observer receives resolution events. metrics.Recorder implements it.
type Observer interface {
	ObserveResolution(method, outcome string)
	ObserveStrategy(strategy string)
	ObserveGaps(count int)
}

// Engine orchestrates the resolution pipeline.
//
// Thread Safety: Engine is safe for concurrent use. Every call owns its
// Context; shared state lives only in the caller's Memory.
type Engine struct {
	stages    []Stage
	logger    *zap.Logger
	observer  Observer
	wallClock bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver sets the resolution observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithWallClock makes date-time fields use the current time instead of a
// timestamp derived from the seed. Output is then no longer reproducible.
func WithWallClock() Option {
	return func(e *Engine) {
		e.wallClock = true
	}
}

// NewEngine creates an engine with the standard pipeline.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		stages: []Stage{
			SchemaAnalyzer{},
			DependencyResolver{},
			NewStrategySelector(),
			SeedBinder{},
			FieldResolver{},
			RBACInjector{},
			Validator{},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve resolves req and never fails: on any pipeline error the request is
// synthesized directly from the schema and Metadata.Fallback is set.
func (e *Engine) Resolve(req *Request) *ResolvedRequest {
	if req == nil {
		req = &Request{}
	}
	resolved, err := e.ResolveStrict(req)
	if err == nil {
		return resolved
	}

	e.logger.Warn("resolution failed, using fallback",
		zap.String("operation", req.Endpoint),
		zap.String("method", req.Method),
		zap.Error(err),
	)

	resolved = e.fallback(req, err)
	if e.observer != nil {
		e.observer.ObserveResolution(resolved.Method, OutcomeFallback)
	}
	return resolved
}

// ResolveStrict runs the pipeline and returns its error instead of falling
// back. Validation failures unwrap to ErrMissingRequiredField or
// ErrInvalidEnumValue; panics are reported as ErrGenerationFallback.
func (e *Engine) ResolveStrict(req *Request) (*ResolvedRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrGenerationFallback)
	}

	c := e.newContext(req)
	for _, stage := range e.stages {
		if err := e.apply(stage, c); err != nil {
			return nil, err
		}
	}

	for _, gap := range c.Gaps {
		e.logger.Debug("unresolved schema reference", zap.String("ref", gap.Ref))
	}

	if e.observer != nil {
		e.observer.ObserveResolution(c.Method, OutcomeResolved)
		e.observer.ObserveGaps(len(c.Gaps))
		for _, s := range c.Strategies {
			e.observer.ObserveStrategy(string(s))
		}
	}
	return c.request(), nil
}

func (e *Engine) newContext(req *Request) *Context {
	c := newContext(req)
	if e.wallClock {
		c.timestamp = func(string, string) string { return datagen.Now() }
	}
	return c
}

// apply runs one stage, converting a panic into ErrGenerationFallback.
func (e *Engine) apply(stage Stage, c *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s stage panicked: %v", ErrGenerationFallback, stage.Name(), r)
		}
	}()

	if err := stage.Apply(c); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return err
		}
		return fmt.Errorf("%s stage: %w", stage.Name(), err)
	}
	return nil
}

package workflow

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/erp/tools/testgen/internal/lifecycle"
	"github.com/example/erp/tools/testgen/internal/memory"
	"github.com/example/erp/tools/testgen/internal/openapi"
	"github.com/example/erp/tools/testgen/internal/resolution"
)

// Resolver turns a resolution request into a concrete request.
// resolution.Engine implements it.
type Resolver interface {
	Resolve(req *resolution.Request) *resolution.ResolvedRequest
}

// ExecutorConfig holds configuration for the workflow executor.
type ExecutorConfig struct {
	// Document is the API document every step is resolved against.
	Document *openapi.Document

	// Resolver resolves each step.
	Resolver Resolver

	// Roles maps role names to their contexts.
	Roles map[string]resolution.RoleContext

	// DefaultRole is used by steps that name no role.
	DefaultRole string

	// Intents holds per-operation intent overrides keyed by "METHOD /path".
	Intents map[string]map[string]any

	// BaseDir resolves relative response fixture paths.
	BaseDir string

	// Logger receives step progress. Default: no-op.
	Logger *zap.Logger

	// Observer receives capture events.
	Observer lifecycle.Observer

	// OnStepComplete is called after each step completes. ExecuteAll may
	// call it from several goroutines at once.
	OnStepComplete func(workflowName string, stepIndex int, step Step, result StepResult)
}

// Executor resolves workflows. Every Execute call owns a fresh execution
// memory, so concurrent executions do not share captured values.
type Executor struct {
	config ExecutorConfig

	// Statistics
	workflowsExecuted atomic.Int64
	workflowsFailed   atomic.Int64
	stepsExecuted     atomic.Int64
	stepsFailed       atomic.Int64
	valuesCaptured    atomic.Int64
}

// StepResult holds the result of resolving a single step.
type StepResult struct {
	// StepIndex is the 0-based index of the step.
	StepIndex int `json:"stepIndex" yaml:"stepIndex"`

	// StepName is the name of the step.
	StepName string `json:"stepName" yaml:"stepName"`

	// Endpoint is the operation that was resolved.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Request is the resolved request.
	Request *resolution.ResolvedRequest `json:"request,omitempty" yaml:"request,omitempty"`

	// ReusedParams lists path placeholders satisfied from execution memory.
	ReusedParams []string `json:"reusedParams,omitempty" yaml:"reusedParams,omitempty"`

	// Captured holds the values captured from the step's recorded response.
	Captured map[string]any `json:"captured,omitempty" yaml:"captured,omitempty"`

	// Error holds any error that occurred.
	Error error `json:"-" yaml:"-"`

	// ErrorMessage is Error rendered for plan output.
	ErrorMessage string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Success reports whether the step was planned without error.
func (r StepResult) Success() bool {
	return r.Error == nil
}

// Result holds the result of executing a workflow.
type Result struct {
	// WorkflowName is the name of the executed workflow.
	WorkflowName string `json:"workflow" yaml:"workflow"`

	// Success indicates whether all steps were planned.
	Success bool `json:"success" yaml:"success"`

	// Steps holds results for each executed step.
	Steps []StepResult `json:"steps" yaml:"steps"`

	// Error holds any error that caused the workflow to abort.
	Error error `json:"-" yaml:"-"`

	// Memory is the final execution memory.
	Memory map[string]any `json:"memory" yaml:"memory"`

	// MemoryStats are the execution memory counters of the run.
	MemoryStats memory.Stats `json:"memoryStats" yaml:"memoryStats"`
}

// ExecutorStats holds executor statistics.
type ExecutorStats struct {
	WorkflowsExecuted int64
	WorkflowsFailed   int64
	StepsExecuted     int64
	StepsFailed       int64
	ValuesCaptured    int64
}

// NewExecutor creates a new workflow executor.
func NewExecutor(config ExecutorConfig) (*Executor, error) {
	if config.Document == nil {
		return nil, fmt.Errorf("document is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Executor{config: config}, nil
}

// Execute resolves every step of def in order against one execution memory.
// A step failure aborts the workflow; the partial result is still returned.
func (e *Executor) Execute(ctx context.Context, def Definition) (*Result, error) {
	if err := def.Validate(def.Name); err != nil {
		return nil, err
	}

	store := memory.NewStore()
	opts := []lifecycle.ChainerOption{lifecycle.WithLogger(e.config.Logger)}
	if e.config.Observer != nil {
		opts = append(opts, lifecycle.WithObserver(e.config.Observer))
	}
	chainer := lifecycle.NewChainer(e.config.Document, store, opts...)

	result := &Result{
		WorkflowName: def.Name,
		Steps:        make([]StepResult, 0, len(def.Steps)),
	}

	e.workflowsExecuted.Add(1)

	for i, step := range def.Steps {
		step.ApplyDefaults(i)

		if ctx.Err() != nil {
			result.Error = fmt.Errorf("%w: %v", ErrWorkflowAborted, ctx.Err())
			break
		}

		stepResult := e.executeStep(i, step, store, chainer)
		result.Steps = append(result.Steps, stepResult)
		e.stepsExecuted.Add(1)

		if e.config.OnStepComplete != nil {
			e.config.OnStepComplete(def.Name, i, step, stepResult)
		}

		if !stepResult.Success() {
			e.stepsFailed.Add(1)
			result.Error = stepResult.Error
			break
		}
	}

	result.Success = result.Error == nil && len(result.Steps) == len(def.Steps)
	result.Memory = store.Snapshot()
	result.MemoryStats = store.Stats()

	if !result.Success {
		e.workflowsFailed.Add(1)
	}

	e.config.Logger.Info("workflow planned",
		zap.String("workflow", def.Name),
		zap.Int("steps", len(result.Steps)),
		zap.Bool("success", result.Success),
		zap.Int("memory_entries", store.Len()),
	)

	return result, nil
}

// ExecuteAll executes defs with at most parallelism workflows at a time.
// Results are returned in the order of defs. Workflows never share memory,
// so their results do not depend on scheduling.
func (e *Executor) ExecuteAll(ctx context.Context, defs []Definition, parallelism int) ([]*Result, error) {
	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]*Result, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, def := range defs {
		g.Go(func() error {
			result, err := e.Execute(gctx, def)
			if err != nil {
				return fmt.Errorf("workflow %q: %w", def.Name, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Executor) executeStep(index int, step Step, store *memory.Store, chainer *lifecycle.Chainer) StepResult {
	result := StepResult{
		StepIndex: index,
		StepName:  step.Name,
		Endpoint:  step.Endpoint,
	}

	for _, name := range step.GetPlaceholders() {
		if store.Has(name) {
			result.ReusedParams = append(result.ReusedParams, name)
		}
	}

	result.Request = e.config.Resolver.Resolve(&resolution.Request{
		Endpoint: step.GetPath(),
		Method:   step.GetMethod(),
		Document: e.config.Document,
		Intent:   e.intentFor(step),
		Role:     e.roleFor(step),
		Memory:   store,
		Seed:     resolution.Seed(step.Seed),
	})

	captured, err := e.capture(step, chainer)
	if err != nil {
		result.Error = fmt.Errorf("%w: %s: %v", ErrStepFailed, step.Name, err)
		result.ErrorMessage = result.Error.Error()
		return result
	}
	result.Captured = captured
	e.valuesCaptured.Add(int64(len(captured)))

	e.config.Logger.Debug("step planned",
		zap.String("step", step.Name),
		zap.String("endpoint", step.Endpoint),
		zap.Strings("reused", result.ReusedParams),
		zap.Int("captured", len(captured)),
		zap.Bool("fallback", result.Request.Metadata.Fallback),
	)

	return result
}

// capture feeds the step's recorded response, if any, into execution memory.
func (e *Executor) capture(step Step, chainer *lifecycle.Chainer) (map[string]any, error) {
	operation := step.OperationKey()

	if step.Response != "" {
		path := step.Response
		if !filepath.IsAbs(path) && e.config.BaseDir != "" {
			path = filepath.Join(e.config.BaseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading response fixture: %w", err)
		}
		return chainer.Capture(operation, data)
	}

	if step.ResponseBody != nil {
		return chainer.CaptureDecoded(operation, step.ResponseBody), nil
	}

	return nil, nil
}

func (e *Executor) intentFor(step Step) map[string]any {
	configured := e.config.Intents[step.OperationKey()]
	if len(configured) == 0 && len(step.Intent) == 0 {
		return nil
	}

	intent := make(map[string]any, len(configured)+len(step.Intent))
	maps.Copy(intent, configured)
	maps.Copy(intent, step.Intent)
	return intent
}

func (e *Executor) roleFor(step Step) resolution.RoleContext {
	name := step.Role
	if name == "" {
		name = e.config.DefaultRole
	}
	if name == "" {
		return resolution.RoleContext{}
	}

	role, ok := e.config.Roles[name]
	if !ok {
		return resolution.RoleContext{Role: name}
	}
	role.Role = name
	return role
}

// Stats returns executor statistics.
func (e *Executor) Stats() ExecutorStats {
	return ExecutorStats{
		WorkflowsExecuted: e.workflowsExecuted.Load(),
		WorkflowsFailed:   e.workflowsFailed.Load(),
		StepsExecuted:     e.stepsExecuted.Load(),
		StepsFailed:       e.stepsFailed.Load(),
		ValuesCaptured:    e.valuesCaptured.Load(),
	}
}

package lifecycle

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/example/erp/tools/testgen/internal/memory"
	"github.com/example/erp/tools/testgen/internal/openapi"
)

// Observer receives capture events. metrics.Recorder implements it.
type Observer interface {
	ObserveCapture(captured int)
	ObserveMemorySize(entries int)
}

// Chainer captures resource values from responses into execution memory.
type Chainer struct {
	doc      *openapi.Document
	store    *memory.Store
	logger   *zap.Logger
	observer Observer
}

// ChainerOption configures a Chainer.
type ChainerOption func(*Chainer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ChainerOption {
	return func(c *Chainer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver sets the capture observer.
func WithObserver(o Observer) ChainerOption {
	return func(c *Chainer) {
		c.observer = o
	}
}

// NewChainer creates a Chainer that registers values into store.
func NewChainer(doc *openapi.Document, store *memory.Store, opts ...ChainerOption) *Chainer {
	c := &Chainer{
		doc:    doc,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture extracts resource values from a raw JSON response of operation
// and registers them. It returns the captured values.
func (c *Chainer) Capture(operation string, body []byte) (map[string]any, error) {
	values, err := ExtractFromJSON(body, c.doc)
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", operation, err)
	}
	c.register(operation, values)
	return values, nil
}

// CaptureDecoded is Capture for an already decoded response body.
func (c *Chainer) CaptureDecoded(operation string, body any) map[string]any {
	values := ExtractResourceValues(body, c.doc)
	c.register(operation, values)
	return values
}

func (c *Chainer) register(operation string, values map[string]any) {
	n := c.store.Register(values, operation)

	c.logger.Debug("captured resource values",
		zap.String("operation", operation),
		zap.Int("captured", n),
		zap.Int("memory_entries", c.store.Len()),
	)

	if c.observer != nil {
		c.observer.ObserveCapture(n)
		c.observer.ObserveMemorySize(c.store.Len())
	}
}

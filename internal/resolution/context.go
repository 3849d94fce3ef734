package resolution

import (
	"strings"

	"github.com/example/erp/tools/testgen/internal/datagen"
	"github.com/example/erp/tools/testgen/internal/openapi"
)

// DependencySource tells where a field's value comes from.
type DependencySource string

const (
	SourceExecutionMemory DependencySource = "execution_memory"
	SourceGenerate        DependencySource = "generate"
)

// Dependency is the Dependency Resolver's decision for one name.
type Dependency struct {
	Source DependencySource
	Value  any
}

// Context is the working state of one resolution call. The engine creates
// a fresh Context per call, threads it through every stage, and discards it
// after building the ResolvedRequest.
type Context struct {
	Endpoint string
	Method   string
	Document *openapi.Document
	Intent   map[string]any
	Role     RoleContext
	Memory   Memory
	Seed     *int64

	// Filled by SchemaAnalyzer.
	Operation      *openapi.Operation
	RequestSchema  *openapi.Schema
	RequiredFields []string
	PathParams     map[string]openapi.Parameter
	QueryParams    map[string]openapi.Parameter
	ContentType    string
	Gaps           []openapi.Gap

	// Filled by DependencyResolver and StrategySelector.
	Dependencies map[string]Dependency
	Strategies   map[string]Strategy

	// SeedKey is derived from Seed; Source is bound by SeedBinder.
	SeedKey string
	Source  *datagen.Source

	// Outputs.
	Body                map[string]any
	Headers             map[string]string
	ResolvedPathParams  map[string]any
	ResolvedQueryParams map[string]any

	timestamp func(seedKey, field string) string
}

func newContext(req *Request) *Context {
	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	}
	return &Context{
		Endpoint:            req.Endpoint,
		Method:              strings.ToUpper(req.Method),
		Document:            req.Document,
		Intent:              req.Intent,
		Role:                req.Role,
		Memory:              req.Memory,
		Seed:                req.Seed,
		RequestSchema:       &openapi.Schema{},
		PathParams:          make(map[string]openapi.Parameter),
		QueryParams:         make(map[string]openapi.Parameter),
		Dependencies:        make(map[string]Dependency),
		Strategies:          make(map[string]Strategy),
		SeedKey:             datagen.SeedKey(seed),
		Body:                make(map[string]any),
		Headers:             make(map[string]string),
		ResolvedPathParams:  make(map[string]any),
		ResolvedQueryParams: make(map[string]any),
		timestamp:           datagen.Timestamp,
	}
}

func (c *Context) lookup(key string) (any, bool) {
	if c.Memory == nil {
		return nil, false
	}
	return c.Memory.Lookup(key)
}

// fieldSchema returns the request schema of a top-level body field.
func (c *Context) fieldSchema(field string) *openapi.Schema {
	if s := c.RequestSchema.Property(field); s != nil {
		return s
	}
	return &openapi.Schema{}
}

// request builds the immutable output of the call.
func (c *Context) request() *ResolvedRequest {
	return &ResolvedRequest{
		URL:         c.Endpoint,
		Method:      c.Method,
		PathParams:  c.ResolvedPathParams,
		QueryParams: c.ResolvedQueryParams,
		Headers:     c.Headers,
		Body:        c.Body,
		ContentType: c.ContentType,
		Metadata: Metadata{
			Role:       c.Role.Role,
			Intent:     c.Intent,
			Strategies: c.Strategies,
			SeedKey:    c.SeedKey,
			Gaps:       c.Gaps,
		},
	}
}

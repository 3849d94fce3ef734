package resolution

import (
	"fmt"
	"sort"

	"github.com/example/erp/tools/testgen/internal/datagen"
	"github.com/example/erp/tools/testgen/internal/openapi"
)

// Stage is one step of the resolution pipeline.
type Stage interface {
	Name() string
	Apply(c *Context) error
}

// SchemaAnalyzer loads the operation model: the de-referenced request body
// schema, its required fields, and path and query parameters.
type SchemaAnalyzer struct{}

func (SchemaAnalyzer) Name() string { return "schema" }

func (SchemaAnalyzer) Apply(c *Context) error {
	if c.Document == nil {
		return ErrNoDocument
	}

	op, err := c.Document.Operation(c.Endpoint, c.Method)
	if err != nil {
		return err
	}

	c.Operation = op
	c.RequestSchema = op.RequestBody.FirstConcrete()
	if c.RequestSchema == nil {
		c.RequestSchema = &openapi.Schema{}
	}
	c.RequiredFields = c.RequestSchema.Required
	c.ContentType = op.ContentType
	c.Gaps = op.Gaps

	for _, p := range op.Parameters {
		switch p.Location {
		case openapi.LocationPath:
			c.PathParams[p.Name] = p
		case openapi.LocationQuery:
			c.QueryParams[p.Name] = p
		}
	}
	return nil
}

// DependencyResolver decides, per name, whether a value comes from execution
// memory or must be generated. Lookup is by exact key.
type DependencyResolver struct{}

func (DependencyResolver) Name() string { return "dependency" }

func (DependencyResolver) Apply(c *Context) error {
	for _, name := range sortedParamNames(c.PathParams) {
		c.Dependencies[name] = c.dependency(name)
	}

	// A memory hit for a body field always wins; a miss never downgrades an
	// earlier entry.
	for _, name := range c.RequestSchema.PropertyNames() {
		if dep := c.dependency(name); dep.Source == SourceExecutionMemory {
			c.Dependencies[name] = dep
		} else if _, exists := c.Dependencies[name]; !exists {
			c.Dependencies[name] = dep
		}
	}

	for _, name := range sortedParamNames(c.QueryParams) {
		if _, exists := c.Dependencies[name]; !exists {
			c.Dependencies[name] = c.dependency(name)
		}
	}
	return nil
}

func (c *Context) dependency(name string) Dependency {
	if v, ok := c.lookup(name); ok {
		return Dependency{Source: SourceExecutionMemory, Value: v}
	}
	return Dependency{Source: SourceGenerate}
}

// SeedBinder binds the caller seed to a randomness source before any
// generation. It is a no-op without a seed.
type SeedBinder struct{}

func (SeedBinder) Name() string { return "seed" }

func (SeedBinder) Apply(c *Context) error {
	if c.Seed != nil {
		c.Source = datagen.NewSource(*c.Seed)
	}
	return nil
}

// RBACInjector attaches the role's bearer token and strips restricted fields
// from the resolved body.
type RBACInjector struct{}

func (RBACInjector) Name() string { return "rbac" }

func (RBACInjector) Apply(c *Context) error {
	if c.Role.Token != "" {
		c.Headers["Authorization"] = fmt.Sprintf("Bearer %s", c.Role.Token)
	}
	for _, field := range c.Role.RestrictedFields {
		delete(c.Body, field)
	}
	return nil
}

func sortedParamNames(params map[string]openapi.Parameter) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

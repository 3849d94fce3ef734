package resolution

import (
	"github.com/example/erp/tools/testgen/internal/datagen"
	"github.com/example/erp/tools/testgen/internal/openapi"
)

// FieldResolver materializes the body, path parameters and query parameters
// according to the selected strategies.
type FieldResolver struct{}

func (FieldResolver) Name() string { return "field" }

func (FieldResolver) Apply(c *Context) error {
	for _, field := range c.RequestSchema.PropertyNames() {
		schema := c.fieldSchema(field)

		switch c.Strategies[field] {
		case StrategyIntentOverride:
			c.Body[field] = c.Intent[field]
		case StrategyReuse:
			c.Body[field] = c.Dependencies[field].Value
		case StrategyEnumPick:
			c.Body[field] = firstEnum(schema.FirstConcrete())
		default:
			c.Body[field] = c.generate(schema, field)
		}
	}

	for name, p := range c.PathParams {
		if dep := c.Dependencies[name]; dep.Source == SourceExecutionMemory {
			c.ResolvedPathParams[name] = dep.Value
			continue
		}
		c.ResolvedPathParams[name] = datagen.Value(c.SeedKey, name, p.Schema.TypeName())
	}

	for name, p := range c.QueryParams {
		if dep := c.Dependencies[name]; dep.Source == SourceExecutionMemory {
			c.ResolvedQueryParams[name] = dep.Value
			continue
		}
		if s := p.Schema.FirstConcrete(); s.HasEnum() && len(s.Enum) > 0 {
			c.ResolvedQueryParams[name] = s.Enum[0]
			continue
		}
		if p.Required {
			c.ResolvedQueryParams[name] = c.generate(p.Schema, name)
		}
	}
	return nil
}

// generate recursively synthesizes a value for schema. Object members use
// their own names as the seed discriminator; array items reuse the field name.
// Enum-constrained nodes at any depth yield their first member.
//
// With a bound Source, formatted strings (email, uri, ipv4, ...) come from the
// seeded faker instead of the "{field}_{n}" value mapping. They remain
// reproducible for a given seed.
func (c *Context) generate(schema *openapi.Schema, field string) any {
	schema = schema.FirstConcrete()
	if schema == nil {
		schema = &openapi.Schema{}
	}
	if schema.HasEnum() {
		return firstEnum(schema)
	}

	switch schema.Format {
	case datagen.FormatUUID:
		return datagen.UUID(c.SeedKey, field)
	case datagen.FormatDateTime:
		return c.timestamp(c.SeedKey, field)
	}

	typeName := schema.TypeName()
	switch typeName {
	case datagen.TypeObject:
		out := make(map[string]any, len(schema.Properties))
		for name, prop := range schema.Properties {
			out[name] = c.generate(prop, name)
		}
		return out
	case datagen.TypeArray:
		return []any{c.generate(schema.Items, field)}
	case datagen.TypeString:
		if c.Source != nil && schema.Format != "" {
			if v, ok := c.Source.Format(c.SeedKey, field, schema.Format); ok {
				return v
			}
		}
	}
	return datagen.Value(c.SeedKey, field, typeName)
}

// firstEnum returns the first enum member, or nil for an empty enum.
func firstEnum(schema *openapi.Schema) any {
	if len(schema.Enum) == 0 {
		return nil
	}
	return schema.Enum[0]
}

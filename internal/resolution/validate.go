package resolution

import (
	"fmt"
	"reflect"

	"github.com/example/erp/tools/testgen/internal/openapi"
)

// Validator rejects a body that lacks a required field or holds a value
// outside a declared enum. Required fields are checked first. Enums are
// checked at every depth: through anyOf branches, object members and array
// items. Nested fields are reported as "owner.kind" or "tags[0]".
type Validator struct{}

func (Validator) Name() string { return "validate" }

func (Validator) Apply(c *Context) error {
	for _, field := range c.RequiredFields {
		if _, ok := c.Body[field]; !ok {
			return &ValidationError{Kind: KindMissingRequiredField, Field: field}
		}
	}

	for _, field := range c.RequestSchema.PropertyNames() {
		if err := checkEnums(field, c.fieldSchema(field), c.Body[field]); err != nil {
			return err
		}
	}
	return nil
}

// checkEnums walks value alongside schema and returns the first enum
// violation. A nil value is accepted where the schema admits null.
func checkEnums(path string, schema *openapi.Schema, value any) error {
	if value == nil && allowsNull(schema) {
		return nil
	}
	schema = schema.FirstConcrete()
	if schema == nil {
		return nil
	}
	if schema.HasEnum() {
		if !enumContains(schema.Enum, value) {
			return &ValidationError{Kind: KindInvalidEnumValue, Field: path, Value: value}
		}
		return nil
	}

	switch v := value.(type) {
	case map[string]any:
		for _, name := range schema.PropertyNames() {
			member, ok := v[name]
			if !ok {
				continue
			}
			if err := checkEnums(path+"."+name, schema.Properties[name], member); err != nil {
				return err
			}
		}
	case []any:
		if schema.Items == nil {
			return nil
		}
		for i, item := range v {
			if err := checkEnums(fmt.Sprintf("%s[%d]", path, i), schema.Items, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func allowsNull(schema *openapi.Schema) bool {
	if schema == nil {
		return true
	}
	if schema.Nullable || schema.Type == "null" {
		return true
	}
	for _, branch := range schema.AnyOf {
		if branch != nil && (branch.Type == "null" || branch.Nullable) {
			return true
		}
	}
	return false
}

// enumContains reports whether value is a member of enum. Numbers compare by
// value regardless of their Go type, since documents decode as int or float64
// depending on the source format.
func enumContains(enum []any, value any) bool {
	for _, member := range enum {
		if reflect.DeepEqual(member, value) {
			return true
		}
		if a, ok := toFloat(member); ok {
			if b, ok := toFloat(value); ok && a == b {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Package lifecycle threads values produced by one API call into later calls.
// After a response is received, its top-level scalar fields are matched
// structurally (by runtime type and format, never by name) against the
// path-parameter schemas declared in the document, and matching fields are
// registered into execution memory under their response field names.
package lifecycle

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/example/erp/tools/testgen/internal/openapi"
)

// ErrInvalidJSON is returned when a raw response body is not valid JSON.
var ErrInvalidJSON = errors.New("lifecycle: response body is not valid JSON")

var uuidShape = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

// Matches reports whether value structurally fits a parameter schema:
//
//	string + uuid -> a 36 character string of hex digits and hyphens
//	string        -> any string
//	integer       -> any integer
//
// Every other schema matches nothing.
func Matches(value any, schema *openapi.Schema) bool {
	if schema == nil {
		return false
	}
	schema = schema.FirstConcrete()

	switch schema.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return false
		}
		if schema.Format == "uuid" {
			return uuidShape.MatchString(s)
		}
		return true
	case "integer":
		_, ok := asInteger(value)
		return ok
	default:
		return false
	}
}

// ExtractResourceValues scans the top-level fields of a decoded JSON object
// and returns every string or integer field that matches at least one path
// parameter declared in doc. The result is keyed by response field name.
// Anything other than an object yields an empty map.
func ExtractResourceValues(body any, doc *openapi.Document) map[string]any {
	resources := make(map[string]any)

	obj, ok := body.(map[string]any)
	if !ok || doc == nil {
		return resources
	}

	schemas := pathSchemas(doc)
	for key, raw := range obj {
		value, ok := scalar(raw)
		if !ok {
			continue
		}
		if matchesAny(value, schemas) {
			resources[key] = value
		}
	}
	return resources
}

// ExtractFromJSON is ExtractResourceValues over raw response bytes. Numbers
// written without a fraction or exponent are treated as integers; integers
// outside the int64 range are skipped.
func ExtractFromJSON(data []byte, doc *openapi.Document) (map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}

	resources := make(map[string]any)
	result := gjson.ParseBytes(data)
	if !result.IsObject() || doc == nil {
		return resources, nil
	}

	schemas := pathSchemas(doc)
	result.ForEach(func(key, value gjson.Result) bool {
		var v any
		switch value.Type {
		case gjson.String:
			v = value.String()
		case gjson.Number:
			if strings.ContainsAny(value.Raw, ".eE") {
				return true
			}
			n, err := strconv.ParseInt(value.Raw, 10, 64)
			if err != nil {
				// Outside int64: gjson would clamp it to a different identifier.
				return true
			}
			v = n
		default:
			return true
		}
		if matchesAny(v, schemas) {
			resources[key.String()] = v
		}
		return true
	})
	return resources, nil
}

func pathSchemas(doc *openapi.Document) []*openapi.Schema {
	params := doc.PathParameters()
	schemas := make([]*openapi.Schema, 0, len(params))
	for _, p := range params {
		schemas = append(schemas, p.Schema)
	}
	return schemas
}

func matchesAny(value any, schemas []*openapi.Schema) bool {
	for _, s := range schemas {
		if Matches(value, s) {
			return true
		}
	}
	return false
}

// scalar normalizes a decoded value to string or int64. Booleans, floats with
// a fractional part, and composite values are rejected.
func scalar(v any) (any, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if n, ok := asInteger(v); ok {
		return n, true
	}
	return nil, false
}

func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		// encoding/json decodes every number as float64.
		if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Package openapi loads OpenAPI 3.x and Swagger 2.0 documents and exposes fully
// de-referenced operation models (request body schema, parameters, security)
// for the test data resolution engine.
package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Errors returned by the openapi package.
var (
	// ErrInvalidDocument is returned when the document cannot be decoded.
	ErrInvalidDocument = errors.New("openapi: invalid document")
	// ErrDocumentNotFound is returned when the document file does not exist.
	ErrDocumentNotFound = errors.New("openapi: document file not found")
	// ErrUnsupportedVersion is returned for documents that are neither Swagger 2 nor OpenAPI 3.
	ErrUnsupportedVersion = errors.New("openapi: unsupported version")
	// ErrOperationNotFound is returned when a (path, method) pair is not declared.
	ErrOperationNotFound = errors.New("openapi: operation not found")
)

// DefaultMaxRefDepth bounds $ref resolution so that pathological documents
// terminate instead of recursing without end.
const DefaultMaxRefDepth = 20

// httpMethods lists the path item keys that hold operations, in output order.
var httpMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Document is a decoded OpenAPI document. It keeps the raw tree so that
// references can be resolved lazily against the component tables.
//
// A Document is read-only after construction and safe for concurrent use.
type Document struct {
	// Version is the value of the "openapi" or "swagger" field.
	Version string

	// Title is info.title.
	Title string

	// Servers lists server URLs (OpenAPI 3) or host+basePath (Swagger 2).
	Servers []string

	raw         map[string]any
	maxRefDepth int
}

// LoadFile reads and decodes a document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return Load(data)
}

// Load decodes a YAML or JSON document.
func Load(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		if jsonErr := json.Unmarshal(data, &raw); jsonErr != nil {
			return nil, fmt.Errorf("%w: failed to parse as YAML or JSON", ErrInvalidDocument)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	return FromMap(raw)
}

// FromMap builds a Document from an already decoded tree, such as the output
// of json.Unmarshal into map[string]any.
func FromMap(raw map[string]any) (*Document, error) {
	normalized, _ := normalize(raw).(map[string]any)

	doc := &Document{
		raw:         normalized,
		maxRefDepth: DefaultMaxRefDepth,
	}

	switch {
	case getString(normalized, "openapi") != "":
		doc.Version = getString(normalized, "openapi")
		if !strings.HasPrefix(doc.Version, "3") {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, doc.Version)
		}
		for _, s := range getMapSlice(normalized, "servers") {
			if url := getString(s, "url"); url != "" {
				doc.Servers = append(doc.Servers, url)
			}
		}
	case getString(normalized, "swagger") != "":
		doc.Version = getString(normalized, "swagger")
		if !strings.HasPrefix(doc.Version, "2") {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, doc.Version)
		}
		if host := getString(normalized, "host"); host != "" {
			doc.Servers = append(doc.Servers, host+getString(normalized, "basePath"))
		}
	default:
		return nil, fmt.Errorf("%w: cannot determine document version", ErrInvalidDocument)
	}

	if info, ok := normalized["info"].(map[string]any); ok {
		doc.Title = getString(info, "title")
	}

	return doc, nil
}

// IsSwagger2 reports whether the document uses the Swagger 2.0 layout.
func (d *Document) IsSwagger2() bool {
	return strings.HasPrefix(d.Version, "2")
}

// Raw returns the normalized decoded tree. Callers must not modify it.
func (d *Document) Raw() map[string]any {
	return d.raw
}

// Operations returns every declared operation sorted by path, then by method.
func (d *Document) Operations() []*Operation {
	paths, _ := d.raw["paths"].(map[string]any)

	var ops []*Operation
	for _, path := range sortedKeys(paths) {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		for _, method := range httpMethods {
			if op, ok := item[method].(map[string]any); ok {
				ops = append(ops, d.parseOperation(path, method, item, op))
			}
		}
	}

	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops
}

// Operation returns the de-referenced model for one (path, method) pair.
// The method is matched case-insensitively. Each call builds a fresh model.
func (d *Document) Operation(path, method string) (*Operation, error) {
	paths, _ := d.raw["paths"].(map[string]any)
	item, ok := paths[path].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrOperationNotFound, strings.ToUpper(method), path)
	}
	lower := strings.ToLower(method)
	op, ok := item[lower].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrOperationNotFound, strings.ToUpper(method), path)
	}
	return d.parseOperation(path, lower, item, op), nil
}

// PathParameters returns every path parameter declared anywhere in the
// document, at path level and at operation level, in document order.
func (d *Document) PathParameters() []Parameter {
	paths, _ := d.raw["paths"].(map[string]any)

	var params []Parameter
	for _, path := range sortedKeys(paths) {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		r := d.newResolver()
		for _, p := range r.parameters(item["parameters"]) {
			if p.Location == LocationPath {
				params = append(params, p)
			}
		}
		for _, method := range httpMethods {
			op, ok := item[method].(map[string]any)
			if !ok {
				continue
			}
			for _, p := range r.parameters(op["parameters"]) {
				if p.Location == LocationPath {
					params = append(params, p)
				}
			}
		}
	}
	return params
}

func (d *Document) newResolver() *resolver {
	return newResolver(d.raw, d.maxRefDepth)
}

// normalize converts YAML's map[any]any nodes into map[string]any so the tree
// can be walked uniformly and re-encoded as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// Helper functions

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func getStringSlice(m map[string]any, key string) []string {
	v, ok := m[key].([]any)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func getMapSlice(m map[string]any, key string) []map[string]any {
	v, ok := m[key].([]any)
	if !ok {
		return nil
	}
	result := make([]map[string]any, 0, len(v))
	for _, item := range v {
		if mm, ok := item.(map[string]any); ok {
			result = append(result, mm)
		}
	}
	return result
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

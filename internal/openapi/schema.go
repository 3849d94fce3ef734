package openapi

import (
	"sort"
	"strings"
)

// Schema is a de-referenced JSON schema node. A Schema produced by this
// package never contains reference nodes: every $ref has been replaced by its
// target, or by an empty Schema when the target could not be found.
type Schema struct {
	// Type is the JSON schema type ("object", "array", "string", ...).
	// Empty means unconstrained.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Format is the format hint (e.g. "uuid", "date-time", "email").
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Properties holds object members.
	Properties map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Items is the array element schema.
	Items *Schema `json:"items,omitempty" yaml:"items,omitempty"`

	// Enum lists allowed values. A non-nil empty slice means an enum was
	// declared with no members.
	Enum []any `json:"enum,omitempty" yaml:"enum,omitempty"`

	// AnyOf holds alternative branches (oneOf branches are folded in here).
	AnyOf []*Schema `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`

	// Required lists required property names for objects.
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`

	// Nullable is set by "nullable: true" or a "null" member in a type list.
	Nullable bool `json:"nullable,omitempty" yaml:"nullable,omitempty"`

	// Default is the declared default value.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// Description is the schema description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsEmpty reports whether the schema carries no constraint at all.
func (s *Schema) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.Type == "" && s.Format == "" && len(s.Properties) == 0 && s.Items == nil &&
		s.Enum == nil && len(s.AnyOf) == 0 && len(s.Required) == 0 && s.Default == nil
}

// TypeName returns the declared type, or "string" when the schema is
// unconstrained.
func (s *Schema) TypeName() string {
	if s == nil || s.Type == "" {
		return "string"
	}
	return s.Type
}

// HasEnum reports whether an enum was declared, even an empty one.
func (s *Schema) HasEnum() bool {
	return s != nil && s.Enum != nil
}

// Property returns the named member schema, or nil.
func (s *Schema) Property(name string) *Schema {
	if s == nil || s.Properties == nil {
		return nil
	}
	return s.Properties[name]
}

// PropertyNames returns the object member names in sorted order.
func (s *Schema) PropertyNames() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.Properties)
}

// IsRequired reports whether name is listed in Required.
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// FirstConcrete returns the first AnyOf branch whose type is not "null".
// Schemas without AnyOf are returned unchanged.
func (s *Schema) FirstConcrete() *Schema {
	if s == nil || len(s.AnyOf) == 0 {
		return s
	}
	for _, branch := range s.AnyOf {
		if branch != nil && branch.Type != "null" {
			return branch
		}
	}
	return s
}

// Gap records a $ref that could not be found in the document. Gaps are not
// errors: the reference degrades to an empty schema.
type Gap struct {
	Ref string `json:"ref" yaml:"ref"`
}

// resolver walks raw schema nodes and produces de-referenced Schema trees.
//
// Thread Safety: resolver is NOT safe for concurrent use; the Document
// creates one per operation.
type resolver struct {
	raw      map[string]any
	maxDepth int

	// active holds references on the current resolution path, for cycle detection.
	active map[string]bool

	gaps []Gap
}

func newResolver(raw map[string]any, maxDepth int) *resolver {
	return &resolver{
		raw:      raw,
		maxDepth: maxDepth,
		active:   make(map[string]bool),
	}
}

// schema resolves a raw schema node. A nil node yields an empty schema.
func (r *resolver) schema(node map[string]any, depth int) *Schema {
	if node == nil || depth > r.maxDepth {
		return &Schema{}
	}

	if ref, ok := node["$ref"].(string); ok {
		if r.active[ref] {
			return &Schema{}
		}
		target, ok := r.lookup(ref)
		if !ok {
			r.gaps = append(r.gaps, Gap{Ref: ref})
			return &Schema{}
		}
		r.active[ref] = true
		defer delete(r.active, ref)
		return r.schema(target, depth+1)
	}

	s := &Schema{
		Format:      getString(node, "format"),
		Default:     node["default"],
		Description: getString(node, "description"),
		Required:    getStringSlice(node, "required"),
		Nullable:    getBool(node, "nullable"),
	}

	switch t := node["type"].(type) {
	case string:
		s.Type = t
	case []any:
		// OpenAPI 3.1 type lists, e.g. ["string", "null"].
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				s.Nullable = true
				continue
			}
			if s.Type == "" {
				s.Type = name
			}
		}
	}

	if enum, ok := node["enum"].([]any); ok {
		s.Enum = enum
	}

	if props, ok := node["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*Schema, len(props))
		for _, name := range sortedKeys(props) {
			propMap, _ := props[name].(map[string]any)
			s.Properties[name] = r.schema(propMap, depth+1)
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		s.Items = r.schema(items, depth+1)
	}

	for _, key := range []string{"anyOf", "oneOf"} {
		for _, branch := range getMapSlice(node, key) {
			s.AnyOf = append(s.AnyOf, r.schema(branch, depth+1))
		}
	}

	if branches := getMapSlice(node, "allOf"); len(branches) > 0 {
		for _, branch := range branches {
			mergeAllOf(s, r.schema(branch, depth+1))
		}
	}

	return s
}

// mergeAllOf folds one allOf branch into dst.
func mergeAllOf(dst, branch *Schema) {
	if dst.Type == "" {
		dst.Type = branch.Type
	}
	if dst.Format == "" {
		dst.Format = branch.Format
	}
	if dst.Description == "" {
		dst.Description = branch.Description
	}
	if dst.Enum == nil {
		dst.Enum = branch.Enum
	}
	if dst.Items == nil {
		dst.Items = branch.Items
	}
	if len(branch.Properties) > 0 {
		if dst.Properties == nil {
			dst.Properties = make(map[string]*Schema, len(branch.Properties))
		}
		for name, prop := range branch.Properties {
			if _, exists := dst.Properties[name]; !exists {
				dst.Properties[name] = prop
			}
		}
		if dst.Type == "" {
			dst.Type = "object"
		}
	}
	for _, req := range branch.Required {
		if !dst.IsRequired(req) {
			dst.Required = append(dst.Required, req)
		}
	}
	sort.Strings(dst.Required)
}

// lookup follows a local JSON pointer such as "#/components/schemas/User".
func (r *resolver) lookup(ref string) (map[string]any, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}

	current := r.raw
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

package openapi

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Location defines where a parameter is carried.
type Location string

const (
	LocationPath     Location = "path"
	LocationQuery    Location = "query"
	LocationHeader   Location = "header"
	LocationCookie   Location = "cookie"
	LocationBody     Location = "body"
	LocationFormData Location = "formData"
)

// Content types in order of preference for request bodies.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeMultipart = "multipart/form-data"
)

var requestContentTypes = []string{ContentTypeJSON, ContentTypeForm, ContentTypeMultipart}

// Parameter is one declared operation parameter.
type Parameter struct {
	// Name is the parameter name.
	Name string `json:"name" yaml:"name"`

	// Location is where the parameter is found.
	Location Location `json:"in" yaml:"in"`

	// Required indicates whether the parameter must be sent.
	Required bool `json:"required" yaml:"required"`

	// Description is the parameter description from the document.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Schema is the de-referenced value schema. Never nil.
	Schema *Schema `json:"schema" yaml:"schema"`
}

// Type returns the declared parameter type, empty when untyped.
func (p Parameter) Type() string {
	if p.Schema == nil {
		return ""
	}
	return p.Schema.Type
}

// Format returns the declared format hint.
func (p Parameter) Format() string {
	if p.Schema == nil {
		return ""
	}
	return p.Schema.Format
}

// Operation is the de-referenced model of one (path, method) pair.
type Operation struct {
	// Path is the path template (e.g. "/projects/{id}").
	Path string `json:"path" yaml:"path"`

	// Method is the upper-case HTTP method.
	Method string `json:"method" yaml:"method"`

	// OperationID is the declared operationId.
	OperationID string `json:"operationId,omitempty" yaml:"operationId,omitempty"`

	// Name is OperationID, or a name generated from method and path.
	Name string `json:"name" yaml:"name"`

	Summary string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Parameters are path-level and operation-level parameters merged;
	// an operation-level parameter replaces a path-level one with the same
	// location and name.
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// RequestBody is the de-referenced body schema. Empty when the
	// operation declares no body.
	RequestBody *Schema `json:"requestBody" yaml:"requestBody"`

	// ContentType is the content type the body schema was taken from.
	ContentType string `json:"contentType,omitempty" yaml:"contentType,omitempty"`

	// RequiresAuth is true when a non-empty security requirement applies.
	RequiresAuth bool `json:"requiresAuth" yaml:"requiresAuth"`

	// SecuritySchemes lists the names of applicable security schemes.
	SecuritySchemes []string `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`

	Deprecated bool `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`

	// Gaps lists references that could not be resolved while building the model.
	Gaps []Gap `json:"gaps,omitempty" yaml:"gaps,omitempty"`
}

// Key returns "METHOD /path".
func (o *Operation) Key() string {
	return o.Method + " " + o.Path
}

// ParametersIn returns the parameters declared at the given location, keyed by name.
func (o *Operation) ParametersIn(loc Location) map[string]Parameter {
	out := make(map[string]Parameter)
	for _, p := range o.Parameters {
		if p.Location == loc {
			out[p.Name] = p
		}
	}
	return out
}

func (d *Document) parseOperation(path, method string, item, op map[string]any) *Operation {
	r := d.newResolver()

	result := &Operation{
		Path:        path,
		Method:      strings.ToUpper(method),
		OperationID: getString(op, "operationId"),
		Summary:     getString(op, "summary"),
		Tags:        getStringSlice(op, "tags"),
		Deprecated:  getBool(op, "deprecated"),
		RequestBody: &Schema{},
	}
	result.Name = result.OperationID
	if result.Name == "" {
		result.Name = generateOperationName(result.Method, path)
	}

	all := mergeParameters(r.parameters(item["parameters"]), r.parameters(op["parameters"]))
	for _, p := range all {
		// Swagger 2.0 carries the body as a parameter.
		if p.Location == LocationBody {
			result.RequestBody = p.Schema
			result.ContentType = d.swagger2ContentType(op)
			continue
		}
		result.Parameters = append(result.Parameters, p)
	}

	if body, ok := op["requestBody"].(map[string]any); ok {
		result.RequestBody, result.ContentType = r.requestBody(body, 0)
	}

	result.RequiresAuth, result.SecuritySchemes = parseSecurity(op, d.raw)
	result.Gaps = r.gaps
	return result
}

// parameters resolves a raw parameter list.
func (r *resolver) parameters(raw any) []Parameter {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	params := make([]Parameter, 0, len(list))
	for _, item := range list {
		paramMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if ref, ok := paramMap["$ref"].(string); ok {
			target, found := r.lookup(ref)
			if !found {
				r.gaps = append(r.gaps, Gap{Ref: ref})
				continue
			}
			paramMap = target
		}

		p := Parameter{
			Name:        getString(paramMap, "name"),
			Location:    Location(getString(paramMap, "in")),
			Required:    getBool(paramMap, "required"),
			Description: getString(paramMap, "description"),
		}

		if schema, ok := paramMap["schema"].(map[string]any); ok {
			p.Schema = r.schema(schema, 0)
		} else {
			// Swagger 2.0 non-body parameters declare type/format inline.
			p.Schema = r.schema(inlineParameterSchema(paramMap), 0)
		}
		params = append(params, p)
	}
	return params
}

// inlineParameterSchema extracts the schema keywords of a Swagger 2.0 parameter.
func inlineParameterSchema(param map[string]any) map[string]any {
	schema := make(map[string]any)
	for _, key := range []string{"type", "format", "enum", "items", "default"} {
		if v, ok := param[key]; ok {
			schema[key] = v
		}
	}
	return schema
}

// requestBody resolves an OpenAPI 3 requestBody, preferring JSON content.
func (r *resolver) requestBody(body map[string]any, depth int) (*Schema, string) {
	if ref, ok := body["$ref"].(string); ok {
		target, found := r.lookup(ref)
		if !found {
			r.gaps = append(r.gaps, Gap{Ref: ref})
			return &Schema{}, ""
		}
		if depth > r.maxDepth {
			return &Schema{}, ""
		}
		return r.requestBody(target, depth+1)
	}

	content, _ := body["content"].(map[string]any)
	mediaType, ok := preferredMediaType(sortedKeys(content))
	if !ok {
		return &Schema{}, ""
	}
	media, _ := content[mediaType].(map[string]any)
	schema, _ := media["schema"].(map[string]any)
	return r.schema(schema, 0), mediaType
}

// preferredMediaType picks the declared media type to take the body from.
// Types match on their essence, so parameters such as charset are ignored,
// and any "+json" structured suffix counts as JSON. The declared key is
// returned unchanged.
func preferredMediaType(declared []string) (string, bool) {
	for _, preferred := range requestContentTypes {
		for _, mediaType := range declared {
			if mediaEssence(mediaType) == preferred {
				return mediaType, true
			}
		}
		if preferred != ContentTypeJSON {
			continue
		}
		for _, mediaType := range declared {
			if strings.HasSuffix(mediaEssence(mediaType), "+json") {
				return mediaType, true
			}
		}
	}
	return "", false
}

// mediaEssence returns the lower-case "type/subtype" of a media type.
func mediaEssence(mediaType string) string {
	essence, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(essence))
}

func (d *Document) swagger2ContentType(op map[string]any) string {
	consumes := getStringSlice(op, "consumes")
	if len(consumes) == 0 {
		consumes = getStringSlice(d.raw, "consumes")
	}
	if mediaType, ok := preferredMediaType(consumes); ok {
		return mediaType
	}
	return ContentTypeJSON
}

// parseSecurity applies operation-level security, falling back to the global
// requirement. An explicit empty operation list marks the operation public.
func parseSecurity(op, root map[string]any) (bool, []string) {
	security, ok := op["security"].([]any)
	if !ok {
		security, _ = root["security"].([]any)
	}

	seen := make(map[string]bool)
	var schemes []string
	for _, sec := range security {
		secMap, ok := sec.(map[string]any)
		if !ok {
			continue
		}
		for name := range secMap {
			if !seen[name] {
				seen[name] = true
				schemes = append(schemes, name)
			}
		}
	}
	sort.Strings(schemes)
	return len(schemes) > 0, schemes
}

// mergeParameters merges path-level and operation-level parameters.
// Operation parameters override path parameters with the same name and location.
func mergeParameters(pathParams, opParams []Parameter) []Parameter {
	if len(pathParams) == 0 {
		return opParams
	}

	overridden := make(map[string]bool, len(opParams))
	for _, p := range opParams {
		overridden[fmt.Sprintf("%s:%s", p.Location, p.Name)] = true
	}

	result := make([]Parameter, 0, len(pathParams)+len(opParams))
	for _, p := range pathParams {
		if !overridden[fmt.Sprintf("%s:%s", p.Location, p.Name)] {
			result = append(result, p)
		}
	}
	return append(result, opParams...)
}

var pathParamPattern = regexp.MustCompile(`\{([^}]+)\}`)

// generateOperationName derives a name like "get.projects.members" from method and path.
func generateOperationName(method, path string) string {
	cleaned := pathParamPattern.ReplaceAllString(path, "")
	cleaned = strings.ReplaceAll(cleaned, "//", "/")
	cleaned = strings.Trim(cleaned, "/")
	cleaned = strings.ReplaceAll(cleaned, "/", ".")
	if cleaned == "" {
		cleaned = "root"
	}
	return fmt.Sprintf("%s.%s", strings.ToLower(method), cleaned)
}

// PathParameterNames returns the {placeholders} of a path template in order.
func PathParameterNames(path string) []string {
	matches := pathParamPattern.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

package resolution

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/example/erp/tools/testgen/internal/openapi"
)

// Memory is the read side of execution memory. memory.Store implements it.
type Memory interface {
	Lookup(key string) (any, bool)
}

// RoleContext describes the caller role a request is generated for.
type RoleContext struct {
	// Role is the role name, carried into the request metadata.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`

	// Token is an optional bearer token.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// RestrictedFields are body fields the role may not set.
	RestrictedFields []string `json:"restrictedFields,omitempty" yaml:"restrictedFields,omitempty"`
}

// Request is the input of one resolution call.
type Request struct {
	// Endpoint is the path template, e.g. "/projects/{id}".
	Endpoint string

	// Method is the HTTP method, matched case-insensitively.
	Method string

	// Document is the API document the operation is declared in.
	Document *openapi.Document

	// Intent holds explicit per-field values that override every other strategy.
	Intent map[string]any

	// Role is the active role.
	Role RoleContext

	// Memory is the execution memory of the current run. May be nil.
	Memory Memory

	// Seed selects the test case. Nil means no seed: values are still
	// deterministic (test case 1) but no randomness source is bound.
	Seed *int64
}

// Seed returns a pointer to v, for Request.Seed.
func Seed(v int64) *int64 {
	return &v
}

// Metadata describes how a request was resolved.
type Metadata struct {
	Role   string         `json:"role,omitempty" yaml:"role,omitempty"`
	Intent map[string]any `json:"intent,omitempty" yaml:"intent,omitempty"`

	// Strategies is the strategy chosen per body field.
	Strategies map[string]Strategy `json:"strategies,omitempty" yaml:"strategies,omitempty"`

	// SeedKey is the test case identifier values were derived from.
	SeedKey string `json:"seedKey" yaml:"seedKey"`

	// Gaps lists references that could not be resolved.
	Gaps []openapi.Gap `json:"gaps,omitempty" yaml:"gaps,omitempty"`

	// Fallback is true when the pipeline failed and the request was
	// synthesized directly from the schema.
	Fallback       bool   `json:"fallback" yaml:"fallback"`
	FallbackReason string `json:"fallbackReason,omitempty" yaml:"fallbackReason,omitempty"`
}

// ResolvedRequest is a fully formed request handed to an HTTP executor.
// It is not modified after the engine returns it.
type ResolvedRequest struct {
	// URL is the endpoint path template.
	URL         string            `json:"url" yaml:"url"`
	Method      string            `json:"method" yaml:"method"`
	PathParams  map[string]any    `json:"pathParams" yaml:"pathParams"`
	QueryParams map[string]any    `json:"queryParams" yaml:"queryParams"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
	Body        map[string]any    `json:"body" yaml:"body"`
	ContentType string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Metadata    Metadata          `json:"metadata" yaml:"metadata"`
}

// Path returns URL with every {name} placeholder replaced by its escaped
// path parameter value. Placeholders without a value are left in place.
func (r *ResolvedRequest) Path() string {
	path := r.URL
	for name, value := range r.PathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(fmt.Sprint(value)))
	}
	return path
}

package resolution

import (
	"strings"

	"go.uber.org/zap"

	"github.com/example/erp/tools/testgen/internal/datagen"
)

// fallback synthesizes a request directly from the schema with the
// deterministic generator, skipping dependency, strategy and RBAC
// refinement. If even the schema cannot be analyzed, the request carries
// only the endpoint and method.
func (e *Engine) fallback(req *Request, cause error) (resolved *ResolvedRequest) {
	c := e.newContext(req)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fallback generation panicked", zap.Any("panic", r))
			resolved = minimalRequest(req, datagen.SeedKey(0))
		}
		resolved.Metadata.Fallback = true
		resolved.Metadata.FallbackReason = cause.Error()
	}()

	if err := (SchemaAnalyzer{}).Apply(c); err != nil {
		return minimalRequest(req, c.SeedKey)
	}

	for _, field := range c.RequestSchema.PropertyNames() {
		c.Body[field] = c.generate(c.fieldSchema(field), field)
	}
	for name, p := range c.PathParams {
		c.ResolvedPathParams[name] = datagen.Value(c.SeedKey, name, p.Schema.TypeName())
	}
	for name, p := range c.QueryParams {
		c.ResolvedQueryParams[name] = c.generate(p.Schema, name)
	}

	resolved = c.request()
	resolved.Metadata.Strategies = nil
	return resolved
}

func minimalRequest(req *Request, seedKey string) *ResolvedRequest {
	return &ResolvedRequest{
		URL:         req.Endpoint,
		Method:      strings.ToUpper(req.Method),
		PathParams:  map[string]any{},
		QueryParams: map[string]any{},
		Headers:     map[string]string{},
		Body:        map[string]any{},
		Metadata: Metadata{
			Role:    req.Role.Role,
			Intent:  req.Intent,
			SeedKey: seedKey,
		},
	}
}

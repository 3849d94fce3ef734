package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
)

// ErrLintFailed is returned when a document does not pass structural validation.
var ErrLintFailed = errors.New("openapi: document failed validation")

// Lint performs a strict structural validation of the document. Resolution
// itself is lenient (missing references become gaps); Lint is for callers that
// want to know about problems before generating data.
func (d *Document) Lint(ctx context.Context) error {
	data, err := json.Marshal(d.raw)
	if err != nil {
		return fmt.Errorf("%w: encoding document: %v", ErrLintFailed, err)
	}

	loader := openapi3.NewLoader()

	var doc *openapi3.T
	if d.IsSwagger2() {
		var v2 openapi2.T
		if err := json.Unmarshal(data, &v2); err != nil {
			return fmt.Errorf("%w: %v", ErrLintFailed, err)
		}
		doc, err = openapi2conv.ToV3(&v2)
		if err != nil {
			return fmt.Errorf("%w: converting swagger 2.0: %v", ErrLintFailed, err)
		}
		if err := loader.ResolveRefsIn(doc, nil); err != nil {
			return fmt.Errorf("%w: %v", ErrLintFailed, err)
		}
	} else {
		doc, err = loader.LoadFromData(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLintFailed, err)
		}
	}

	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLintFailed, err)
	}
	return nil
}

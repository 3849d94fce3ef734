// Package workflow resolves ordered multi-step request plans against a single
// execution memory. A plan such as create project, fetch it, then delete it
// is resolved step by step: recorded responses of earlier steps are captured
// so later steps reuse the identifiers they returned. No HTTP call is made.
package workflow

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Errors returned by the workflow package.
var (
	// ErrInvalidWorkflow is returned when a workflow definition is invalid.
	ErrInvalidWorkflow = errors.New("workflow: invalid workflow definition")
	// ErrStepFailed is returned when a workflow step cannot be planned.
	ErrStepFailed = errors.New("workflow: step failed")
	// ErrWorkflowAborted is returned when a workflow is aborted due to context cancellation.
	ErrWorkflowAborted = errors.New("workflow: workflow aborted")
	// ErrWorkflowNotFound is returned when a named workflow does not exist.
	ErrWorkflowNotFound = errors.New("workflow: workflow not found")
)

// Definition defines a single workflow.
type Definition struct {
	// Name is the unique identifier for this workflow.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Description provides context about the workflow's purpose.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Steps is the ordered sequence of requests to resolve.
	Steps []Step `yaml:"steps" json:"steps"`

	// Disabled indicates whether this workflow is skipped when all workflows run.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	// Tags are used to categorize workflows.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Step defines a single step in a workflow.
type Step struct {
	// Name identifies the step in plans and logs.
	// Default: step-<index>
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Endpoint is the operation to resolve.
	// Example: "GET /projects/{id}"
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Role selects a configured role. Empty uses the default role.
	Role string `yaml:"role,omitempty" json:"role,omitempty"`

	// Seed selects the test case for this step.
	// Default: the 1-based step index
	Seed int64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Intent holds explicit field values for this step. They are merged over
	// the configured intents of the operation.
	Intent map[string]any `yaml:"intent,omitempty" json:"intent,omitempty"`

	// Response is the path of a recorded JSON response of this step.
	// Relative paths are resolved against the executor's base directory.
	Response string `yaml:"response,omitempty" json:"response,omitempty"`

	// ResponseBody is an inline recorded response, used when Response is empty.
	ResponseBody any `yaml:"responseBody,omitempty" json:"responseBody,omitempty"`
}

// placeholderPattern matches placeholders like {project_id} in endpoints.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true, "HEAD": true, "OPTIONS": true,
}

// Validate validates a workflow definition.
func (d *Definition) Validate(name string) error {
	if name == "" && d.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrInvalidWorkflow)
	}
	if name == "" {
		name = d.Name
	}

	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: workflow %q has no steps", ErrInvalidWorkflow, name)
	}

	names := make(map[string]bool, len(d.Steps))
	for i, step := range d.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("%w: workflow %q step %d: %v", ErrInvalidWorkflow, name, i+1, err)
		}
		if step.Name != "" {
			if names[step.Name] {
				return fmt.Errorf("%w: workflow %q has duplicate step name %q", ErrInvalidWorkflow, name, step.Name)
			}
			names[step.Name] = true
		}
	}

	return nil
}

// Validate validates a step configuration.
func (s *Step) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	if err := ValidateOperationKey(s.Endpoint); err != nil {
		return err
	}

	if s.Seed < 0 {
		return fmt.Errorf("seed must be non-negative, got %d", s.Seed)
	}

	return nil
}

// ValidateOperationKey checks that key has the form "METHOD /path".
func ValidateOperationKey(key string) error {
	parts := strings.SplitN(key, " ", 2)
	if len(parts) != 2 {
		return fmt.Errorf("endpoint must be in format 'METHOD /path', got %q", key)
	}

	method := strings.ToUpper(parts[0])
	if !validMethods[method] {
		return fmt.Errorf("invalid HTTP method: %s", method)
	}
	if !strings.HasPrefix(parts[1], "/") {
		return fmt.Errorf("path must start with '/', got %q", parts[1])
	}
	return nil
}

// ApplyDefaults applies default values to a workflow definition.
func (d *Definition) ApplyDefaults(name string) {
	if d.Name == "" {
		d.Name = name
	}

	for i := range d.Steps {
		d.Steps[i].ApplyDefaults(i)
	}
}

// ApplyDefaults applies default values to the step at index.
func (s *Step) ApplyDefaults(index int) {
	if s.Name == "" {
		s.Name = fmt.Sprintf("step-%d", index+1)
	}
	if s.Seed == 0 {
		s.Seed = int64(index + 1)
	}
}

// GetMethod returns the HTTP method from the endpoint string.
func (s *Step) GetMethod() string {
	parts := strings.SplitN(s.Endpoint, " ", 2)
	if len(parts) >= 1 {
		return strings.ToUpper(parts[0])
	}
	return ""
}

// GetPath returns the path from the endpoint string.
func (s *Step) GetPath() string {
	parts := strings.SplitN(s.Endpoint, " ", 2)
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// OperationKey returns the normalized "METHOD /path" key of the step.
func (s *Step) OperationKey() string {
	return s.GetMethod() + " " + s.GetPath()
}

// GetPlaceholders returns the placeholder names in the endpoint, in order of
// first appearance.
func (s *Step) GetPlaceholders() []string {
	matches := placeholderPattern.FindAllStringSubmatch(s.Endpoint, -1)
	result := make([]string, 0, len(matches))
	seen := make(map[string]bool)

	for _, match := range matches {
		if len(match) >= 2 && !seen[match[1]] {
			result = append(result, match[1])
			seen[match[1]] = true
		}
	}

	return result
}

// EnabledNames returns the names of all non-disabled workflows, sorted.
func EnabledNames(defs map[string]Definition) []string {
	names := make([]string, 0, len(defs))
	for name, def := range defs {
		if !def.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

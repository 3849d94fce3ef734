package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/erp/tools/testgen/internal/openapi"
	"github.com/example/erp/tools/testgen/internal/resolution"
)

const lifecycleDoc = `
openapi: "3.0.3"
info:
  title: Projects
  version: "1.0"
paths:
  /projects:
    post:
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
                secret: {type: string}
      responses:
        "201": {description: Created}
  /projects/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema: {type: string, format: uuid}
    get:
      responses:
        "200": {description: OK}
    delete:
      responses:
        "204": {description: Deleted}
`

const projectID = "6f1f6f0e-8a2b-4c3d-9e4f-0a1b2c3d4e5f"

func newTestExecutor(t *testing.T, mutate func(*ExecutorConfig)) *Executor {
	t.Helper()
	doc, err := openapi.Load([]byte(lifecycleDoc))
	require.NoError(t, err)

	cfg := ExecutorConfig{
		Document: doc,
		Resolver: resolution.NewEngine(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	exec, err := NewExecutor(cfg)
	require.NoError(t, err)
	return exec
}

func lifecycleWorkflow() Definition {
	return Definition{
		Name: "project-lifecycle",
		Steps: []Step{
			{Name: "create", Endpoint: "POST /projects", ResponseBody: map[string]any{"id": projectID, "name": "Apollo"}},
			{Name: "fetch", Endpoint: "GET /projects/{id}"},
			{Name: "delete", Endpoint: "DELETE /projects/{id}"},
		},
	}
}

func TestStep_Validate(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{"valid", Step{Endpoint: "GET /projects"}, false},
		{"lowercase method", Step{Endpoint: "post /projects"}, false},
		{"missing endpoint", Step{}, true},
		{"missing path", Step{Endpoint: "GET"}, true},
		{"invalid method", Step{Endpoint: "FETCH /projects"}, true},
		{"relative path", Step{Endpoint: "GET projects"}, true},
		{"negative seed", Step{Endpoint: "GET /projects", Seed: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefinition_Validate(t *testing.T) {
	def := lifecycleWorkflow()
	assert.NoError(t, def.Validate(""))

	empty := Definition{Name: "empty"}
	assert.ErrorIs(t, empty.Validate(""), ErrInvalidWorkflow)

	unnamed := Definition{Steps: []Step{{Endpoint: "GET /projects"}}}
	assert.ErrorIs(t, unnamed.Validate(""), ErrInvalidWorkflow)

	dup := Definition{Name: "dup", Steps: []Step{
		{Name: "a", Endpoint: "GET /projects"},
		{Name: "a", Endpoint: "GET /projects"},
	}}
	err := dup.Validate("")
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, err.Error(), "duplicate step name")
}

func TestDefinition_ApplyDefaults(t *testing.T) {
	def := Definition{Steps: []Step{
		{Endpoint: "GET /projects"},
		{Name: "named", Endpoint: "GET /projects", Seed: 9},
	}}
	def.ApplyDefaults("listing")

	assert.Equal(t, "listing", def.Name)
	assert.Equal(t, "step-1", def.Steps[0].Name)
	assert.Equal(t, int64(1), def.Steps[0].Seed)
	assert.Equal(t, "named", def.Steps[1].Name)
	assert.Equal(t, int64(9), def.Steps[1].Seed)
}

func TestStep_Accessors(t *testing.T) {
	step := Step{Endpoint: "get /projects/{id}/tasks/{task_id}/{id}"}

	assert.Equal(t, "GET", step.GetMethod())
	assert.Equal(t, "/projects/{id}/tasks/{task_id}/{id}", step.GetPath())
	assert.Equal(t, "GET /projects/{id}/tasks/{task_id}/{id}", step.OperationKey())
	assert.Equal(t, []string{"id", "task_id"}, step.GetPlaceholders())
}

func TestEnabledNames(t *testing.T) {
	defs := map[string]Definition{
		"zeta":  {},
		"alpha": {},
		"off":   {Disabled: true},
	}
	assert.Equal(t, []string{"alpha", "zeta"}, EnabledNames(defs))
}

func TestNewExecutor_Errors(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{Resolver: resolution.NewEngine()})
	assert.Error(t, err)

	doc, err := openapi.Load([]byte(lifecycleDoc))
	require.NoError(t, err)
	_, err = NewExecutor(ExecutorConfig{Document: doc})
	assert.Error(t, err)
}

func TestExecutor_Execute_ChainsIdentifiers(t *testing.T) {
	exec := newTestExecutor(t, nil)

	result, err := exec.Execute(context.Background(), lifecycleWorkflow())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Steps, 3)

	create := result.Steps[0]
	assert.Equal(t, map[string]any{"id": projectID}, create.Captured)
	assert.Empty(t, create.ReusedParams)
	assert.Equal(t, "TC_001", create.Request.Metadata.SeedKey)

	fetch := result.Steps[1]
	assert.Equal(t, []string{"id"}, fetch.ReusedParams)
	assert.Equal(t, projectID, fetch.Request.PathParams["id"])
	assert.Equal(t, "/projects/"+projectID, fetch.Request.Path())
	assert.Equal(t, "TC_002", fetch.Request.Metadata.SeedKey)

	del := result.Steps[2]
	assert.Equal(t, "DELETE", del.Request.Method)
	assert.Equal(t, projectID, del.Request.PathParams["id"])

	assert.Equal(t, map[string]any{"id": projectID}, result.Memory)
	assert.Equal(t, 1, result.MemoryStats.Entries)

	stats := exec.Stats()
	assert.Equal(t, int64(1), stats.WorkflowsExecuted)
	assert.Equal(t, int64(0), stats.WorkflowsFailed)
	assert.Equal(t, int64(3), stats.StepsExecuted)
	assert.Equal(t, int64(1), stats.ValuesCaptured)
}

func TestExecutor_Execute_FreshMemoryPerRun(t *testing.T) {
	exec := newTestExecutor(t, nil)

	_, err := exec.Execute(context.Background(), lifecycleWorkflow())
	require.NoError(t, err)

	fetchOnly := Definition{Name: "fetch", Steps: []Step{{Endpoint: "GET /projects/{id}"}}}
	result, err := exec.Execute(context.Background(), fetchOnly)
	require.NoError(t, err)

	assert.Empty(t, result.Steps[0].ReusedParams)
	assert.NotEqual(t, projectID, result.Steps[0].Request.PathParams["id"])
}

func TestExecutor_Execute_ResponseFixture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.json"), []byte(`{"id":"`+projectID+`","name":"Apollo","version":3}`), 0o644))

	exec := newTestExecutor(t, func(c *ExecutorConfig) { c.BaseDir = dir })
	def := Definition{Name: "fixture", Steps: []Step{
		{Name: "create", Endpoint: "POST /projects", Response: "project.json"},
		{Name: "fetch", Endpoint: "GET /projects/{id}"},
	}}

	result, err := exec.Execute(context.Background(), def)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, projectID, result.Steps[1].Request.PathParams["id"])
}

func TestExecutor_Execute_MissingFixtureAborts(t *testing.T) {
	exec := newTestExecutor(t, func(c *ExecutorConfig) { c.BaseDir = t.TempDir() })
	def := Definition{Name: "broken", Steps: []Step{
		{Name: "create", Endpoint: "POST /projects", Response: "missing.json"},
		{Name: "fetch", Endpoint: "GET /projects/{id}"},
	}}

	result, err := exec.Execute(context.Background(), def)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, ErrStepFailed)
	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].ErrorMessage, "create")
	assert.Equal(t, int64(1), exec.Stats().WorkflowsFailed)
	assert.Equal(t, int64(1), exec.Stats().StepsFailed)
}

func TestExecutor_Execute_Cancelled(t *testing.T) {
	exec := newTestExecutor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := exec.Execute(ctx, lifecycleWorkflow())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, ErrWorkflowAborted)
	assert.Empty(t, result.Steps)
}

func TestExecutor_Execute_InvalidDefinition(t *testing.T) {
	exec := newTestExecutor(t, nil)
	_, err := exec.Execute(context.Background(), Definition{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
}

func TestExecutor_Execute_RolesAndIntents(t *testing.T) {
	exec := newTestExecutor(t, func(c *ExecutorConfig) {
		c.Roles = map[string]resolution.RoleContext{
			"admin":  {Token: "t-admin"},
			"viewer": {Token: "t-view", RestrictedFields: []string{"secret"}},
		}
		c.DefaultRole = "admin"
		c.Intents = map[string]map[string]any{
			"POST /projects": {"name": "Apollo", "secret": "s3cret"},
		}
	})

	def := Definition{Name: "roles", Steps: []Step{
		{Name: "as-admin", Endpoint: "POST /projects"},
		{Name: "as-viewer", Endpoint: "post /projects", Role: "viewer", Intent: map[string]any{"name": "Gemini"}},
	}}

	var completed []string
	exec.config.OnStepComplete = func(_ string, _ int, step Step, _ StepResult) {
		completed = append(completed, step.Name)
	}

	result, err := exec.Execute(context.Background(), def)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, []string{"as-admin", "as-viewer"}, completed)

	admin := result.Steps[0].Request
	assert.Equal(t, "Bearer t-admin", admin.Headers["Authorization"])
	assert.Equal(t, "admin", admin.Metadata.Role)
	assert.Equal(t, "Apollo", admin.Body["name"])
	assert.Equal(t, "s3cret", admin.Body["secret"])

	viewer := result.Steps[1].Request
	assert.Equal(t, "Bearer t-view", viewer.Headers["Authorization"])
	assert.Equal(t, "viewer", viewer.Metadata.Role)
	assert.Equal(t, "Gemini", viewer.Body["name"])
	assert.NotContains(t, viewer.Body, "secret")
}

func TestExecutor_RoleFor(t *testing.T) {
	exec := newTestExecutor(t, func(c *ExecutorConfig) {
		c.Roles = map[string]resolution.RoleContext{"admin": {Token: "t"}}
	})

	assert.Equal(t, resolution.RoleContext{}, exec.roleFor(Step{}))
	assert.Equal(t, resolution.RoleContext{Role: "admin", Token: "t"}, exec.roleFor(Step{Role: "admin"}))
	assert.Equal(t, resolution.RoleContext{Role: "ghost"}, exec.roleFor(Step{Role: "ghost"}))
}

func TestExecutor_ExecuteAll(t *testing.T) {
	exec := newTestExecutor(t, nil)

	other := Definition{Name: "listing", Steps: []Step{{Endpoint: "GET /projects/{id}"}}}
	defs := []Definition{lifecycleWorkflow(), other, lifecycleWorkflow()}

	results, err := exec.ExecuteAll(context.Background(), defs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "project-lifecycle", results[0].WorkflowName)
	assert.Equal(t, "listing", results[1].WorkflowName)
	assert.Empty(t, results[1].Steps[0].ReusedParams)
	assert.Equal(t, results[0].Memory, results[2].Memory)
	assert.Equal(t, int64(3), exec.Stats().WorkflowsExecuted)
}

func TestExecutor_ExecuteAll_InvalidDefinition(t *testing.T) {
	exec := newTestExecutor(t, nil)

	_, err := exec.ExecuteAll(context.Background(), []Definition{lifecycleWorkflow(), {Name: "empty"}}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, err.Error(), `workflow "empty"`)
}

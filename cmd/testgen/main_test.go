package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const cliDoc = `
openapi: "3.0.3"
info:
  title: Projects
  version: "1.0"
paths:
  /projects:
    get:
      operationId: listProjects
      parameters:
        - {name: page, in: query, schema: {type: integer}}
      responses:
        "200": {description: OK}
    post:
      operationId: createProject
      security:
        - bearerAuth: []
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
                priority: {type: integer}
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
components:
  securitySchemes:
    bearerAuth: {type: http, scheme: bearer}
`

const cliConfig = `
document: openapi.yaml
defaultRole: admin
roles:
  admin: {token: t-admin}
workflows:
  project-lifecycle:
    steps:
      - name: create
        endpoint: POST /projects
        response: project.json
      - name: fetch
        endpoint: GET /projects/{id}
log:
  level: error
metrics:
  output: testgen.prom
`

const cliProjectID = "6f1f6f0e-8a2b-4c3d-9e4f-0a1b2c3d4e5f"

// writeFixtures writes the document, config and response fixture to a temp dir.
func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openapi.yaml"), []byte(cliDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testgen.yaml"), []byte(cliConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.json"), []byte(`{"id":"`+cliProjectID+`"}`), 0o644))
	return dir
}

// runCLI executes the root command in-process with args.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TESTGEN_LOG_LEVEL", "error")

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "testgen version dev")
	assert.Contains(t, out, "Git commit:")
}

func TestCLI_List(t *testing.T) {
	dir := writeFixtures(t)

	out, err := runCLI(t, "list", "--document", filepath.Join(dir, "openapi.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "METHOD")
	assert.Contains(t, out, "createProject")
	assert.Contains(t, out, "listProjects")
	assert.Contains(t, out, "critical")
	assert.Contains(t, strings.ToLower(out), "4 operations")
}

func TestCLI_List_JSON(t *testing.T) {
	dir := writeFixtures(t)

	out, err := runCLI(t, "list", "-d", filepath.Join(dir, "openapi.yaml"), "-o", "json")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 4)
	assert.Equal(t, "/projects", records[0]["endpoint"])
	assert.Equal(t, "GET", records[0]["httpMethod"])
	assert.Equal(t, "create", records[1]["classification"])
}

func TestCLI_Lint(t *testing.T) {
	dir := writeFixtures(t)

	out, err := runCLI(t, "lint", "-d", filepath.Join(dir, "openapi.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "OK (4 operations)")
}

func TestCLI_Lint_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openapi: \"3.0.3\"\npaths: {}\n"), 0o644))

	_, err := runCLI(t, "lint", "-d", path)
	assert.Error(t, err)
}

func TestCLI_Resolve(t *testing.T) {
	dir := writeFixtures(t)

	out, err := runCLI(t, "resolve", "-d", filepath.Join(dir, "openapi.yaml"), "--operation", "POST /projects", "--seed", "1")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "POST", got["method"])
	assert.Equal(t, "/projects", got["url"])

	body := got["body"].(map[string]any)
	assert.Equal(t, "name_85", body["name"])
	assert.Equal(t, float64(69), body["priority"])

	metadata := got["metadata"].(map[string]any)
	assert.Equal(t, "TC_001", metadata["seedKey"])
	assert.Equal(t, false, metadata["fallback"])
}

func TestCLI_Resolve_WithConfigAndMemory(t *testing.T) {
	dir := writeFixtures(t)

	out, err := runCLI(t, "resolve", "-c", filepath.Join(dir, "testgen.yaml"),
		"--operation", "GET /projects/{id}", "--memory", "id="+cliProjectID, "-o", "yaml")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{"id": cliProjectID}, got["pathParams"])
	assert.Equal(t, map[string]any{"Authorization": "Bearer t-admin"}, got["headers"])
	assert.Equal(t, "admin", got["metadata"].(map[string]any)["role"])
}

func TestCLI_Resolve_Errors(t *testing.T) {
	dir := writeFixtures(t)
	doc := filepath.Join(dir, "openapi.yaml")

	_, err := runCLI(t, "resolve", "-d", doc)
	assert.Error(t, err, "missing --operation")

	_, err = runCLI(t, "resolve", "-d", doc, "--operation", "projects")
	assert.Error(t, err)

	_, err = runCLI(t, "resolve", "--operation", "GET /projects")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no document")

	_, err = runCLI(t, "resolve", "-d", doc, "--operation", "GET /projects", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")

	_, err = runCLI(t, "resolve", "-d", doc, "--operation", "GET /missing", "--strict")
	assert.Error(t, err)

	_, err = runCLI(t, "resolve", "-d", doc, "--operation", "GET /projects", "--seed", "-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--seed must be non-negative")
}

func TestCLI_Plan(t *testing.T) {
	dir := writeFixtures(t)

	out, err := runCLI(t, "plan", "-c", filepath.Join(dir, "testgen.yaml"))
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "project-lifecycle", results[0]["workflow"])
	assert.Equal(t, true, results[0]["success"])

	steps := results[0]["steps"].([]any)
	require.Len(t, steps, 2)
	fetch := steps[1].(map[string]any)
	assert.Equal(t, []any{"id"}, fetch["reusedParams"])
	request := fetch["request"].(map[string]any)
	assert.Equal(t, "/projects/{id}", request["url"])
	assert.Equal(t, cliProjectID, request["pathParams"].(map[string]any)["id"])

	metricsData, err := os.ReadFile(filepath.Join(dir, "testgen.prom"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(metricsData), "testgen_captured_values_total 1"))
}

func TestCLI_Plan_UnknownWorkflow(t *testing.T) {
	dir := writeFixtures(t)

	_, err := runCLI(t, "plan", "-c", filepath.Join(dir, "testgen.yaml"), "--workflow", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow not found")
}

func TestCLI_MissingConfig(t *testing.T) {
	_, err := runCLI(t, "plan", "-c", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

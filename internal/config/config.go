// Package config provides the configuration of the testgen CLI: the API
// document, roles, intent overrides, workflows, logging and metrics output.
// Files are YAML; a few keys can be overridden from TESTGEN_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/example/erp/tools/testgen/internal/logger"
	"github.com/example/erp/tools/testgen/internal/resolution"
	"github.com/example/erp/tools/testgen/internal/workflow"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// EnvPrefix is the prefix of environment overrides, e.g. TESTGEN_LOG_LEVEL.
const EnvPrefix = "TESTGEN"

// Config is the root configuration structure.
type Config struct {
	// Document is the path of the OpenAPI or Swagger document.
	Document string `yaml:"document" json:"document" validate:"required"`

	// Seed is the default test case seed. Zero means no seed.
	Seed int64 `yaml:"seed,omitempty" json:"seed,omitempty" validate:"gte=0"`

	// DeterministicTimestamps derives date-time values from the seed key
	// instead of the wall clock.
	// Default: true
	DeterministicTimestamps *bool `yaml:"deterministicTimestamps,omitempty" json:"deterministicTimestamps,omitempty"`

	// DefaultRole is used when no role is requested.
	DefaultRole string `yaml:"defaultRole,omitempty" json:"defaultRole,omitempty"`

	// Roles maps role names to their token and restricted fields.
	Roles map[string]resolution.RoleContext `yaml:"roles,omitempty" json:"roles,omitempty"`

	// Intents holds per-operation intent metadata keyed by "METHOD /path".
	Intents map[string]map[string]any `yaml:"intents,omitempty" json:"intents,omitempty"`

	// Workflows maps workflow names to their definitions.
	Workflows map[string]workflow.Definition `yaml:"workflows,omitempty" json:"workflows,omitempty"`

	// Log configures logging.
	Log logger.Config `yaml:"log,omitempty" json:"log,omitempty"`

	// Metrics configures metrics output.
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// baseDir is the directory of the loaded file; relative paths resolve against it.
	baseDir string
}

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	// Output is a Prometheus textfile path. Empty disables the export.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// New returns a configuration with defaults and environment overrides
// applied, for runs without a config file. It is not validated.
func New() *Config {
	cfg := &Config{}
	applyEnv(cfg)
	cfg.ApplyDefaults()
	return cfg
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(path)
	return cfg, nil
}

// LoadFromBytes parses configuration from YAML bytes, applies environment
// overrides and defaults, then validates it.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with TESTGEN_* environment variables.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("document"); s != "" {
		cfg.Document = s
	}
	if s := v.GetString("seed"); s != "" {
		cfg.Seed = v.GetInt64("seed")
	}
	if s := v.GetString("log.level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("log.format"); s != "" {
		cfg.Log.Format = s
	}
	if s := v.GetString("log.output"); s != "" {
		cfg.Log.Output = s
	}
	if s := v.GetString("metrics.output"); s != "" {
		cfg.Metrics.Output = s
	}
}

// ApplyDefaults applies default values to the configuration.
func (c *Config) ApplyDefaults() {
	def := logger.DefaultConfig()
	if c.Log.Level == "" {
		c.Log.Level = def.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Format
	}
	if c.Log.Output == "" {
		c.Log.Output = def.Output
	}
	if c.Log.TimeFormat == "" {
		c.Log.TimeFormat = def.TimeFormat
	}

	if c.DeterministicTimestamps == nil {
		deterministic := true
		c.DeterministicTimestamps = &deterministic
	}

	for name, wf := range c.Workflows {
		wf.ApplyDefaults(name)
		c.Workflows[name] = wf
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, formatValidationErrors(err))
	}

	if err := c.validateLog(); err != nil {
		return err
	}

	if c.DefaultRole != "" {
		if _, ok := c.Roles[c.DefaultRole]; !ok {
			return fmt.Errorf("%w: defaultRole %q is not a configured role", ErrInvalidConfig, c.DefaultRole)
		}
	}

	for _, key := range sortedKeys(c.Intents) {
		if err := workflow.ValidateOperationKey(key); err != nil {
			return fmt.Errorf("%w: intents: %v", ErrInvalidConfig, err)
		}
	}

	for _, name := range sortedKeys(c.Workflows) {
		def := c.Workflows[name]
		if err := def.Validate(name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for i, step := range def.Steps {
			if step.Role == "" {
				continue
			}
			if _, ok := c.Roles[step.Role]; !ok {
				return fmt.Errorf("%w: workflow %q step %d: role %q is not configured", ErrInvalidConfig, name, i+1, step.Role)
			}
		}
	}

	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("%w: log.level must be one of debug, info, warn, error, fatal; got %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: log.format must be json or console; got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// formatValidationErrors renders validator errors as "field: rule" pairs.
func formatValidationErrors(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Field()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", e.Field(), e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// Role returns the context of the named role, or of the default role when
// name is empty. Unknown names yield a context carrying only the name.
func (c *Config) Role(name string) resolution.RoleContext {
	if name == "" {
		name = c.DefaultRole
	}
	if name == "" {
		return resolution.RoleContext{}
	}
	role, ok := c.Roles[name]
	if !ok {
		return resolution.RoleContext{Role: name}
	}
	role.Role = name
	return role
}

// Intent returns the configured intent metadata of an operation.
func (c *Config) Intent(method, path string) map[string]any {
	return c.Intents[strings.ToUpper(method)+" "+path]
}

// WallClock reports whether date-time values use the wall clock.
func (c *Config) WallClock() bool {
	return c.DeterministicTimestamps != nil && !*c.DeterministicTimestamps
}

// BaseDir returns the directory of the loaded config file, or "" when the
// configuration was not loaded from a file.
func (c *Config) BaseDir() string {
	return c.baseDir
}

// ResolvePath resolves a path relative to the config file directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// DocumentPath returns the resolved document path.
func (c *Config) DocumentPath() string {
	return c.ResolvePath(c.Document)
}

// WorkflowNames returns the names of all enabled workflows, sorted.
func (c *Config) WorkflowNames() []string {
	return workflow.EnabledNames(c.Workflows)
}

// GetWorkflow returns the named workflow.
func (c *Config) GetWorkflow(name string) (workflow.Definition, error) {
	def, ok := c.Workflows[name]
	if !ok {
		return workflow.Definition{}, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, name)
	}
	return def, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

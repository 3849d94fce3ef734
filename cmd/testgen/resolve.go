package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/erp/tools/testgen/internal/intent"
	"github.com/example/erp/tools/testgen/internal/memory"
	"github.com/example/erp/tools/testgen/internal/resolution"
	"github.com/example/erp/tools/testgen/internal/workflow"
)

type resolveOptions struct {
	operation string
	seed      int64
	role      string
	output    string
	strict    bool
	memory    map[string]string
}

func newResolveCmd(opts *globalOptions) *cobra.Command {
	ro := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one operation into a concrete request",
		Example: `  testgen resolve -d openapi.yaml --operation "POST /projects" --seed 7
  testgen resolve -c testgen.yaml --operation "GET /projects/{id}" --memory id=42 -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := workflow.ValidateOperationKey(ro.operation); err != nil {
				return fmt.Errorf("--operation: %w", err)
			}
			if ro.seed < 0 {
				return fmt.Errorf("--seed must be non-negative, got %d", ro.seed)
			}

			s, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			parts := strings.SplitN(ro.operation, " ", 2)
			method, path := strings.ToUpper(parts[0]), strings.TrimSpace(parts[1])

			var metadata map[string]any
			if op, err := s.doc.Operation(path, method); err == nil {
				metadata = intent.FromOperation(op, s.cfg.Intent(method, path), nil).Metadata
			}

			req := &resolution.Request{
				Endpoint: path,
				Method:   method,
				Document: s.doc,
				Intent:   metadata,
				Role:     s.cfg.Role(ro.role),
				Memory:   preloadMemory(ro.memory),
			}
			switch {
			case cmd.Flags().Changed("seed"):
				req.Seed = resolution.Seed(ro.seed)
			case s.cfg.Seed > 0:
				req.Seed = resolution.Seed(s.cfg.Seed)
			}

			engine := s.newEngine()
			var resolved *resolution.ResolvedRequest
			if ro.strict {
				resolved, err = engine.ResolveStrict(req)
				if err != nil {
					return err
				}
			} else {
				resolved = engine.Resolve(req)
			}

			return writeOutput(cmd.OutOrStdout(), ro.output, resolved)
		},
	}

	cmd.Flags().StringVar(&ro.operation, "operation", "", `Operation to resolve, as "METHOD /path"`)
	cmd.Flags().Int64Var(&ro.seed, "seed", 0, "Test case seed (overrides config)")
	cmd.Flags().StringVar(&ro.role, "role", "", "Role to resolve for (default: config defaultRole)")
	cmd.Flags().StringVarP(&ro.output, "output", "o", formatJSON, "Output format: json or yaml")
	cmd.Flags().BoolVar(&ro.strict, "strict", false, "Fail instead of falling back when resolution fails")
	cmd.Flags().StringToStringVar(&ro.memory, "memory", nil, "Preload execution memory, e.g. id=42,owner_id=abc")
	_ = cmd.MarkFlagRequired("operation")

	return cmd
}

// newEngine builds a resolution engine wired to the session logger and metrics.
func (s *session) newEngine() *resolution.Engine {
	opts := []resolution.Option{
		resolution.WithLogger(s.logger),
		resolution.WithObserver(s.recorder),
	}
	if s.cfg.WallClock() {
		opts = append(opts, resolution.WithWallClock())
	}
	return resolution.NewEngine(opts...)
}

// preloadMemory builds an execution memory from key=value pairs. Values that
// parse as integers are stored as int64.
func preloadMemory(values map[string]string) *memory.Store {
	store := memory.NewStore()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var v any = values[k]
		if n, err := strconv.ParseInt(values[k], 10, 64); err == nil {
			v = n
		}
		store.Set(k, v, memory.Source{Operation: "cli", ResponseField: k})
	}
	return store
}

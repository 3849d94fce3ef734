// Package main provides the testgen CLI: it lists and lints API documents,
// resolves deterministic test requests and plans multi-step workflows.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/erp/tools/testgen/internal/config"
	"github.com/example/erp/tools/testgen/internal/logger"
	"github.com/example/erp/tools/testgen/internal/metrics"
	"github.com/example/erp/tools/testgen/internal/openapi"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath   string
	documentPath string
	logLevel     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "testgen",
		Short: "Deterministic API test data generator",
		Long: `testgen resolves concrete, reproducible test requests from an OpenAPI 3 or
Swagger 2.0 document. Identifiers returned by earlier calls are reused by
later ones, so multi-step workflows can be planned without a live server.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML configuration file")
	root.PersistentFlags().StringVarP(&opts.documentPath, "document", "d", "", "Path to the OpenAPI/Swagger document (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newListCmd(opts),
		newLintCmd(opts),
		newResolveCmd(opts),
		newPlanCmd(opts),
		newVersionCmd(),
	)
	return root
}

// session holds what a subcommand needs once flags and config are loaded.
type session struct {
	cfg      *config.Config
	doc      *openapi.Document
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// loadConfig loads the config file, or defaults when none is given, then
// applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if o.configPath != "" {
		loaded, err := config.LoadFromFile(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.New()
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// resolveDocumentPath returns the document flag, or the configured document
// resolved against the config file directory.
func (o *globalOptions) resolveDocumentPath(cfg *config.Config) (string, error) {
	if o.documentPath != "" {
		return o.documentPath, nil
	}
	if cfg.Document != "" {
		return cfg.DocumentPath(), nil
	}
	return "", fmt.Errorf("no document: pass --document or set document in the config file")
}

func (o *globalOptions) open() (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	path, err := o.resolveDocumentPath(cfg)
	if err != nil {
		return nil, err
	}
	doc, err := openapi.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Debug("document loaded",
		zap.String("path", path),
		zap.String("version", doc.Version),
		zap.Int("operations", len(doc.Operations())),
	)

	return &session{
		cfg:      cfg,
		doc:      doc,
		logger:   log,
		recorder: metrics.NewRecorder(),
	}, nil
}

// close flushes metrics and the logger.
func (s *session) close() error {
	defer func() { _ = s.logger.Sync() }()

	if s.cfg.Metrics.Output == "" {
		return nil
	}
	path := s.cfg.ResolvePath(s.cfg.Metrics.Output)
	if err := s.recorder.WriteTextfile(path); err != nil {
		return err
	}
	s.logger.Debug("metrics written", zap.String("path", path))
	return nil
}

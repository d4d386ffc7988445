package main

import (
	"encoding/json"
	"io"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/project"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	projectDir string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "fern",
		Short:         "Keep a conceptual data model in sync with a dbt project",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&opts.projectDir, "project-dir", "p", "", "dbt project directory (overrides DBT_PROJECT_DIR)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(
		newServeCommand(opts),
		newGraphCommand(opts),
		newInferCommand(opts),
		newPushCommand(opts),
	)
	return cmd
}

func (o *rootOptions) config() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.projectDir != "" {
		cfg.DbtProjectDir = o.projectDir
	}
	return cfg, nil
}

// cliService builds a project service for one-shot commands. Logs are
// dropped unless --verbose is set so stdout stays machine readable.
func (o *rootOptions) cliService(overrides ...func(*config.Config)) (*project.Service, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	logger := logging.Discard()
	if o.verbose {
		if logger, err = newLogger(cfg); err != nil {
			return nil, err
		}
	}
	return project.NewFromConfig(cfg, logger), nil
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.PrettyLogs)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

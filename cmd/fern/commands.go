package main

import (
	"github.com/Ramsey-B/fern/config"
	"github.com/spf13/cobra"
)

func newGraphCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the merged graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.cliService()
			if err != nil {
				return err
			}
			graph, err := svc.LoadGraph(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), graph)
		},
	}
}

func newInferCommand(opts *rootOptions) *cobra.Command {
	var naming bool
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer relationships from dbt tests and store the new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := opts.cliService(func(cfg *config.Config) {
				if cmd.Flags().Changed("naming") {
					cfg.InferNamingHeuristics = naming
				}
			})
			if err != nil {
				return err
			}
			result, err := svc.InferRelationships(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&naming, "naming", false, "also propose edges from <model>_id column names")
	return cmd
}

func newPushCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push [relationship-id...]",
		Short: "Write relationships tests for stored edges into dbt schema files",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.cliService()
			if err != nil {
				return err
			}
			result, err := svc.PushTestsToSchema(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:       "run <pipeline>",
	Short:     "Run one cycle of a single pipeline and exit",
	Long:      "Claims one batch for the named pipeline, processes it and persists the results, without the scheduler. Pipelines: text_extraction, google_scraping, linkedin_scraping, github_scraping, profile_creation.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: stageNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]

		env, err := initPipeline(ctx, name)
		if err != nil {
			return err
		}
		defer env.Close()

		r, ok := env.Supervisor.Get(name)
		if !ok {
			return eris.Errorf("pipeline %s not registered", name)
		}
		cycleErr := r.RunOnce(ctx)

		st, _ := env.Registry.Get(name)
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal status")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return cycleErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"caseflow/internal/config"
	"caseflow/internal/daemonrun"
	"caseflow/internal/logging"
	"caseflow/internal/store"
	"caseflow/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var maxCycles int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the queue in the foreground until it is idle",
		Long: "Runs the pipeline stages in this process, without the daemon, " +
			"until a full cycle claims nothing. Useful for backfills and dev runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				stages, err := daemonrun.BuildStages(cmd.Context(), cfg, st, logger)
				if err != nil {
					return err
				}
				manager := workflow.NewManager(cfg, st, stages, logger)

				out := cmd.OutOrStdout()
				processed := 0
				for cycle := 1; maxCycles <= 0 || cycle <= maxCycles; cycle++ {
					claimed, err := manager.RunCycle(cmd.Context())
					if err != nil {
						return err
					}
					processed += claimed
					if claimed == 0 {
						break
					}
					fmt.Fprintf(out, "Cycle %d: %d record(s) claimed\n", cycle, claimed)
				}

				snapshot, err := st.ProgressSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Done: %d record(s) processed, %d/%d cases complete\n",
					processed, snapshot.Completed, snapshot.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = run until idle)")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"caseflow/internal/daemonrun"
	"caseflow/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, logger)
		},
	}
}

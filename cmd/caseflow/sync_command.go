package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var targetDSN string
	var chunkSize int
	var startOffset int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy the local store to the production database",
		Long: "Copies cases, assets, and tags from the configured store to a " +
			"Postgres target in chunks. Safe to re-run; resumes with --offset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, src *store.Store) error {
				dsn := strings.TrimSpace(targetDSN)
				if dsn == "" {
					dsn = strings.TrimSpace(cfg.Database.SyncDSN)
				}
				if dsn == "" {
					return fmt.Errorf("no sync target: set database.sync_dsn, SYNC_DATABASE_URL, or --target")
				}

				dst, err := store.OpenPostgres(dsn)
				if err != nil {
					return fmt.Errorf("open sync target: %w", err)
				}
				defer dst.Close()

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				counts, err := store.Sync(cmd.Context(), src, dst, chunkSize, startOffset, logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %d case(s), %d asset(s), %d tag link(s)\n",
					counts.Cases, counts.Assets, counts.Tags)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&targetDSN, "target", "", "Postgres DSN of the sync target")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 50, "Records copied per chunk")
	cmd.Flags().IntVar(&startOffset, "offset", 0, "Case offset to resume from")
	return cmd
}

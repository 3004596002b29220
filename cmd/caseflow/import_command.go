package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"caseflow/internal/config"
	"caseflow/internal/ingest"
	"caseflow/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [path...]",
		Short: "Import scraped case files into the queue",
		Long: "Imports scraped case JSON files or index HTML pages. With no " +
			"arguments the configured import directory is scanned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				importer := ingest.New(st, nil)
				out := cmd.OutOrStdout()

				if len(args) == 0 {
					dir := strings.TrimSpace(cfg.Paths.ImportDir)
					if dir == "" {
						return fmt.Errorf("no paths given and paths.import_dir is not configured")
					}
					summary, err := importer.ImportDir(cmd.Context(), dir)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Imported %d case(s) from %d file(s) in %s\n", summary.Cases, summary.Files, dir)
					return nil
				}

				total := 0
				for _, path := range args {
					count, err := importer.ImportFile(cmd.Context(), path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d case(s)\n", path, count)
					total += count
				}
				fmt.Fprintf(out, "Imported %d case(s)\n", total)
				return nil
			})
		},
	}
	return cmd
}

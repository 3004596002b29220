package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"caseflow/internal/config"
	"caseflow/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [case-id]",
		Short: "Show pipeline progress, or one case in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				if len(args) == 1 {
					return printCaseStatus(cmd, st, args[0])
				}
				return printProgress(cmd, st)
			})
		},
	}
	return cmd
}

func printProgress(cmd *cobra.Command, st *store.Store) error {
	snapshot, err := st.ProgressSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cases:  %d total, %d pending, %d processing, %d completed, %d failed\n",
		snapshot.Total, snapshot.Pending, snapshot.Processing, snapshot.Completed, snapshot.Failed)
	fmt.Fprintf(out, "Assets: %d of %d done\n", snapshot.AssetsDone, snapshot.AssetsExpected)
	fmt.Fprintf(out, "Progress: %.1f%%\n", snapshot.CompletionRatio()*100)
	return nil
}

func printCaseStatus(cmd *cobra.Command, st *store.Store, caseID string) error {
	record, err := st.GetCase(cmd.Context(), caseID)
	if err != nil {
		return err
	}
	assets, err := st.ListAssets(cmd.Context(), caseID)
	if err != nil {
		return err
	}
	complete, err := st.CaseComplete(cmd.Context(), caseID)
	if err != nil {
		return err
	}

	tags, err := st.ListCaseTags(cmd.Context(), caseID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Case:     %s (%s)\n", record.CaseID, record.Title)
	fmt.Fprintf(out, "Status:   %s\n", record.ConvertStatus)
	fmt.Fprintf(out, "Images:   %d\n", record.ImageCount)
	fmt.Fprintf(out, "Complete: %s\n", yesNo(complete))
	if len(tags) > 0 {
		fmt.Fprintf(out, "Tags:     %s\n", strings.Join(tags, ", "))
	}
	if record.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", record.ErrorMessage)
	}

	if len(assets) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(assets))
	for _, asset := range assets {
		rows = append(rows, []string{
			asset.Filename,
			asset.AIProcessed.String(),
			yesNo(asset.Done()),
			truncate(asset.BlobURL, 60),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Asset", "Caption", "Done", "URL"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

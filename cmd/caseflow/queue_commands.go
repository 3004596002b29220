package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"caseflow/internal/config"
	"caseflow/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the case queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRetryAssetsCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))
	queueCmd.AddCommand(newQueueResetStuckCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				var statuses []store.Status
				for _, part := range strings.Split(statusFilter, ",") {
					part = strings.TrimSpace(part)
					if part == "" {
						continue
					}
					status, ok := store.ParseStatus(part)
					if !ok {
						return fmt.Errorf("unknown status %q", part)
					}
					statuses = append(statuses, status)
				}

				cases, err := st.ListCasesByConvertStatus(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(cases) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(cases))
				for _, record := range cases {
					done, err := st.DoneAssetCount(cmd.Context(), record.CaseID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						strconv.FormatInt(record.ID, 10),
						record.CaseID,
						truncate(record.Title, 40),
						record.ConvertStatus.String(),
						fmt.Sprintf("%d/%d", done, record.ImageCount),
						record.UpdatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Case", "Title", "Status", "Images", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (name or code)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue status counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				snapshot, err := st.ProgressSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				assetCounts, err := st.AssetStatusCounts(cmd.Context())
				if err != nil {
					return err
				}

				rows := [][]string{
					{"total", strconv.Itoa(snapshot.Total)},
					{"pending", strconv.Itoa(snapshot.Pending)},
					{"processing", strconv.Itoa(snapshot.Processing)},
					{"completed", strconv.Itoa(snapshot.Completed)},
					{"failed", strconv.Itoa(snapshot.Failed)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Cases", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight},
				))

				assetRows := make([][]string, 0, len(assetCounts))
				for _, status := range []store.Status{
					store.StatusPending, store.StatusInProgress, store.StatusDone,
					store.StatusBadPayload, store.StatusNoContent, store.StatusInternalError,
				} {
					if count, ok := assetCounts[status]; ok {
						assetRows = append(assetRows, []string{status.String(), strconv.Itoa(count)})
					}
				}
				if len(assetRows) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Assets", "Count"}, assetRows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed cases back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				retried, err := st.RetryFailedCases(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d case(s)\n", retried)
				return nil
			})
		},
	}
}

func newQueueRetryAssetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-assets [case-id]",
		Short: "Move failed caption assets back to pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID := ""
			if len(args) == 1 {
				caseID = strings.TrimSpace(args[0])
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				retried, err := st.RetryFailedAssets(cmd.Context(), caseID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d asset(s)\n", retried)
				return nil
			})
		},
	}
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "clear-failed",
		Short: "Delete terminally failed cases and their assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("clear-failed deletes records permanently; re-run with --yes")
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				cleared, err := st.ClearFailedCases(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed case(s)\n", cleared)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the deletion")
	return cmd
}

func newQueueResetStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Release every in-progress claim back to pending",
		Long:  "Releases claims left behind by an interrupted daemon. Do not run while a daemon is processing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				reset, err := st.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d case claim(s)\n", reset)
				return nil
			})
		},
	}
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid case id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

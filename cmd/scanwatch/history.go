package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/config"
	"github.com/nao1215/scanwatch/internal/database"
	"github.com/nao1215/scanwatch/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show scans recorded by previous commands",
		Long: `History lists the scans submitted or watched from this machine, most
recently updated first. With an id it shows every status change observed
for that scan.

Only metadata is stored: ids, repository URLs, statuses and finding totals.

Examples:
  # Last 20 scans
  scanwatch history

  # Every recorded scan
  scanwatch history -l 0

  # Status changes of one scan
  scanwatch history 42`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", config.DefaultHistoryLimit,
		"Maximum number of scans to list (0 lists all)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		records, err := db.ListScans(ctx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No scans recorded yet.")
			return nil
		}
		fmt.Fprintln(out, scansTable(records))
		return nil
	}

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	id := ids[0]

	record, err := db.GetScan(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("scan %s is not in the history", id)
	}
	events, err := db.StatusHistory(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, scansTable([]database.ScanRecord{*record}))
	if len(events) == 0 {
		fmt.Fprintln(out, "No status changes recorded.")
		return nil
	}
	fmt.Fprintln(out, eventsTable(events))
	return nil
}

func scansTable(records []database.ScanRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "STATUS", "FINDINGS", "REPOSITORY", "UPDATED")
	for _, r := range records {
		t.Row(
			r.JobID.String(),
			statusText(r.Status),
			totalsText(r),
			orDash(r.RepoURL),
			timeText(r.UpdatedAt),
		)
	}
	return t.String()
}

func eventsTable(events []database.StatusEvent) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("OBSERVED", "STATUS")
	for _, e := range events {
		t.Row(timeText(e.ObservedAt), statusText(e.Status))
	}
	return t.String()
}

func statusText(s model.Status) string {
	if s == model.StatusUnknown {
		return "-"
	}
	return s.String()
}

func totalsText(r database.ScanRecord) string {
	if !r.HasTotals() {
		return "-"
	}
	return strconv.Itoa(r.TotalEntries)
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/batch"
	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/report"
)

// NewFindingsCmd creates the findings command.
func NewFindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings <id>",
		Short: "Print one page of a scan's findings",
		Long: `Findings waits for the scan to complete, then fetches and prints one page
of its findings. If the scan fails, the failure is reported and the command
exits with a non-zero status.

Examples:
  # First page as a table
  scanwatch findings 42

  # Third page as JSON
  scanwatch findings -p 3 --json 42

  # Markdown report written to a file
  scanwatch findings --markdown -o reports/42.md 42`,
		Args: cobra.ExactArgs(1),
		RunE: runFindingsCmd,
	}

	cmd.Flags().IntP("page", "p", 1,
		"Findings page to fetch")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write findings to specified file path (creates directories if needed)")

	return cmd
}

// runFindingsCmd executes the findings command.
func runFindingsCmd(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	id := ids[0]

	ctx, a, cleanup, err := prepare(cmd)
	defer cleanup()
	if err != nil {
		return err
	}

	runner := batch.NewRunner(a.client,
		batch.WithLogger(a.logger),
		batch.WithSessionOptions(a.sessionOptions()...),
		batch.WithPage(a.cfg.Page),
		batch.WithStatusHook(func(id model.ID, status model.Status) {
			a.recordStatus(ctx, id, status)
		}),
	)
	out := runner.Follow(ctx, id)

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted while waiting for scan %s: %w", id, ctx.Err())
	}

	output, closeOutput, err := a.openOutput()
	if err != nil {
		return err
	}
	w := report.NewWriter(a.reportFormat(), output, getVersion())

	switch {
	case out.Page != nil:
		a.recordTotals(ctx, *out.Page)
		_, err = w.WritePage(*out.Page)
	case out.Status == model.StatusFailed:
		if _, werr := w.WriteFailure(id, out.Err); werr != nil {
			err = werr
		} else {
			err = fmt.Errorf("scan %s failed", id)
		}
	default:
		var pageErr error
		if out.Err != nil {
			pageErr = out.Err
		} else {
			pageErr = errors.New("no page delivered")
		}
		err = fmt.Errorf("failed to fetch findings page %d of scan %s: %w", a.cfg.Page, id, pageErr)
	}

	if cerr := closeOutput(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	if err == nil && a.cfg.ReportFile != "" {
		fmt.Fprintf(a.errOut, "Findings written to: %s\n", a.cfg.ReportFile)
	}
	return err
}

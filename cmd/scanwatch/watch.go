package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/batch"
	"github.com/nao1215/scanwatch/internal/config"
	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/report"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <id>...",
		Short: "Follow scans until they complete or fail",
		Long: `Watch polls each scan until it reaches a terminal status and prints every
status change. When a scan completes, the first page of its findings is
printed.

Several scans are followed concurrently, at most --batch at a time.

Pressing Ctrl-C stops watching but leaves the scans running on the backend.
Use --cancel-on-interrupt to cancel them instead.

Examples:
  # Follow one scan
  scanwatch watch 42

  # Follow three scans, two at a time
  scanwatch watch -b 2 42 43 44

  # Print the findings as Markdown
  scanwatch watch --markdown 42 > findings.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatchCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of scans followed concurrently")
	cmd.Flags().Bool("cancel-on-interrupt", false,
		"Cancel unfinished scans on the backend when interrupted")
	cmd.Flags().BoolP("json", "j", false,
		"Output findings as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output findings as Markdown (mutually exclusive with --json)")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	cancelOnInterrupt, err := cmd.Flags().GetBool("cancel-on-interrupt")
	if err != nil {
		return err
	}

	ctx, a, cleanup, err := prepare(cmd)
	defer cleanup()
	if err != nil {
		return err
	}

	return watchScans(ctx, a, ids, cancelOnInterrupt)
}

// watchScans follows ids, printing status changes as they happen and the
// findings of each completed scan.
func watchScans(ctx context.Context, a *app, ids []model.ID, cancelOnInterrupt bool) error {
	progress := a.progressWriter()
	w := report.NewWriter(a.reportFormat(), a.out, getVersion())

	// Status lines and reports of concurrent scans must not interleave.
	var mu sync.Mutex
	hook := func(id model.ID, status model.Status) {
		a.recordStatus(ctx, id, status)
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(progress, "[%s] %s\n", id, status)
	}

	runner := batch.NewRunner(a.client,
		batch.WithLogger(a.logger),
		batch.WithConcurrency(a.cfg.BatchSize),
		batch.WithSessionOptions(a.sessionOptions()...),
		batch.WithPage(a.cfg.Page),
		batch.WithCancelOnInterrupt(cancelOnInterrupt),
		batch.WithStatusHook(hook),
	)

	var (
		failed   int
		writeErr error
	)
	runErr := runner.Run(ctx, ids, func(out batch.Outcome, _ int) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case out.Page != nil:
			a.recordTotals(ctx, *out.Page)
			if _, err := w.WritePage(*out.Page); err != nil {
				writeErr = errors.Join(writeErr, err)
			}
		case ctx.Err() != nil:
			if out.Cancelled {
				fmt.Fprintf(progress, "[%s] cancelled\n", out.JobID)
			}
		case out.Status == model.StatusFailed || out.Status == model.StatusUnknown:
			failed++
			if _, err := w.WriteFailure(out.JobID, out.Err); err != nil {
				writeErr = errors.Join(writeErr, err)
			}
		default:
			failed++
			fmt.Fprintf(progress, "[%s] findings unavailable: %v\n", out.JobID, out.Err)
		}
	})

	if writeErr != nil {
		return fmt.Errorf("failed to write findings: %w", writeErr)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(progress, "Interrupted.")
		if !cancelOnInterrupt {
			fmt.Fprintln(progress, "Unfinished scans keep running on the backend; resume with: scanwatch watch <id>")
		}
		return nil
	}
	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scans did not complete", failed, len(ids))
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/watch"
)

// NewCancelCmd creates the cancel command.
func NewCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending or running scan",
		Long: `Cancel reads the current status of the scan and, if it is still pending or
running, asks the backend to cancel it. Scans that already completed or
failed are left untouched.

Examples:
  scanwatch cancel 42`,
		Args: cobra.ExactArgs(1),
		RunE: runCancelCmd,
	}
	return cmd
}

// runCancelCmd executes the cancel command.
func runCancelCmd(cmd *cobra.Command, args []string) error {
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

	tracker := watch.NewStatusTracker(a.client,
		watch.WithInterval(a.cfg.PollInterval),
		watch.WithTrackerLogger(a.logger),
	)
	defer tracker.Dispose()

	first := make(chan struct{})
	var once bool
	tracker.OnStatusChange(func(s model.Status) {
		// The terminal status is recorded below, after the tracker settled.
		if !s.IsTerminal() {
			a.recordStatus(ctx, id, s)
		}
		// Listeners run sequentially, no lock needed.
		if !once {
			once = true
			close(first)
		}
	})

	if err := tracker.Start(ctx, id); err != nil {
		return fmt.Errorf("failed to track scan %s: %w", id, err)
	}

	select {
	case <-first:
	case <-tracker.Done():
	case <-ctx.Done():
		return fmt.Errorf("interrupted before scan %s responded: %w", id, ctx.Err())
	}

	status := tracker.Status()
	if status.IsTerminal() {
		if err := tracker.Err(); err != nil {
			return fmt.Errorf("failed to read scan %s: %w", id, err)
		}
		a.recordStatus(ctx, id, status)
		fmt.Fprintf(a.out, "Scan %s already %s, nothing to cancel\n", id, status)
		return nil
	}
	if status == model.StatusUnknown {
		return fmt.Errorf("interrupted before scan %s responded: %w", id, ctx.Err())
	}

	tracker.Cancel()
	tracker.Wait()
	a.recordStatus(ctx, id, tracker.Status())
	fmt.Fprintf(a.out, "Scan %s cancelled\n", id)
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/tui"
	"github.com/nao1215/scanwatch/internal/watch"
)

// NewBrowseCmd creates the browse command.
func NewBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <id>",
		Short: "Browse a scan and its findings interactively",
		Long: `Browse opens a terminal view of one scan. The status refreshes while the
scan runs; once it completes the findings are shown one page at a time.

Keys:
  n, →   next page
  p, ←   previous page
  r      reload the current page
  c      cancel the scan while it is pending or running
  q      quit

Examples:
  scanwatch browse 42`,
		Args: cobra.ExactArgs(1),
		RunE: runBrowseCmd,
	}
	return cmd
}

// runBrowseCmd executes the browse command.
func runBrowseCmd(cmd *cobra.Command, args []string) error {
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

	session := watch.NewSession(a.client, a.sessionOptions()...)
	session.Tracker().OnStatusChange(func(s model.Status) {
		a.recordStatus(ctx, id, s)
	})
	session.Pager().OnPage(func(p model.Page) {
		a.recordTotals(ctx, p)
	})

	return tui.Run(ctx, session, id)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/model"
)

// NewSubmitCmd creates the submit command.
func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <repo-url>",
		Short: "Submit a repository for scanning",
		Long: `Submit asks the backend to create a project for the repository and start
scanning it. The new scan id is printed and recorded in the history.

With --watch the scan is followed until it completes or fails, then the
first findings page is printed, exactly like the watch command.

Examples:
  # Start a scan
  scanwatch submit https://github.com/phoenixframework/phoenix

  # Start a scan and wait for the findings
  scanwatch submit -w https://github.com/phoenixframework/phoenix`,
		Args: cobra.ExactArgs(1),
		RunE: runSubmitCmd,
	}

	cmd.Flags().BoolP("watch", "w", false,
		"Follow the scan until it completes or fails")
	cmd.Flags().Bool("cancel-on-interrupt", false,
		"Cancel the scan on the backend when the watch is interrupted")
	cmd.Flags().BoolP("json", "j", false,
		"Output findings as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output findings as Markdown (mutually exclusive with --json)")

	return cmd
}

// runSubmitCmd executes the submit command.
func runSubmitCmd(cmd *cobra.Command, args []string) error {
	follow, err := cmd.Flags().GetBool("watch")
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

	repoURL := strings.TrimSpace(args[0])
	id, err := a.client.CreateScan(ctx, repoURL)
	if err != nil {
		return fmt.Errorf("failed to start scan, check the URL: %w", err)
	}

	fmt.Fprintf(a.progressWriter(), "Scan submitted: %s\n", id)
	if a.history != nil {
		if err := a.history.RecordSubmission(ctx, id, repoURL, a.cfg.BaseURL); err != nil {
			a.logger.Warn("failed to record submission", "job", id, "error", err)
		}
	}

	if !follow {
		return nil
	}
	return watchScans(ctx, a, []model.ID{id}, cancelOnInterrupt)
}

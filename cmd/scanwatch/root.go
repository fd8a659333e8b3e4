package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/config"
)

// NewRootCmd creates the root command for scanwatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scanwatch",
		Short: "Follow repository scans on a scan dashboard backend",
		Long: `scanwatch talks to a scan dashboard backend over its REST API.

It submits repositories for scanning, polls each scan until it completes or
fails, and fetches the findings one page at a time.

Settings are read from .scanwatch (current or home directory) or
$XDG_CONFIG_HOME/scanwatch/config.yaml; flags override the file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.StringP("config", "c", "",
		"Configuration file path (default: .scanwatch in current or home directory)")
	flags.StringP("base-url", "u", config.DefaultBaseURL,
		"API root of the dashboard backend")
	flags.DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each API request")
	flags.DurationP("poll-interval", "i", config.DefaultPollInterval,
		"Delay between status requests while a scan is pending or running")
	flags.String("proxy", "",
		"Route API requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	flags.Bool("tor", false,
		"Start an embedded Tor daemon and route API requests through it")
	flags.Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	flags.Bool("no-history", false,
		"Do not record scans in the history database")
	flags.String("history-dir", "",
		"Directory of the history database (default: $XDG_DATA_HOME/scanwatch)")

	cmd.AddCommand(NewSubmitCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewFindingsCmd())
	cmd.AddCommand(NewCancelCmd())
	cmd.AddCommand(NewBrowseCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	config.Version = getVersion()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

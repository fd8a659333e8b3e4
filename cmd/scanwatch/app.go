package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanwatch/internal/api"
	"github.com/nao1215/scanwatch/internal/config"
	"github.com/nao1215/scanwatch/internal/database"
	scanlog "github.com/nao1215/scanwatch/internal/log"
	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/report"
	"github.com/nao1215/scanwatch/internal/tor"
	"github.com/nao1215/scanwatch/internal/watch"
)

// app holds everything a command needs to talk to the backend.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer

	client  *api.Client
	history *database.HistoryDB
	tor     *tor.EmbeddedTor
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the defaults, the configuration file and
// the flags the user set explicitly, in that order of precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use the defaults if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := overrideString(cmd, "base-url", &cfg.BaseURL); err != nil {
		return nil, err
	}
	if err := overrideDuration(cmd, "timeout", &cfg.Timeout); err != nil {
		return nil, err
	}
	if err := overrideDuration(cmd, "poll-interval", &cfg.PollInterval); err != nil {
		return nil, err
	}
	if err := overrideString(cmd, "proxy", &cfg.ProxyAddress); err != nil {
		return nil, err
	}
	if err := overrideBool(cmd, "tor", &cfg.UseEmbeddedTor); err != nil {
		return nil, err
	}
	if err := overrideDuration(cmd, "tor-timeout", &cfg.TorStartupTimeout); err != nil {
		return nil, err
	}

	if err := overrideString(cmd, "history-dir", &cfg.DBDir); err != nil {
		return nil, err
	}

	noHistory := false
	if err := overrideBool(cmd, "no-history", &noHistory); err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	// Command specific flags. Flags a command does not define are never
	// reported as changed.
	if err := overrideInt(cmd, "batch", &cfg.BatchSize); err != nil {
		return nil, err
	}
	if err := overrideInt(cmd, "page", &cfg.Page); err != nil {
		return nil, err
	}
	if err := overrideBool(cmd, "json", &cfg.JSONReport); err != nil {
		return nil, err
	}
	if err := overrideBool(cmd, "markdown", &cfg.MarkdownReport); err != nil {
		return nil, err
	}
	if err := overrideString(cmd, "output", &cfg.ReportFile); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideString(cmd *cobra.Command, name string, dst *string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func overrideBool(cmd *cobra.Command, name string, dst *bool) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func overrideInt(cmd *cobra.Command, name string, dst *int) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func overrideDuration(cmd *cobra.Command, name string, dst *time.Duration) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// setupLogger creates a structured logger that masks credentials.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return scanlog.NewSecureLogger(w, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// prepare builds and validates the configuration, then sets up logging, signal
// handling and the app. The returned cleanup must always be called.
func prepare(cmd *cobra.Command) (context.Context, *app, func(), error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, func() {}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, func() {}, fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, cancel := signalContext(cmd.Context(), logger)
	a, err := newApp(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		cancel()
		return nil, nil, func() {}, err
	}

	return ctx, a, func() {
		a.Close()
		cancel()
	}, nil
}

// newApp wires the HTTP transport, the optional proxy or embedded Tor and
// the history database.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
		errOut: errOut,
	}

	httpClient, err := a.httpClient(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	transport, err := api.NewHTTPTransport(cfg.BaseURL,
		api.WithHTTPClient(httpClient),
		api.WithUserAgent(cfg.UserAgent),
		api.WithHeaders(cfg.Headers),
		api.WithMaxBodySize(cfg.MaxBodySize),
		api.WithTransportLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create API transport: %w", err)
	}
	a.client = api.NewClient(transport)

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			// History is a convenience; the command itself can still run.
			logger.Warn("history disabled, failed to open database", "dir", cfg.DBDir, "error", err)
		} else {
			a.history = db
			logger.Debug("history database opened", "path", db.Path())
		}
	}

	return a, nil
}

// httpClient returns the client API requests go through: direct, via a
// SOCKS5 proxy or via the embedded Tor daemon.
func (a *app) httpClient(ctx context.Context) (*http.Client, error) {
	cfg := a.cfg
	proxied := cfg.ProxyAddress != "" || cfg.UseEmbeddedTor
	if err := tor.CheckBaseURL(cfg.BaseURL, proxied); err != nil {
		return nil, fmt.Errorf("invalid base URL %s: %w", cfg.BaseURL, err)
	}

	switch {
	case cfg.UseEmbeddedTor:
		client, err := a.startEmbeddedTor(ctx)
		if err != nil {
			return nil, err
		}
		return client.NewHTTPClient(), nil

	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		status := client.CheckConnection(ctx)
		if status != tor.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s)",
				status, cfg.ProxyAddress)
		}
		a.logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client.NewHTTPClient(), nil

	default:
		return &http.Client{Timeout: cfg.Timeout}, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
func (a *app) startEmbeddedTor(ctx context.Context) (*tor.Client, error) {
	fmt.Fprintln(a.errOut, "Starting embedded Tor daemon...")
	fmt.Fprintf(a.errOut, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(a.cfg.TorStartupTimeout),
	)
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	a.tor = embedded

	a.logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)
	fmt.Fprintf(a.errOut, "Embedded Tor daemon started, SOCKS proxy: %s\n\n", embedded.SocksAddr())

	client, err := embedded.NewClient(a.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		return nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}
	return client, nil
}

// Close releases the history database and stops the embedded Tor daemon.
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("failed to close history database", "error", err)
		}
		a.history = nil
	}
	if a.tor != nil {
		a.logger.Info("stopping embedded Tor daemon...")
		if err := a.tor.Stop(); err != nil {
			a.logger.Error("failed to stop embedded Tor", "error", err)
		}
		a.tor = nil
	}
}

// sessionOptions returns the options every watch session is created with.
func (a *app) sessionOptions() []watch.SessionOption {
	return []watch.SessionOption{
		watch.WithSessionLogger(a.logger),
		watch.WithTrackerOptions(watch.WithInterval(a.cfg.PollInterval)),
	}
}

// recordStatus stores a published status in the history. History writes never
// fail a command.
func (a *app) recordStatus(ctx context.Context, id model.ID, status model.Status) {
	if a.history == nil {
		return
	}
	if err := a.history.RecordStatus(context.WithoutCancel(ctx), id, a.cfg.BaseURL, status); err != nil {
		a.logger.Warn("failed to record status", "job", id, "status", status, "error", err)
	}
}

// recordTotals stores the totals of a delivered page in the history.
func (a *app) recordTotals(ctx context.Context, page model.Page) {
	if a.history == nil {
		return
	}
	if err := a.history.RecordTotals(context.WithoutCancel(ctx), page.JobID, page.TotalPages, page.TotalEntries); err != nil {
		a.logger.Warn("failed to record totals", "job", page.JobID, "error", err)
	}
}

// reportFormat returns the findings output format selected by the flags.
func (a *app) reportFormat() report.Format {
	switch {
	case a.cfg.JSONReport:
		return report.FormatJSON
	case a.cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// progressWriter returns where status lines go. They share standard output
// with text reports only; JSON, Markdown and report files stay clean.
func (a *app) progressWriter() io.Writer {
	if a.reportFormat() == report.FormatText && a.cfg.ReportFile == "" {
		return a.out
	}
	return a.errOut
}

// openOutput returns the report destination. With no report file it is the
// command's standard output.
func (a *app) openOutput() (io.Writer, func() error, error) {
	if a.cfg.ReportFile == "" {
		return a.out, func() error { return nil }, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(a.cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Findings may contain sensitive information that should only be readable by the owner
	f, err := os.OpenFile(a.cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// parseIDs converts command arguments to job ids.
func parseIDs(args []string) ([]model.ID, error) {
	ids := make([]model.ID, 0, len(args))
	for _, arg := range args {
		id := model.ID(strings.TrimSpace(arg))
		if id.IsZero() {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

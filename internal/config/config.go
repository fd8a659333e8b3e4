package config

import (
	"net"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The base URL, poll interval and page numbering match the dashboard backend
// the client talks to.
const (
	// DefaultBaseURL is the API root of a locally running dashboard backend.
	DefaultBaseURL = "http://localhost:4000/api"

	// DefaultPollInterval is the delay between two status requests while a
	// scan is pending or running.
	DefaultPollInterval = 3 * time.Second

	// DefaultTimeout bounds a single HTTP request. Polling continues with the
	// next request only after the previous one returned, so a hung request
	// would otherwise stall the tracker forever.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of scans watched concurrently by the
	// watch command.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "scanwatch"

	// DefaultMaxBodySize limits the size of a single API response.
	DefaultMaxBodySize = 8 * 1024 * 1024 // 8MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultHistoryLimit is the number of rows the history command prints.
	DefaultHistoryLimit = 20
)

// Version is set by the CLI at start-up and ends up in DefaultUserAgent.
var Version = "dev"

// DefaultUserAgent returns the User-Agent sent with every API request.
func DefaultUserAgent() string {
	return AppName + "/" + Version
}

// Config holds all configuration options for scanwatch.
// It is populated from defaults, then the configuration file, then CLI flags,
// and passed explicitly to whatever needs it.
type Config struct {
	// BaseURL is the API root every request path is joined to.
	BaseURL string

	// PollInterval is the delay between status requests.
	PollInterval time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// BatchSize is the number of scans watched concurrently.
	BatchSize int

	// Verbose enables debug logging. When false only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path given with --config. If empty the file is
	// searched for, see FindConfigFile.
	ConfigFilePath string

	// File is the loaded configuration file, or nil.
	File *File

	// JSONReport and MarkdownReport select the findings output format.
	// They are mutually exclusive; the default is human-readable text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output file path for findings. Stdout when empty.
	ReportFile string

	// Page is the findings page to fetch.
	Page int

	// UserAgent is the User-Agent header sent with API requests.
	UserAgent string

	// Headers are extra HTTP headers sent with every API request,
	// typically authentication.
	Headers map[string]string

	// ProxyAddress is a SOCKS5 proxy in host:port form. Empty means direct.
	ProxyAddress string

	// UseEmbeddedTor starts a private Tor daemon and routes API requests
	// through it. Mutually exclusive with ProxyAddress.
	UseEmbeddedTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// DBDir is the directory holding the history database.
	DBDir string

	// SaveToDB records submitted and watched scans in the history database.
	SaveToDB bool

	// MaxBodySize is the maximum API response size in bytes.
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		PollInterval:      DefaultPollInterval,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		Page:              1,
		UserAgent:         DefaultUserAgent(),
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// ApplyFile copies every value set in f over the current configuration.
// A nil file is ignored.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f

	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	if f.PollInterval != 0 {
		c.PollInterval = f.PollInterval
	}
	if f.Timeout != 0 {
		c.Timeout = f.Timeout
	}
	if f.BatchSize != 0 {
		c.BatchSize = f.BatchSize
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if len(f.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			c.Headers[k] = v
		}
	}
}

// XDGDataDir returns the XDG data directory for scanwatch.
// On Linux: ~/.local/share/scanwatch
// On macOS: ~/Library/Application Support/scanwatch
// On Windows: %LOCALAPPDATA%\scanwatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for scanwatch.
// On Linux: ~/.config/scanwatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGConfigFile returns the configuration file path inside XDGConfigDir.
func XDGConfigFile() string {
	return filepath.Join(XDGConfigDir(), "config.yaml")
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Page < 1 {
		return ErrInvalidPage
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.ProxyAddress != "" {
		if c.UseEmbeddedTor {
			return ErrConflictingProxy
		}
		if _, _, err := net.SplitHostPort(c.ProxyAddress); err != nil {
			return ErrInvalidProxy
		}
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

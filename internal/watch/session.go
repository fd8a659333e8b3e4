package watch

import (
	"context"
	"log/slog"

	"github.com/nao1215/scanwatch/internal/model"
)

// SessionAPI is everything a Session needs from the backend.
type SessionAPI interface {
	ScanAPI
	FindingsAPI
}

// Session follows one scan from submission to its findings. When the tracker
// publishes complete the pager is activated and, unless disabled, the start
// page (page 1 by default) is requested.
type Session struct {
	tracker *StatusTracker
	pager   *ResultPager
	logger  *slog.Logger
	auto    bool
	page    int
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	tracker []TrackerOption
	pager   []PagerOption
	logger  *slog.Logger
	auto    bool
	page    int
}

// WithTrackerOptions passes options to the underlying StatusTracker.
func WithTrackerOptions(opts ...TrackerOption) SessionOption {
	return func(c *sessionConfig) {
		c.tracker = append(c.tracker, opts...)
	}
}

// WithPagerOptions passes options to the underlying ResultPager.
func WithPagerOptions(opts ...PagerOption) SessionOption {
	return func(c *sessionConfig) {
		c.pager = append(c.pager, opts...)
	}
}

// WithSessionLogger sets the logger for the session and both components.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFirstPage controls whether page 1 is requested automatically on
// completion. It is on by default.
func WithFirstPage(enabled bool) SessionOption {
	return func(c *sessionConfig) {
		c.auto = enabled
	}
}

// WithStartPage sets the page requested on completion. Values below 1 are
// ignored.
func WithStartPage(n int) SessionOption {
	return func(c *sessionConfig) {
		if n >= 1 {
			c.page = n
		}
	}
}

// NewSession creates a tracker and a pager bound to each other.
func NewSession(api SessionAPI, opts ...SessionOption) *Session {
	cfg := sessionConfig{
		logger: slog.Default(),
		auto:   true,
		page:   1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	trackerOpts := append([]TrackerOption{WithTrackerLogger(cfg.logger)}, cfg.tracker...)
	pagerOpts := append([]PagerOption{WithPagerLogger(cfg.logger)}, cfg.pager...)

	tracker := NewStatusTracker(api, trackerOpts...)
	s := &Session{
		tracker: tracker,
		pager:   NewResultPager(api, tracker, pagerOpts...),
		logger:  cfg.logger,
		auto:    cfg.auto,
		page:    cfg.page,
	}
	tracker.OnStatusChange(s.onStatus)
	return s
}

// Start begins tracking jobID.
func (s *Session) Start(ctx context.Context, jobID model.ID) error {
	return s.tracker.Start(ctx, jobID)
}

// Tracker returns the status tracker.
func (s *Session) Tracker() *StatusTracker {
	return s.tracker
}

// Pager returns the findings pager.
func (s *Session) Pager() *ResultPager {
	return s.pager
}

// Cancel cancels the tracked scan.
func (s *Session) Cancel() {
	s.tracker.Cancel()
}

// Dispose disposes both components.
func (s *Session) Dispose() {
	s.tracker.Dispose()
	s.pager.Dispose()
}

func (s *Session) onStatus(st model.Status) {
	if st != model.StatusComplete {
		return
	}
	id := s.tracker.JobID()
	if err := s.pager.SetActiveJob(id); err != nil {
		s.logger.Error("failed to activate findings", "job", id, "error", err)
		return
	}
	if !s.auto {
		return
	}
	if err := s.pager.RequestPage(s.page); err != nil {
		s.logger.Error("failed to request findings page", "job", id, "page", s.page, "error", err)
	}
}

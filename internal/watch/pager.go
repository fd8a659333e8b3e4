package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/scanwatch/internal/model"
)

// FindingsAPI is the subset of the backend the pager needs.
type FindingsAPI interface {
	GetFindings(ctx context.Context, id model.ID, page int) (model.Page, error)
}

// ResultPager fetches findings pages for a completed scan.
//
// Only the most recent request can ever be delivered: issuing a new request
// aborts the previous one and invalidates its epoch, so an older response that
// arrives late is dropped.
//
// Design decision: superseded requests are cancelled twice. Their context is
// aborted so the transport can give up early, and their epoch is invalidated
// so a response that still makes it back is discarded. Transports that ignore
// cancellation stay correct through the epoch alone.
type ResultPager struct {
	// api serves the findings pages.
	api FindingsAPI

	// status gates SetActiveJob: only the tracked job, once complete.
	status StatusProvider

	logger *slog.Logger

	// base parents every request context; cancelBase is called by Dispose.
	base       context.Context
	cancelBase context.CancelFunc

	// mu guards every field below.
	mu sync.Mutex

	// jobID is the job pages are fetched for, set by SetActiveJob.
	jobID model.ID

	active   bool
	disposed bool

	// epoch identifies the latest request; only its response is delivered.
	epoch epoch

	// abort cancels the context of the latest request.
	abort context.CancelFunc

	// pending is the page number of the outstanding request, 0 when idle.
	pending int

	// current is the last delivered page and the cursor Next and Previous
	// move from. A failed request leaves it as is.
	current    model.Page
	hasCurrent bool

	pages notifier[model.Page]
	fails notifier[PageError]
}

// PagerOption configures a ResultPager.
type PagerOption func(*pagerConfig)

type pagerConfig struct {
	ctx    context.Context
	logger *slog.Logger
}

// WithPagerContext sets the context every findings request derives from.
func WithPagerContext(ctx context.Context) PagerOption {
	return func(c *pagerConfig) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithPagerLogger sets the logger.
func WithPagerLogger(logger *slog.Logger) PagerOption {
	return func(c *pagerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewResultPager creates an inactive pager. status is consulted by
// SetActiveJob to make sure only completed scans are paged.
func NewResultPager(api FindingsAPI, status StatusProvider, opts ...PagerOption) *ResultPager {
	cfg := pagerConfig{
		ctx:    context.Background(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	base, cancel := context.WithCancel(cfg.ctx)
	return &ResultPager{
		api:        api,
		status:     status,
		logger:     cfg.logger,
		base:       base,
		cancelBase: cancel,
	}
}

// SetActiveJob points the pager at a completed scan and resets the cursor to
// page 1. Outstanding requests for the previous job are aborted. No page is
// fetched until RequestPage is called.
func (p *ResultPager) SetActiveJob(jobID model.ID) error {
	if jobID.IsZero() {
		return fmt.Errorf("%w: job id must not be empty", ErrInvalidArgument)
	}
	if p.status != nil {
		if got := p.status.JobID(); got != jobID {
			return fmt.Errorf("%w: scan %s is not the tracked scan", ErrInvalidState, jobID)
		}
		if st := p.status.Status(); st != model.StatusComplete {
			return fmt.Errorf("%w: scan %s is %s, not complete", ErrInvalidState, jobID, st)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return fmt.Errorf("%w: pager is disposed", ErrInvalidState)
	}
	p.abortLocked()
	p.jobID = jobID
	p.active = true
	p.current = model.Page{}
	p.hasCurrent = false
	return nil
}

// RequestPage asks for page n of the active job. Any earlier outstanding
// request is aborted and its response, if it still arrives, is ignored.
// The result is delivered through OnPage or OnPageError.
func (p *ResultPager) RequestPage(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: page must be at least 1, got %d", ErrInvalidArgument, n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestLocked(n)
}

// NextPage requests the page after the displayed one. It returns ErrNoPage if
// nothing is displayed yet or the displayed page is the last one.
func (p *ResultPager) NextPage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	if !p.hasCurrent || !p.current.HasNext() {
		return ErrNoPage
	}
	return p.requestLocked(p.current.PageNumber + 1)
}

// PreviousPage requests the page before the displayed one. It returns
// ErrNoPage on page 1.
func (p *ResultPager) PreviousPage() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	if !p.hasCurrent || !p.current.HasPrevious() {
		return ErrNoPage
	}
	return p.requestLocked(p.current.PageNumber - 1)
}

// OnPage registers fn to receive every delivered page.
func (p *ResultPager) OnPage(fn func(model.Page)) {
	p.pages.add(fn)
}

// OnPageError registers fn to receive request failures.
func (p *ResultPager) OnPageError(fn func(PageError)) {
	p.fails.add(fn)
}

// Current returns the last delivered page.
func (p *ResultPager) Current() (model.Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.hasCurrent
}

// Cursor returns the displayed page number, or 1 if nothing was delivered yet.
func (p *ResultPager) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasCurrent {
		return 1
	}
	return p.current.PageNumber
}

// Pending returns the page number of the outstanding request, or 0.
func (p *ResultPager) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// JobID returns the active job id, or the zero ID.
func (p *ResultPager) JobID() model.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// Dispose aborts the outstanding request and detaches every listener.
func (p *ResultPager) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	p.active = false
	p.abortLocked()
	p.cancelBase()
	p.mu.Unlock()

	p.pages.close()
	p.fails.close()
}

func (p *ResultPager) usableLocked() error {
	if p.disposed {
		return fmt.Errorf("%w: pager is disposed", ErrInvalidState)
	}
	if !p.active {
		return fmt.Errorf("%w: no active scan", ErrInvalidState)
	}
	return nil
}

func (p *ResultPager) requestLocked(n int) error {
	if err := p.usableLocked(); err != nil {
		return err
	}
	p.abortLocked()

	e := p.epoch.next()
	ctx, cancel := context.WithCancel(p.base)
	p.abort = cancel
	p.pending = n

	go p.fetch(ctx, cancel, p.jobID, n, e)
	return nil
}

// abortLocked cancels the outstanding request and invalidates its epoch.
func (p *ResultPager) abortLocked() {
	p.epoch.next()
	if p.abort != nil {
		p.abort()
		p.abort = nil
	}
	p.pending = 0
}

func (p *ResultPager) fetch(ctx context.Context, cancel context.CancelFunc, id model.ID, n int, e uint64) {
	page, err := p.api.GetFindings(ctx, id, n)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.epoch.isCurrent(e) || p.disposed {
		p.logger.Debug("discarding superseded findings response", "job", id, "page", n, "epoch", e)
		return
	}
	p.abort = nil
	p.pending = 0

	if err != nil {
		p.logger.Warn("findings request failed", "job", id, "page", n, "epoch", e, "error", err)
		p.fails.publish(PageError{JobID: id, Page: n, Epoch: e, Err: err})
		return
	}
	if page.PageNumber != n {
		p.logger.Warn("findings page mismatch", "job", id, "requested", n, "received", page.PageNumber)
		p.fails.publish(PageError{
			JobID: id,
			Page:  n,
			Epoch: e,
			Err:   fmt.Errorf("%w: requested %d, received %d", ErrPageMismatch, n, page.PageNumber),
		})
		return
	}

	p.current = page
	p.hasCurrent = true
	p.pages.publish(page)
}

package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/watch"
)

// DefaultConcurrency is the number of scans followed at once.
const DefaultConcurrency = 4

// Outcome is what following one scan produced.
type Outcome struct {
	// JobID is the followed scan.
	JobID model.ID

	// Status is the last status the tracker published, StatusUnknown if the
	// watch was interrupted before the first response.
	Status model.Status

	// Page is the requested findings page. It is nil unless Status is
	// complete and the page was delivered.
	Page *model.Page

	// Err is the start error, the error that forced failed, the page error
	// or the context error of an interrupted watch.
	Err error

	// Cancelled reports whether a cancellation was sent for the scan.
	Cancelled bool
}

// Complete reports whether the scan completed.
func (o Outcome) Complete() bool {
	return o.Status == model.StatusComplete
}

// Runner follows scans through watch sessions.
type Runner struct {
	api         watch.SessionAPI
	sessionOpts []watch.SessionOption
	concurrency int
	page        int
	cancelOnEnd bool
	onStatus    func(id model.ID, status model.Status)
	logger      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConcurrency sets the maximum number of scans followed at once.
// Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSessionOptions passes options to every session.
func WithSessionOptions(opts ...watch.SessionOption) Option {
	return func(r *Runner) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// WithPage sets the findings page awaited after completion. 0 waits for the
// terminal status only.
func WithPage(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.page = n
		}
	}
}

// WithCancelOnInterrupt makes the runner cancel scans on the backend when the
// context passed to Run or Follow ends. By default only the local watch stops.
func WithCancelOnInterrupt(enabled bool) Option {
	return func(r *Runner) {
		r.cancelOnEnd = enabled
	}
}

// WithStatusHook registers fn to observe every published status. fn may be
// called from several goroutines.
func WithStatusHook(fn func(id model.ID, status model.Status)) Option {
	return func(r *Runner) {
		r.onStatus = fn
	}
}

// NewRunner creates a Runner over api.
func NewRunner(api watch.SessionAPI, opts ...Option) *Runner {
	r := &Runner{
		api:         api,
		concurrency: DefaultConcurrency,
		page:        1,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Follow watches one scan until its tracker stops and, when it completed,
// until the configured page arrives.
func (r *Runner) Follow(ctx context.Context, id model.ID) Outcome {
	opts := append([]watch.SessionOption{watch.WithSessionLogger(r.logger)}, r.sessionOpts...)
	if r.page > 0 {
		opts = append(opts, watch.WithStartPage(r.page))
	} else {
		opts = append(opts, watch.WithFirstPage(false))
	}
	s := watch.NewSession(r.api, opts...)
	defer s.Dispose()

	pages := make(chan model.Page, 1)
	fails := make(chan watch.PageError, 1)
	s.Pager().OnPage(func(p model.Page) {
		select {
		case pages <- p:
		default:
		}
	})
	s.Pager().OnPageError(func(e watch.PageError) {
		select {
		case fails <- e:
		default:
		}
	})
	// Registered after the session's own listener, so by the time the
	// terminal status reaches it the session has already asked for the page.
	settled := make(chan struct{})
	s.Tracker().OnStatusChange(func(st model.Status) {
		if r.onStatus != nil {
			r.onStatus(id, st)
		}
		if st.IsTerminal() {
			close(settled)
		}
	})

	out := Outcome{JobID: id}

	// The tracker runs detached from ctx so an interrupted watch can still
	// choose between cancelling the scan and just stopping.
	trackCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	if err := s.Start(trackCtx, id); err != nil {
		out.Err = err
		return out
	}

	select {
	case <-settled:
	case <-ctx.Done():
		return r.interrupted(ctx, s, settled, out)
	}

	out.Status = s.Tracker().Status()
	if out.Status != model.StatusComplete {
		out.Err = s.Tracker().Err()
		return out
	}
	if r.page == 0 {
		return out
	}

	select {
	case p := <-pages:
		out.Page = &p
	case e := <-fails:
		out.Err = e
	case <-ctx.Done():
		out.Err = ctx.Err()
	}
	return out
}

func (r *Runner) interrupted(ctx context.Context, s *watch.Session, settled <-chan struct{}, out Outcome) Outcome {
	out.Err = ctx.Err()
	if r.cancelOnEnd && !s.Tracker().Status().IsTerminal() {
		s.Cancel()
		s.Tracker().Wait()
		<-settled
		out.Cancelled = true
		r.logger.Info("scan cancelled on interrupt", "job", out.JobID)
	} else {
		r.logger.Info("watch interrupted, scan left running", "job", out.JobID)
	}
	out.Status = s.Tracker().Status()
	return out
}

// Run follows every id, at most the configured number at once. callback is
// invoked with each outcome and the index of its id as soon as it is known;
// calls may come from several goroutines.
//
// Run returns the context error if ctx ended before every scan was started.
func (r *Runner) Run(ctx context.Context, ids []model.ID, callback func(out Outcome, index int)) error {
	r.logger.Info("following scans",
		"total", len(ids),
		"concurrency", r.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			out := r.Follow(gctx, id)
			if out.Err != nil {
				r.logger.Warn("scan did not complete cleanly", "job", id, "status", out.Status, "error", out.Err)
			}
			if callback != nil {
				callback(out, i)
			}
			// One scan's failure must not stop the others.
			return nil
		})
	}

	err := g.Wait()
	r.logger.Info("finished following scans",
		"total", len(ids),
		"elapsed", time.Since(startTime),
	)
	return err
}

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nao1215/scanwatch/internal/model"
)

// DefaultPollInterval is the delay between the completion of one status fetch
// and the start of the next while a scan is pending or running.
const DefaultPollInterval = 3 * time.Second

// ScanAPI is the subset of the backend the tracker needs.
type ScanAPI interface {
	GetScan(ctx context.Context, id model.ID) (model.Scan, error)
	CancelScan(ctx context.Context, id model.ID) error
}

// StatusProvider exposes the job a tracker is bound to and its latest status.
type StatusProvider interface {
	JobID() model.ID
	Status() model.Status
}

// StatusTracker polls the status of one scan until it reaches a terminal state.
//
// A tracker is single-use: Start binds it to a job id and it can never be
// rebound. Once complete or failed has been published no further status is
// ever published.
//
// Design decision: polling is single-flight. The next fetch is scheduled one
// interval after the previous response, never on a free-running ticker, so a
// slow backend stretches the cadence instead of piling up requests. Responses
// are matched against an epoch; anything that bumps the epoch (cancel,
// dispose, halt) turns every outstanding response into a no-op.
type StatusTracker struct {
	// api is the backend the tracker polls and sends cancellations to.
	api ScanAPI

	// interval is the delay between a response and the next fetch.
	interval time.Duration

	logger *slog.Logger

	// mu guards every field below.
	mu sync.Mutex

	// jobID is bound once by Start.
	jobID model.ID

	started  bool
	disposed bool

	// halted is set when the Start context ended before a terminal status.
	// A halted tracker is finished but publishes nothing further.
	halted bool

	// status is the last published status, StatusUnknown before the first.
	status model.Status

	// err is the fetch error that forced failed, if any.
	err error

	// epoch identifies the only fetch whose response may still be applied.
	epoch epoch

	// timer holds at most one armed poll.
	timer timerSlot

	// inFlight is true while a fetch is outstanding. Together with timer
	// it makes "one armed timer or one fetch" checkable.
	inFlight bool

	// ctx bounds status requests; stop cancels it once the tracker settles.
	ctx  context.Context
	stop context.CancelFunc

	// done is closed once, when the tracker settles, halts or is disposed.
	done    chan struct{}
	doneSet bool

	// wg counts cancellation requests still running, see Wait.
	wg sync.WaitGroup

	changes notifier[model.Status]
}

// TrackerOption configures a StatusTracker.
type TrackerOption func(*StatusTracker)

// WithInterval sets the poll interval. Non-positive values are ignored.
func WithInterval(d time.Duration) TrackerOption {
	return func(t *StatusTracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithClock sets the clock used to schedule polls.
func WithClock(clock clockwork.Clock) TrackerOption {
	return func(t *StatusTracker) {
		if clock != nil {
			t.timer = newTimerSlot(clock)
		}
	}
}

// WithTrackerLogger sets the logger.
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *StatusTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewStatusTracker creates an idle tracker. Call Start to begin polling.
func NewStatusTracker(api ScanAPI, opts ...TrackerOption) *StatusTracker {
	t := &StatusTracker{
		api:      api,
		interval: DefaultPollInterval,
		logger:   slog.Default(),
		timer:    newTimerSlot(nil),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start binds the tracker to jobID and issues the first status fetch
// immediately. Later fetches are scheduled one interval after the previous
// response while the status stays pending or running.
//
// ctx bounds every request the tracker makes except the cancellation request.
// If ctx ends, polling stops and Done is closed without publishing a status.
// Start returns ErrInvalidArgument for an empty id and ErrInvalidState if the
// tracker was already started or disposed.
func (t *StatusTracker) Start(ctx context.Context, jobID model.ID) error {
	if jobID.IsZero() {
		return fmt.Errorf("%w: job id must not be empty", ErrInvalidArgument)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return fmt.Errorf("%w: tracker is disposed", ErrInvalidState)
	}
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("%w: tracker already bound to scan %s", ErrInvalidState, t.jobID)
	}
	t.started = true
	t.jobID = jobID
	t.ctx, t.stop = context.WithCancel(ctx)
	e := t.epoch.next()
	t.inFlight = true
	t.mu.Unlock()

	// An armed timer would otherwise keep the tracker alive until the next
	// tick after ctx ended.
	context.AfterFunc(t.ctx, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.finishedLocked() {
			return
		}
		t.logger.Debug("tracking interrupted", "job", t.jobID, "error", ctx.Err())
		t.haltLocked()
	})

	t.logger.Debug("tracking scan", "job", jobID, "interval", t.interval)
	go t.fetch(e)
	return nil
}

// OnStatusChange registers fn to be called with every newly published status.
// Listeners run sequentially in publication order.
func (t *StatusTracker) OnStatusChange(fn func(model.Status)) {
	t.changes.add(fn)
}

// Cancel stops polling, publishes failed and asks the backend to cancel the
// scan. The cancellation request is fire-and-forget: its outcome never changes
// the published status. Cancel is a no-op before Start, after a terminal
// status, after Dispose and after the Start context ended.
func (t *StatusTracker) Cancel() {
	t.mu.Lock()
	if !t.started || t.finishedLocked() {
		t.mu.Unlock()
		return
	}
	id := t.jobID
	ctx := context.WithoutCancel(t.ctx)
	t.settleLocked(model.StatusFailed)
	t.wg.Add(1)
	t.mu.Unlock()

	t.logger.Info("cancelling scan", "job", id)
	go func() {
		defer t.wg.Done()
		if err := t.api.CancelScan(ctx, id); err != nil {
			t.logger.Debug("cancel request failed", "job", id, "error", err)
		}
	}()
}

// Dispose stops all activity and detaches every listener. Responses that
// arrive afterwards are dropped. Dispose is idempotent.
func (t *StatusTracker) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	t.epoch.next()
	t.timer.clear()
	t.inFlight = false
	if t.stop != nil {
		t.stop()
	}
	t.closeDoneLocked()
	t.mu.Unlock()

	t.changes.close()
}

// Wait blocks until every cancellation request issued by Cancel has returned.
func (t *StatusTracker) Wait() {
	t.wg.Wait()
}

// JobID returns the bound job id, or the zero ID before Start.
func (t *StatusTracker) JobID() model.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobID
}

// Status returns the last published status, or StatusUnknown if none.
func (t *StatusTracker) Status() model.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the error that forced the tracker into failed, if any.
func (t *StatusTracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the tracker has stopped: a terminal status was
// published, the Start context ended or the tracker was disposed.
func (t *StatusTracker) Done() <-chan struct{} {
	return t.done
}

// fetch performs one status request issued under epoch e.
func (t *StatusTracker) fetch(e uint64) {
	scan, err := t.api.GetScan(t.ctx, t.jobID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.epoch.isCurrent(e) || t.finishedLocked() {
		t.logger.Debug("discarding stale status response", "job", t.jobID, "epoch", e)
		return
	}
	t.inFlight = false

	if err != nil && t.ctx.Err() != nil {
		// The caller's context ended; that is not a scan failure.
		t.logger.Debug("tracking interrupted", "job", t.jobID, "error", t.ctx.Err())
		t.haltLocked()
		return
	}
	if err != nil {
		t.err = err
		t.logger.Warn("status fetch failed", "job", t.jobID, "error", err)
		t.settleLocked(model.StatusFailed)
		return
	}

	if scan.Status.IsTerminal() {
		t.settleLocked(scan.Status)
		return
	}
	t.publishLocked(scan.Status)
	t.timer.arm(t.interval, t.tick)
}

// tick runs when the poll timer of generation gen expires.
func (t *StatusTracker) tick(gen uint64) {
	t.mu.Lock()
	if !t.timer.fire(gen) || t.finishedLocked() {
		t.mu.Unlock()
		return
	}
	e := t.epoch.next()
	t.inFlight = true
	t.mu.Unlock()

	t.fetch(e)
}

// haltLocked stops polling without publishing anything.
func (t *StatusTracker) haltLocked() {
	t.halted = true
	t.epoch.next()
	t.timer.clear()
	t.inFlight = false
	t.closeDoneLocked()
}

// settleLocked publishes a terminal status and releases every resource.
func (t *StatusTracker) settleLocked(final model.Status) {
	t.publishLocked(final)
	t.epoch.next()
	t.timer.clear()
	t.inFlight = false
	t.stop()
	t.closeDoneLocked()
	t.logger.Debug("tracking stopped", "job", t.jobID, "status", final)
}

func (t *StatusTracker) publishLocked(s model.Status) {
	if s == t.status {
		return
	}
	t.status = s
	t.changes.publish(s)
}

func (t *StatusTracker) finishedLocked() bool {
	return t.disposed || t.halted || t.status.IsTerminal()
}

func (t *StatusTracker) closeDoneLocked() {
	if !t.doneSet {
		t.doneSet = true
		close(t.done)
	}
}

// busy reports whether a poll is armed or a fetch is in flight.
func (t *StatusTracker) busy() (armed, inFlight bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer.armed(), t.inFlight
}

package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nao1215/scanwatch/internal/model"
)

var errBoom = errors.New("boom")

type scanReply struct {
	status model.Status
	err    error
}

func replies(statuses ...model.Status) []scanReply {
	out := make([]scanReply, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, scanReply{status: s})
	}
	return out
}

// fakeScanAPI replays a scripted list of replies. The last reply repeats.
// When gate is set, every GetScan blocks until the gate is closed, even if
// its context is cancelled, so late responses can be simulated.
type fakeScanAPI struct {
	mu      sync.Mutex
	script  []scanReply
	calls   int
	gate    chan struct{}
	cancels chan model.ID

	active atomic.Int32
	peak   atomic.Int32
}

func newFakeScanAPI(script ...scanReply) *fakeScanAPI {
	return &fakeScanAPI{
		script:  script,
		cancels: make(chan model.ID, 4),
	}
}

func (f *fakeScanAPI) GetScan(_ context.Context, id model.ID) (model.Scan, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	r := f.script[idx]
	f.calls++
	f.mu.Unlock()

	if r.err != nil {
		return model.Scan{}, r.err
	}
	return model.Scan{ID: id, Status: r.status}, nil
}

func (f *fakeScanAPI) CancelScan(_ context.Context, id model.ID) error {
	f.cancels <- id
	return nil
}

func (f *fakeScanAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func recordStatuses(tr *StatusTracker) <-chan model.Status {
	ch := make(chan model.Status, 16)
	tr.OnStatusChange(func(s model.Status) { ch <- s })
	return ch
}

func expectStatus(t *testing.T, ch <-chan model.Status, want model.Status) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected status %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for status %s", want)
	}
}

func expectNoStatus(t *testing.T, ch <-chan model.Status) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("expected no further status, got %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForPoll(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("poll timer was never armed: %v", err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func expectDone(t *testing.T, tr *StatusTracker) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected tracker to be done")
	}
}

func TestStatusTrackerPollsUntilComplete(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	api := newFakeScanAPI(replies(model.StatusPending, model.StatusRunning, model.StatusComplete)...)
	tr := NewStatusTracker(api, WithClock(clock))
	ch := recordStatuses(tr)

	if err := tr.Start(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, ch, model.StatusPending)

	waitForPoll(t, clock)
	clock.Advance(DefaultPollInterval - time.Millisecond)
	expectNoStatus(t, ch)
	if got := api.callCount(); got != 1 {
		t.Fatalf("expected 1 fetch before the interval elapsed, got %d", got)
	}

	clock.Advance(time.Millisecond)
	expectStatus(t, ch, model.StatusRunning)

	waitForPoll(t, clock)
	clock.Advance(DefaultPollInterval)
	expectStatus(t, ch, model.StatusComplete)
	expectDone(t, tr)

	armed, inFlight := tr.busy()
	if armed || inFlight {
		t.Errorf("expected no scheduled work after complete, got armed=%v inFlight=%v", armed, inFlight)
	}

	clock.Advance(time.Minute)
	expectNoStatus(t, ch)
	if got := api.callCount(); got != 3 {
		t.Errorf("expected 3 fetches, got %d", got)
	}
	if got := api.peak.Load(); got > 1 {
		t.Errorf("expected at most 1 concurrent fetch, got %d", got)
	}
	if tr.Status() != model.StatusComplete {
		t.Errorf("expected status complete, got %s", tr.Status())
	}
	if tr.Err() != nil {
		t.Errorf("expected no error, got %v", tr.Err())
	}
}

func TestStatusTrackerCustomInterval(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	api := newFakeScanAPI(replies(model.StatusRunning, model.StatusComplete)...)
	tr := NewStatusTracker(api, WithClock(clock), WithInterval(500*time.Millisecond))
	ch := recordStatuses(tr)

	if err := tr.Start(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, ch, model.StatusRunning)
	waitForPoll(t, clock)
	clock.Advance(500 * time.Millisecond)
	expectStatus(t, ch, model.StatusComplete)
}

func TestStatusTrackerSuppressesRepeatedStatus(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	api := newFakeScanAPI(replies(model.StatusPending, model.StatusPending, model.StatusRunning, model.StatusComplete)...)
	tr := NewStatusTracker(api, WithClock(clock))
	ch := recordStatuses(tr)

	if err := tr.Start(context.Background(), "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, ch, model.StatusPending)

	for range 3 {
		waitForPoll(t, clock)
		clock.Advance(DefaultPollInterval)
	}
	expectStatus(t, ch, model.StatusRunning)
	expectStatus(t, ch, model.StatusComplete)
	expectNoStatus(t, ch)
}

func TestStatusTrackerImmediateTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status model.Status
	}{
		{name: "complete", status: model.StatusComplete},
		{name: "failed reported by backend", status: model.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := clockwork.NewFakeClock()
			api := newFakeScanAPI(replies(tt.status)...)
			tr := NewStatusTracker(api, WithClock(clock))
			ch := recordStatuses(tr)

			if err := tr.Start(context.Background(), "9"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expectStatus(t, ch, tt.status)
			expectDone(t, tr)

			if armed, _ := tr.busy(); armed {
				t.Error("expected no poll to be scheduled")
			}
			clock.Advance(time.Minute)
			expectNoStatus(t, ch)
			if got := api.callCount(); got != 1 {
				t.Errorf("expected 1 fetch, got %d", got)
			}
			if tr.Err() != nil {
				t.Errorf("expected no error, got %v", tr.Err())
			}
		})
	}
}

func TestStatusTrackerFailsFastOnFetchError(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	api := newFakeScanAPI(
		scanReply{status: model.StatusPending},
		scanReply{err: errBoom},
		scanReply{status: model.StatusComplete},
	)
	tr := NewStatusTracker(api, WithClock(clock))
	ch := recordStatuses(tr)

	if err := tr.Start(context.Background(), "5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, ch, model.StatusPending)
	waitForPoll(t, clock)
	clock.Advance(DefaultPollInterval)
	expectStatus(t, ch, model.StatusFailed)
	expectDone(t, tr)

	if !errors.Is(tr.Err(), errBoom) {
		t.Errorf("expected error %v, got %v", errBoom, tr.Err())
	}

	clock.Advance(time.Minute)
	expectNoStatus(t, ch)
	if got := api.callCount(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
	select {
	case id := <-api.cancels:
		t.Errorf("expected no cancel request, got one for %s", id)
	default:
	}
}

func TestStatusTrackerCancelWhilePolling(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	api := newFakeScanAPI(replies(model.StatusPending, model.StatusRunning)...)
	tr := NewStatusTracker(api, WithClock(clock))
	ch := recordStatuses(tr)

	if err := tr.Start(context.Background(), "11"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, ch, model.StatusPending)
	waitForPoll(t, clock)
	clock.Advance(DefaultPollInterval)
	expectStatus(t, ch, model.StatusRunning)
	waitForPoll(t, clock)

	tr.Cancel()
	if got := tr.Status(); got != model.StatusFailed {
		t.Fatalf("expected status failed right after cancel, got %s", got)
	}
	expectStatus(t, ch, model.StatusFailed)
	expectDone(t, tr)

	tr.Wait()
	select {
	case id := <-api.cancels:
		if id != "11" {
			t.Errorf("expected cancel request for 11, got %s", id)
		}
	default:
		t.Fatal("expected a cancel request")
	}

	clock.Advance(time.Minute)
	expectNoStatus(t, ch)
	if got := api.callCount(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}

	// A second cancel is a no-op.
	tr.Cancel()
	tr.Wait()
	select {
	case <-api.cancels:
		t.Error("expected a single cancel request")
	default:
	}
}

func TestStatusTrackerCancelDropsInFlightResponse(t *testing.T) {
	t.Parallel()

	api := newFakeScanAPI(replies(model.StatusComplete)...)
	api.gate = make(chan struct{})
	tr := NewStatusTracker(api, WithClock(clockwork.NewFakeClock()))
	ch := recordStatuses(tr)

	if err := tr.Start(context.Background(), "3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, func() bool { return api.active.Load() == 1 })

	tr.Cancel()
	expectStatus(t, ch, model.StatusFailed)

	close(api.gate)
	eventually(t, func() bool { return api.callCount() == 1 })
	expectNoStatus(t, ch)
	if got := tr.Status(); got != model.StatusFailed {
		t.Errorf("expected status failed, got %s", got)
	}
	tr.Wait()
}

func TestStatusTrackerCancelNoop(t *testing.T) {
	t.Parallel()

	t.Run("before start", func(t *testing.T) {
		t.Parallel()

		api := newFakeScanAPI(replies(model.StatusPending)...)
		tr := NewStatusTracker(api)
		tr.Cancel()
		tr.Wait()

		if got := tr.Status(); got != model.StatusUnknown {
			t.Errorf("expected no status, got %s", got)
		}
		select {
		case <-api.cancels:
			t.Error("expected no cancel request")
		default:
		}
	})

	t.Run("after complete", func(t *testing.T) {
		t.Parallel()

		api := newFakeScanAPI(replies(model.StatusComplete)...)
		tr := NewStatusTracker(api, WithClock(clockwork.NewFakeClock()))
		ch := recordStatuses(tr)
		if err := tr.Start(context.Background(), "8"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectStatus(t, ch, model.StatusComplete)

		tr.Cancel()
		tr.Wait()
		expectNoStatus(t, ch)
		if got := tr.Status(); got != model.StatusComplete {
			t.Errorf("expected status complete, got %s", got)
		}
		select {
		case <-api.cancels:
			t.Error("expected no cancel request")
		default:
		}
	})
}

func TestStatusTrackerStartErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty id", func(t *testing.T) {
		t.Parallel()

		tr := NewStatusTracker(newFakeScanAPI(replies(model.StatusPending)...))
		if err := tr.Start(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("started twice", func(t *testing.T) {
		t.Parallel()

		tr := NewStatusTracker(newFakeScanAPI(replies(model.StatusComplete)...), WithClock(clockwork.NewFakeClock()))
		if err := tr.Start(context.Background(), "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := tr.Start(context.Background(), "2"); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
		if got := tr.JobID(); got != "1" {
			t.Errorf("expected job id 1, got %s", got)
		}
	})

	t.Run("after dispose", func(t *testing.T) {
		t.Parallel()

		tr := NewStatusTracker(newFakeScanAPI(replies(model.StatusPending)...))
		tr.Dispose()
		if err := tr.Start(context.Background(), "1"); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestStatusTrackerDispose(t *testing.T) {
	t.Parallel()

	api := newFakeScanAPI(replies(model.StatusRunning)...)
	api.gate = make(chan struct{})
	tr := NewStatusTracker(api, WithClock(clockwork.NewFakeClock()))
	ch := recordStatuses(tr)

	if err := tr.Start(context.Background(), "4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, func() bool { return api.active.Load() == 1 })

	tr.Dispose()
	tr.Dispose()
	expectDone(t, tr)

	close(api.gate)
	eventually(t, func() bool { return api.callCount() == 1 })
	expectNoStatus(t, ch)

	if got := tr.Status(); got != model.StatusUnknown {
		t.Errorf("expected no status after dispose, got %s", got)
	}
	armed, inFlight := tr.busy()
	if armed || inFlight {
		t.Errorf("expected no scheduled work after dispose, got armed=%v inFlight=%v", armed, inFlight)
	}
}

func TestStatusTrackerListenerMayCallBack(t *testing.T) {
	t.Parallel()

	api := newFakeScanAPI(replies(model.StatusComplete)...)
	tr := NewStatusTracker(api, WithClock(clockwork.NewFakeClock()))

	seen := make(chan model.Status, 1)
	tr.OnStatusChange(func(model.Status) {
		// Reading state from inside a listener must not deadlock.
		seen <- tr.Status()
	})

	if err := tr.Start(context.Background(), "6"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, seen, model.StatusComplete)
}

// TestStatusTrackerStopsWhenContextEnds tests that an ended Start context
// stops the tracker without publishing a status.
func TestStatusTrackerStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	t.Run("during a fetch", func(t *testing.T) {
		t.Parallel()

		api := newFakeScanAPI(scanReply{err: errors.New("request aborted")})
		api.gate = make(chan struct{})
		tr := NewStatusTracker(api, WithClock(clockwork.NewFakeClock()))
		defer tr.Dispose()
		ch := recordStatuses(tr)

		ctx, cancel := context.WithCancel(context.Background())
		if err := tr.Start(ctx, "8"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		eventually(t, func() bool { return api.active.Load() == 1 })

		cancel()
		expectDone(t, tr)
		close(api.gate)

		expectNoStatus(t, ch)
		if got := tr.Status(); got != model.StatusUnknown {
			t.Errorf("expected no published status, got %s", got)
		}
		if tr.Err() != nil {
			t.Errorf("expected no error, got %v", tr.Err())
		}
	})

	t.Run("while the poll timer is armed", func(t *testing.T) {
		t.Parallel()

		api := newFakeScanAPI(replies(model.StatusRunning)...)
		clock := clockwork.NewFakeClock()
		tr := NewStatusTracker(api, WithClock(clock))
		defer tr.Dispose()
		ch := recordStatuses(tr)

		ctx, cancel := context.WithCancel(context.Background())
		if err := tr.Start(ctx, "8"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectStatus(t, ch, model.StatusRunning)
		waitForPoll(t, clock)

		cancel()
		expectDone(t, tr)

		armed, inFlight := tr.busy()
		if armed || inFlight {
			t.Errorf("expected no pending work, got armed=%v inFlight=%v", armed, inFlight)
		}

		clock.Advance(DefaultPollInterval)
		expectNoStatus(t, ch)
		if got := api.callCount(); got != 1 {
			t.Errorf("expected 1 status request, got %d", got)
		}
		if got := tr.Status(); got != model.StatusRunning {
			t.Errorf("expected status running, got %s", got)
		}
	})

	t.Run("cancel after the context ended", func(t *testing.T) {
		t.Parallel()

		api := newFakeScanAPI(replies(model.StatusRunning)...)
		clock := clockwork.NewFakeClock()
		tr := NewStatusTracker(api, WithClock(clock))
		defer tr.Dispose()
		ch := recordStatuses(tr)

		ctx, cancel := context.WithCancel(context.Background())
		if err := tr.Start(ctx, "8"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectStatus(t, ch, model.StatusRunning)
		waitForPoll(t, clock)
		cancel()
		expectDone(t, tr)

		tr.Cancel()
		tr.Wait()

		expectNoStatus(t, ch)
		if got := tr.Status(); got != model.StatusRunning {
			t.Errorf("expected status running, got %s", got)
		}
		select {
		case <-api.cancels:
			t.Error("expected no cancel request")
		default:
		}
	})
}

package watch

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nao1215/scanwatch/internal/model"
)

type fakeSessionAPI struct {
	*fakeScanAPI
	*fakeFindingsAPI
}

func TestSessionRequestsFirstPageOnComplete(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	api := fakeSessionAPI{
		fakeScanAPI:     newFakeScanAPI(replies(model.StatusRunning, model.StatusComplete)...),
		fakeFindingsAPI: newFakeFindingsAPI(2),
	}
	s := NewSession(api, WithTrackerOptions(WithClock(clock)))
	defer s.Dispose()

	statuses := recordStatuses(s.Tracker())
	pages := make(chan model.Page, 4)
	s.Pager().OnPage(func(p model.Page) { pages <- p })

	if err := s.Start(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, statuses, model.StatusRunning)
	waitForPoll(t, clock)
	clock.Advance(DefaultPollInterval)
	expectStatus(t, statuses, model.StatusComplete)

	got := expectPage(t, pages, 1)
	if got.JobID != "42" {
		t.Errorf("expected page for 42, got %s", got.JobID)
	}
	if s.Pager().JobID() != "42" {
		t.Errorf("expected pager bound to 42, got %s", s.Pager().JobID())
	}
}

func TestSessionWithoutFirstPage(t *testing.T) {
	t.Parallel()

	api := fakeSessionAPI{
		fakeScanAPI:     newFakeScanAPI(replies(model.StatusComplete)...),
		fakeFindingsAPI: newFakeFindingsAPI(1),
	}
	s := NewSession(api, WithFirstPage(false), WithTrackerOptions(WithClock(clockwork.NewFakeClock())))
	defer s.Dispose()

	if err := s.Start(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, func() bool { return s.Pager().JobID() == "42" })

	time.Sleep(50 * time.Millisecond)
	if got := api.fakeFindingsAPI.callCount(); got != 0 {
		t.Errorf("expected no findings request, got %d", got)
	}
	if err := s.Pager().RequestPage(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSessionFailedScanHasNoFindings(t *testing.T) {
	t.Parallel()

	api := fakeSessionAPI{
		fakeScanAPI:     newFakeScanAPI(replies(model.StatusFailed)...),
		fakeFindingsAPI: newFakeFindingsAPI(1),
	}
	s := NewSession(api, WithTrackerOptions(WithClock(clockwork.NewFakeClock())))
	defer s.Dispose()

	statuses := recordStatuses(s.Tracker())
	if err := s.Start(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectStatus(t, statuses, model.StatusFailed)

	time.Sleep(50 * time.Millisecond)
	if got := api.fakeFindingsAPI.callCount(); got != 0 {
		t.Errorf("expected no findings request, got %d", got)
	}
	if !s.Pager().JobID().IsZero() {
		t.Errorf("expected inactive pager, got %s", s.Pager().JobID())
	}
}

func TestSessionWithStartPage(t *testing.T) {
	t.Parallel()

	api := fakeSessionAPI{
		fakeScanAPI:     newFakeScanAPI(replies(model.StatusComplete)...),
		fakeFindingsAPI: newFakeFindingsAPI(3),
	}
	s := NewSession(api, WithStartPage(3), WithTrackerOptions(WithClock(clockwork.NewFakeClock())))
	defer s.Dispose()

	pages := make(chan model.Page, 4)
	s.Pager().OnPage(func(p model.Page) { pages <- p })

	if err := s.Start(context.Background(), "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectPage(t, pages, 3)
	if s.Pager().Cursor() != 3 {
		t.Errorf("expected cursor 3, got %d", s.Pager().Cursor())
	}
}

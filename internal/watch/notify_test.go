package watch

import (
	"testing"
	"time"
)

func TestNotifierPreservesOrder(t *testing.T) {
	t.Parallel()

	var n notifier[int]
	got := make(chan int, 100)
	n.add(func(v int) { got <- v })

	for i := range 100 {
		n.publish(i)
	}
	for want := range 100 {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("expected %d, got %d", want, v)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}
}

func TestNotifierClose(t *testing.T) {
	t.Parallel()

	var n notifier[string]
	got := make(chan string, 1)
	n.add(func(v string) { got <- v })
	n.close()
	n.publish("late")
	n.add(func(v string) { got <- v })

	select {
	case v := <-got:
		t.Errorf("expected nothing after close, got %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestNotifierAddDuringDelivery tests that a listener registered while a value
// is being delivered only sees later values.
func TestNotifierAddDuringDelivery(t *testing.T) {
	t.Parallel()

	var n notifier[int]
	late := make(chan int, 4)
	first := make(chan int, 4)
	n.add(func(v int) {
		first <- v
		if v == 1 {
			n.add(func(v int) { late <- v })
		}
	})

	n.publish(1)
	n.publish(2)

	for _, want := range []int{1, 2} {
		select {
		case v := <-first:
			if v != want {
				t.Fatalf("expected %d, got %d", want, v)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}
	select {
	case v := <-late:
		if v != 2 {
			t.Errorf("expected late listener to receive 2, got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for late listener")
	}
	select {
	case v := <-late:
		t.Errorf("expected a single value for late listener, got extra %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

package debounce_test

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/thaitruongdao01-afk/saintpaul/internal/testutil/clock"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/debounce"
)

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestDebouncer_CoalescesRapidChanges(t *testing.T) {
	fake := clock.NewFake()
	rec := &recorder{}
	d := debounce.New(500*time.Millisecond, "", rec.record, debounce.WithClock(fake))

	for _, term := range []string{"m", "ma", "mar", "mari", "maria"} {
		d.Set(term)
		fake.Advance(200 * time.Millisecond)
	}
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no emission while typing, got %v", got)
	}
	if d.Value() != "" {
		t.Fatalf("effective value should not move yet, got %q", d.Value())
	}

	fake.Advance(300 * time.Millisecond)
	got := rec.snapshot()
	if len(got) != 1 || got[0] != "maria" {
		t.Fatalf("expected single emission of final term, got %v", got)
	}
	if d.Value() != "maria" {
		t.Fatalf("expected effective value maria, got %q", d.Value())
	}
}

func TestDebouncer_SpacedChangesAreEachObserved(t *testing.T) {
	fake := clock.NewFake()
	rec := &recorder{}
	d := debounce.New(100*time.Millisecond, "", rec.record, debounce.WithClock(fake))

	d.Set("a")
	fake.Advance(150 * time.Millisecond)
	d.Set("b")
	fake.Advance(150 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestDebouncer_UnchangedValueIsNotEmitted(t *testing.T) {
	fake := clock.NewFake()
	rec := &recorder{}
	d := debounce.New(100*time.Millisecond, "same", rec.record, debounce.WithClock(fake))

	d.Set("other")
	d.Set("same")
	fake.Advance(time.Second)

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no emission when effective value is unchanged, got %v", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	fake := clock.NewFake()
	rec := &recorder{}
	d := debounce.New(100*time.Millisecond, "", rec.record, debounce.WithClock(fake))

	d.Set("x")
	d.Stop()
	fake.Advance(time.Second)
	d.Set("y")
	fake.Advance(time.Second)

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no emission after stop, got %v", got)
	}
	if fake.Pending() != 0 {
		t.Fatalf("expected no live timers, got %d", fake.Pending())
	}
}

func TestDebouncer_FlushSettlesImmediately(t *testing.T) {
	fake := clock.NewFake()
	rec := &recorder{}
	d := debounce.New(time.Second, "", rec.record, debounce.WithClock(fake))

	d.Set("sr. maria")
	d.Flush()
	if d.Value() != "sr. maria" {
		t.Fatalf("expected flushed value, got %q", d.Value())
	}
	fake.Advance(2 * time.Second)

	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly one emission, got %v", got)
	}
	if _, ok := d.Pending(); ok {
		t.Fatal("expected nothing pending after flush")
	}
}

func TestDebouncer_NegativeDelayUsesDefault(t *testing.T) {
	fake := clock.NewFake()
	rec := &recorder{}
	d := debounce.New(-1, "", rec.record, debounce.WithClock(fake))

	d.Set("v")
	fake.Advance(debounce.DefaultDelay - time.Millisecond)
	if len(rec.snapshot()) != 0 {
		t.Fatal("emitted before default delay")
	}
	fake.Advance(time.Millisecond)
	if len(rec.snapshot()) != 1 {
		t.Fatal("expected emission at default delay")
	}
}

func TestDebouncer_RealClockTearsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	done := make(chan string, 1)
	d := debounce.New(10*time.Millisecond, "", func(v string) { done <- v })
	d.Set("first")

	select {
	case v := <-done:
		if v != "first" {
			t.Fatalf("unexpected value %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for real clock emission")
	}

	d.Set("second")
	d.Stop()
}

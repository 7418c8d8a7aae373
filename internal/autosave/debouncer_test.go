package autosave

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

const testDelay = 20 * time.Millisecond

type recorder struct {
	mu     sync.Mutex
	writes map[string][]int
	err    error
	gate   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{writes: make(map[string][]int)}
}

func (r *recorder) flush(_ context.Context, key string, v int) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes[key] = append(r.writes[key], v)
	return nil
}

func (r *recorder) get(key string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.writes[key]...)
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func statusIs[T any](d *Debouncer[T], key string, want Status) func() bool {
	return func() bool {
		s, _ := d.Status(key)
		return s == want
	}
}

func (d *Debouncer[T]) lookup(key string) (*entry[T], bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	return e, ok
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	rec := newRecorder()
	d := New(testDelay, rec.flush)

	for i := 1; i <= 5; i++ {
		if err := d.Schedule("s1", i); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	if s, _ := d.Status("s1"); s != StatusPending {
		t.Errorf("expected pending, got %s", s)
	}

	waitFor(t, "saved status", statusIs(d, "s1", StatusSaved))
	if got := rec.get("s1"); !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("expected only the latest draft to be written, got %v", got)
	}
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	rec := newRecorder()
	d := New(testDelay, rec.flush)

	_ = d.Schedule("a", 1)
	_ = d.Schedule("b", 2)

	waitFor(t, "both keys flushed", func() bool {
		return len(rec.get("a")) == 1 && len(rec.get("b")) == 1
	})
	if rec.get("a")[0] != 1 || rec.get("b")[0] != 2 {
		t.Errorf("unexpected writes a=%v b=%v", rec.get("a"), rec.get("b"))
	}
}

func TestDebouncer_StatusIdleForUnknownKey(t *testing.T) {
	d := New(testDelay, newRecorder().flush)

	status, err := d.Status("missing")
	if status != StatusIdle || err != nil {
		t.Errorf("expected idle with no error, got %s, %v", status, err)
	}
	if _, ok := d.Pending("missing"); ok {
		t.Error("expected no pending draft")
	}
}

func TestDebouncer_FlushError(t *testing.T) {
	rec := newRecorder()
	rec.err = errors.New("db down")
	d := New(testDelay, rec.flush)

	_ = d.Schedule("s1", 1)

	waitFor(t, "error status", statusIs(d, "s1", StatusError))
	if _, err := d.Status("s1"); err == nil || err.Error() != "db down" {
		t.Errorf("expected db down, got %v", err)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	rec := newRecorder()
	d := New(testDelay, rec.flush)

	_ = d.Schedule("s1", 1)
	d.Cancel("s1")

	time.Sleep(3 * testDelay)
	if got := rec.get("s1"); len(got) != 0 {
		t.Errorf("expected no writes, got %v", got)
	}
	if s, _ := d.Status("s1"); s != StatusIdle {
		t.Errorf("expected idle, got %s", s)
	}
}

func TestDebouncer_CancelStopsFiredTimer(t *testing.T) {
	rec := newRecorder()
	rec.gate = make(chan struct{})
	d := New(testDelay, rec.flush)

	// The first flush blocks while holding the key's save lock.
	_ = d.Schedule("s1", 1)
	waitFor(t, "first flush to start", statusIs(d, "s1", StatusSaving))

	// The second timer fires and queues behind the blocked flush.
	_ = d.Schedule("s1", 2)
	time.Sleep(3 * testDelay)

	d.Cancel("s1")
	close(rec.gate)
	time.Sleep(3 * testDelay)

	if got := rec.get("s1"); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("expected the cancelled draft to be dropped, got %v", got)
	}
}

func TestDebouncer_ReleasesFlushedDraft(t *testing.T) {
	rec := newRecorder()
	d := New(testDelay, rec.flush, WithRetention(testDelay))

	_ = d.Schedule("s1", 42)
	waitFor(t, "saved status", statusIs(d, "s1", StatusSaved))

	if e, ok := d.lookup("s1"); ok {
		d.mu.Lock()
		draft := e.draft
		d.mu.Unlock()
		if draft != 0 {
			t.Errorf("expected draft to be released after flush, still holds %d", draft)
		}
	}

	waitFor(t, "entry eviction", func() bool {
		_, ok := d.lookup("s1")
		return !ok
	})
	if s, _ := d.Status("s1"); s != StatusIdle {
		t.Errorf("expected idle after eviction, got %s", s)
	}
}

func TestDebouncer_RescheduleKeepsEntry(t *testing.T) {
	rec := newRecorder()
	d := New(testDelay, rec.flush, WithRetention(testDelay))

	_ = d.Schedule("s1", 1)
	waitFor(t, "saved status", statusIs(d, "s1", StatusSaved))
	_ = d.Schedule("s1", 2)

	waitFor(t, "second write", func() bool { return len(rec.get("s1")) == 2 })
	if got := rec.get("s1"); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("expected both drafts written in order, got %v", got)
	}
}

func TestDebouncer_CloseFlushesPending(t *testing.T) {
	rec := newRecorder()
	d := New(time.Hour, rec.flush)

	_ = d.Schedule("s1", 7)
	draft, ok := d.Pending("s1")
	if !ok || draft != 7 {
		t.Fatalf("expected pending draft 7, got %d, %v", draft, ok)
	}

	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := rec.get("s1"); !reflect.DeepEqual(got, []int{7}) {
		t.Errorf("expected draft flushed on close, got %v", got)
	}
	if err := d.Schedule("s1", 8); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDebouncer_Defaults(t *testing.T) {
	d := New(0, newRecorder().flush, WithRetention(-1))

	if d.delay != DefaultDelay {
		t.Errorf("expected default delay, got %v", d.delay)
	}
	if d.retention != DefaultRetention {
		t.Errorf("expected default retention, got %v", d.retention)
	}
}

// Package autosave buffers rapid successive writes and persists only the
// latest value once the writer has been quiet for a configured delay.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"settleup/internal/logger"
)

// DefaultDelay is the quiet period used when none is configured.
const DefaultDelay = time.Second

// DefaultRetention is how long a finished key keeps reporting its status
// before it is forgotten.
const DefaultRetention = time.Minute

// Status is the save state of a single key.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
)

// ErrClosed is returned by Schedule after Close has been called.
var ErrClosed = errors.New("autosave: debouncer closed")

// FlushFunc persists the latest value scheduled for key.
type FlushFunc[T any] func(ctx context.Context, key string, value T) error

type entry[T any] struct {
	// saveMu serializes flushes of one key so an older draft can never
	// overwrite a newer one.
	saveMu sync.Mutex

	timer   *time.Timer
	draft   T
	pending bool
	seq     uint64
	status  Status
	err     error
}

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	retention time.Duration
}

// WithRetention sets how long a flushed key keeps its saved or error status.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retention = d
		}
	}
}

// Debouncer is a trailing-edge debouncer keyed by string. Each Schedule call
// replaces the pending value for its key and restarts that key's timer.
// Once a key is flushed its draft is released, and the key itself is
// dropped after the retention period.
type Debouncer[T any] struct {
	delay     time.Duration
	retention time.Duration
	flush     FlushFunc[T]

	mu      sync.Mutex
	entries map[string]*entry[T]
	closed  bool
}

// New creates a debouncer that calls flush after delay of inactivity per key.
func New[T any](delay time.Duration, flush FlushFunc[T], opts ...Option) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	o := options{retention: DefaultRetention}
	for _, opt := range opts {
		opt(&o)
	}
	return &Debouncer[T]{
		delay:     delay,
		retention: o.retention,
		flush:     flush,
		entries:   make(map[string]*entry[T]),
	}
}

// Schedule queues value as the latest draft for key.
func (d *Debouncer[T]) Schedule(key string, value T) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	e, ok := d.entries[key]
	if !ok {
		e = &entry[T]{}
		d.entries[key] = e
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.draft = value
	e.pending = true
	e.seq++
	e.status = StatusPending
	e.err = nil

	seq := e.seq
	e.timer = time.AfterFunc(d.delay, func() {
		d.fire(context.Background(), key, seq)
	})
	return nil
}

// Status reports the save state of key and the last flush error, if any.
func (d *Debouncer[T]) Status(key string) (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok {
		return StatusIdle, nil
	}
	return e.status, e.err
}

// Pending returns the draft waiting to be flushed for key.
func (d *Debouncer[T]) Pending(key string) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	e, ok := d.entries[key]
	if !ok || !e.pending {
		return zero, false
	}
	return e.draft, true
}

// Cancel drops any pending draft for key without flushing it.
func (d *Debouncer[T]) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		// A timer that already fired may be waiting on saveMu with this entry.
		var zero T
		e.draft = zero
		e.pending = false
		e.seq++
		delete(d.entries, key)
	}
}

// Close stops accepting drafts and flushes every pending one with ctx.
func (d *Debouncer[T]) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	type job struct {
		key string
		seq uint64
	}
	var jobs []job
	for key, e := range d.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		if e.pending {
			jobs = append(jobs, job{key: key, seq: e.seq})
		}
	}
	d.mu.Unlock()

	var errs []error
	for _, j := range jobs {
		if err := d.fire(ctx, j.key, j.seq); err != nil {
			errs = append(errs, err)
		}
	}

	// Wait for flushes started by timers before Close.
	d.mu.Lock()
	entries := make([]*entry[T], 0, len(d.entries))
	for _, e := range d.entries {
		entries = append(entries, e)
	}
	d.mu.Unlock()
	for _, e := range entries {
		e.saveMu.Lock()
		e.saveMu.Unlock()
	}

	return errors.Join(errs...)
}

func (d *Debouncer[T]) fire(ctx context.Context, key string, seq uint64) error {
	d.mu.Lock()
	e, ok := d.entries[key]
	d.mu.Unlock()
	if !ok {
		return nil
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	d.mu.Lock()
	if e.seq != seq || !e.pending {
		d.mu.Unlock()
		return nil
	}
	value := e.draft
	e.pending = false
	e.status = StatusSaving
	d.mu.Unlock()

	err := d.flush(ctx, key, value)

	d.mu.Lock()
	// A newer draft scheduled while saving keeps the key pending.
	if e.seq == seq {
		var zero T
		e.draft = zero
		if err != nil {
			e.status = StatusError
			e.err = err
		} else {
			e.status = StatusSaved
		}
		if !d.closed {
			e.timer = time.AfterFunc(d.retention, func() {
				d.evict(key, e, seq)
			})
		}
	}
	d.mu.Unlock()

	if err != nil {
		logger.Named("autosave").Errorw("flush failed", "key", key, "error", err)
	}
	return err
}

// evict forgets key if nothing was scheduled for it since the flush of seq.
func (d *Debouncer[T]) evict(key string, e *entry[T], seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entries[key] == e && e.seq == seq && !e.pending {
		delete(d.entries, key)
	}
}


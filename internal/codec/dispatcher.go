package codec

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/sbutler/safer-illinois-app/internal/history"
)

// queueSize is the buffer size of the job queue.
const queueSize = 256

// ErrDispatcherClosed is returned when work is submitted after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher runs CPU-bound crypto work on a fixed set of worker goroutines.
type Dispatcher struct {
	jobs chan func()
	wg   conc.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines. Values below 1 start one.
func NewDispatcher(workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{jobs: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		d.wg.Go(d.worker)
	}
	return d
}

func (d *Dispatcher) worker() {
	for job := range d.jobs {
		job()
	}
}

// Submit queues fn, blocking while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, fn func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued jobs to finish. A panic in
// a job is re-raised here.
//
// Close is safe to call multiple times.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

// Go runs fn on d and returns a channel that receives its result once.
func Go[T any](ctx context.Context, d *Dispatcher, fn func() T) (<-chan T, error) {
	out := make(chan T, 1)
	if err := d.Submit(ctx, func() { out <- fn() }); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenHistory decrypts records in parallel on d. The result keeps record
// order; a record that fails to open yields an entry without payload and a
// non-nil error at the same index. It returns early only if ctx ends or d
// is closed.
func (d *Dispatcher) OpenHistory(ctx context.Context, c Cipher, priv *rsa.PrivateKey, records []HistoryRecord) ([]*history.Entry, []error, error) {
	entries := make([]*history.Entry, len(records))
	errs := make([]error, len(records))

	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		err := d.Submit(ctx, func() {
			defer wg.Done()
			entries[i], errs[i] = OpenEntry(c, priv, records[i])
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, nil, err
		}
	}
	wg.Wait()
	return entries, errs, nil
}

// OpenHistory decrypts records sequentially with the same per-record
// semantics as Dispatcher.OpenHistory.
func OpenHistory(c Cipher, priv *rsa.PrivateKey, records []HistoryRecord) ([]*history.Entry, []error) {
	entries := make([]*history.Entry, len(records))
	errs := make([]error, len(records))
	for i := range records {
		entries[i], errs[i] = OpenEntry(c, priv, records[i])
	}
	return entries, errs
}

package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

//Queue executes command buffers one after another on a single executor
//goroutine. Submit only blocks when Depth command buffers are already waiting.
//A failing kernel marks the queue lost: later kernels and transfers are
//skipped, host callbacks still run so waiters are released.
type Queue struct {
	dev  *Device
	work chan *CommandBuffer
	done chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error

	executed atomic.Uint64
}

func newQueue(d *Device, depth int) *Queue {
	q := &Queue{
		dev:  d,
		work: make(chan *CommandBuffer, depth),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for cb := range q.work {
		q.execute(cb)
		q.executed.Add(1)
	}
}

func (q *Queue) execute(cb *CommandBuffer) {
	for _, c := range cb.cmds {
		if c.kind != kindHost && q.Err() != nil {
			continue
		}
		if err := q.runCommand(c); err != nil {
			q.fail(fmt.Errorf("device: %s: %s: %w", cb.label, c.label, err))
		}
	}
}

func (q *Queue) runCommand(c command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.run(q.dev.workers)
}

func (q *Queue) fail(err error) {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	if q.err == nil {
		q.err = err
		Logger.Printf("queue lost: %v", err)
	}
}

//Err returns the first execution failure, nil while the queue is healthy
func (q *Queue) Err() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	return q.err
}

//Executed counts the command buffers completed so far
func (q *Queue) Executed() uint64 {
	return q.executed.Load()
}

//Submit enqueues command buffers in order without waiting for them
func (q *Queue) Submit(cbs ...*CommandBuffer) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	for _, cb := range cbs {
		q.work <- cb
	}
	return nil
}

//WaitIdle blocks until everything submitted before the call has executed
func (q *Queue) WaitIdle(ctx context.Context) error {
	_, err := q.roundTrip(ctx, "wait idle", func() interface{} { return nil })
	if err != nil {
		return err
	}
	return q.Err()
}

//ReadF32 copies an f32 buffer back to the host after pending work completes
func (q *Queue) ReadF32(ctx context.Context, b *Buffer) ([]float32, error) {
	if b.kind != F32 {
		return nil, fmt.Errorf("device: read %q as f32: %w", b.label, ErrMismatch)
	}
	v, err := q.roundTrip(ctx, "read "+b.label, func() interface{} {
		if b.released.Load() {
			return nil
		}
		out := make([]float32, b.length)
		copy(out, b.f32)
		return out
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("device: read %q: %w", b.label, ErrReleased)
	}
	return v.([]float32), nil
}

//ReadU32 copies a u32 buffer back to the host after pending work completes
func (q *Queue) ReadU32(ctx context.Context, b *Buffer) ([]uint32, error) {
	if b.kind != U32 {
		return nil, fmt.Errorf("device: read %q as u32: %w", b.label, ErrMismatch)
	}
	v, err := q.roundTrip(ctx, "read "+b.label, func() interface{} {
		if b.released.Load() {
			return nil
		}
		out := make([]uint32, b.length)
		copy(out, b.u32)
		return out
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("device: read %q: %w", b.label, ErrReleased)
	}
	return v.([]uint32), nil
}

//WriteF32 uploads data into b. The data is staged immediately and lands in
//stream order, so the caller may reuse the slice once WriteF32 returns.
func (q *Queue) WriteF32(b *Buffer, data []float32) error {
	if b.kind != F32 || len(data) != b.length {
		return fmt.Errorf("device: write %d f32 into %q (%s x %d): %w", len(data), b.label, b.kind, b.length, ErrMismatch)
	}
	staged := make([]float32, len(data))
	copy(staged, data)
	return q.Submit(&CommandBuffer{label: "write " + b.label, cmds: []command{{
		label: "write " + b.label,
		kind:  kindTransfer,
		run: func(int) error {
			if b.released.Load() {
				return ErrReleased
			}
			copy(b.f32, staged)
			return nil
		},
	}}})
}

//WriteU32 is WriteF32 for u32 buffers
func (q *Queue) WriteU32(b *Buffer, data []uint32) error {
	if b.kind != U32 || len(data) != b.length {
		return fmt.Errorf("device: write %d u32 into %q (%s x %d): %w", len(data), b.label, b.kind, b.length, ErrMismatch)
	}
	staged := make([]uint32, len(data))
	copy(staged, data)
	return q.Submit(&CommandBuffer{label: "write " + b.label, cmds: []command{{
		label: "write " + b.label,
		kind:  kindTransfer,
		run: func(int) error {
			if b.released.Load() {
				return ErrReleased
			}
			copy(b.u32, staged)
			return nil
		},
	}}})
}

func (q *Queue) roundTrip(ctx context.Context, label string, fn func() interface{}) (interface{}, error) {
	result := make(chan interface{}, 1)
	cb := &CommandBuffer{label: label, cmds: []command{{
		label: label,
		kind:  kindHost,
		run: func(int) error {
			result <- fn()
			return nil
		},
	}}}
	if err := q.Submit(cb); err != nil {
		return nil, err
	}
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()
	<-q.done
}

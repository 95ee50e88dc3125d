//Package device is the compute device the simulation runs on. It mirrors the
//shape of a GPU compute API: typed buffers, command encoders, pipelines that
//are dispatched over N invocations, and a single in-order queue. Kernels fan
//out over a goroutine pool.
package device

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"
)

var (
	//ErrOutOfMemory is returned when an allocation exceeds the device budget
	ErrOutOfMemory = errors.New("device out of memory")
	//ErrMismatch is returned when buffer kinds or lengths do not line up
	ErrMismatch = errors.New("buffer mismatch")
	//ErrReleased is returned when a released buffer is used
	ErrReleased = errors.New("buffer released")
	//ErrClosed is returned by a queue after Close
	ErrClosed = errors.New("device closed")
)

//Logger receives device lifecycle messages. Replace with SetOutput to silence.
var Logger = log.New(os.Stderr, "[device] ", log.LstdFlags)

//SetOutput redirects the package logger
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	Logger.SetOutput(w)
}

//Options describe the device limits. Zero values select defaults.
type Options struct {
	Workers  int   //Goroutines per dispatch (default runtime.NumCPU)
	MaxBytes int64 //Allocation budget in bytes (0 = unlimited)
	Depth    int   //Queue depth in command buffers (default 16)
}

//Device owns buffer memory accounting and the queue
type Device struct {
	workers  int
	maxBytes int64

	mu   sync.Mutex
	used int64

	queue *Queue
}

//New creates a device and starts its queue executor
func New(opts Options) *Device {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Depth <= 0 {
		opts.Depth = 16
	}
	d := &Device{workers: opts.Workers, maxBytes: opts.MaxBytes}
	d.queue = newQueue(d, opts.Depth)
	budget := "unlimited"
	if d.maxBytes > 0 {
		budget = formatBytes(d.maxBytes)
	}
	Logger.Printf("device ready: %d workers, budget %s", d.workers, budget)
	return d
}

func (d *Device) Workers() int  { return d.workers }
func (d *Device) Queue() *Queue { return d.queue }

//Used returns the number of bytes currently allocated
func (d *Device) Used() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

//CreateBuffer allocates a zeroed buffer of length elements
func (d *Device) CreateBuffer(label string, kind Kind, length int) (*Buffer, error) {
	if length <= 0 {
		return nil, fmt.Errorf("device: buffer %q: invalid length %d", label, length)
	}
	size := int64(length) * elementBytes

	d.mu.Lock()
	if d.maxBytes > 0 && d.used+size > d.maxBytes {
		used := d.used
		d.mu.Unlock()
		return nil, fmt.Errorf("device: buffer %q needs %s with %s of %s in use: %w",
			label, formatBytes(size), formatBytes(used), formatBytes(d.maxBytes), ErrOutOfMemory)
	}
	d.used += size
	d.mu.Unlock()

	return newBuffer(label, kind, length), nil
}

//Release returns the buffer memory to the budget. Releasing twice is a no-op.
func (d *Device) Release(b *Buffer) {
	if b == nil {
		return
	}
	if b.released.Swap(true) {
		return
	}
	d.mu.Lock()
	d.used -= b.Size()
	d.mu.Unlock()
}

//Close drains the queue and stops the executor
func (d *Device) Close() {
	d.queue.close()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%dB", n)
}

package device

import (
	"fmt"
	"sync"

	"github.com/dgravesa/go-parallel/parallel"
)

//Below this many invocations a dispatch runs on the executor goroutine
const serialCutoff = 256

//Kernel is the body of a data-parallel pass, invoked once per index
type Kernel func(i int)

//Pipeline is a labelled kernel ready for dispatch
type Pipeline struct {
	label  string
	kernel Kernel
}

func NewPipeline(label string, k Kernel) *Pipeline {
	return &Pipeline{label: label, kernel: k}
}

func (p *Pipeline) Label() string { return p.label }

type commandKind int

const (
	kindKernel commandKind = iota
	kindTransfer
	kindHost
)

type command struct {
	label string
	kind  commandKind
	run   func(workers int) error
}

//CommandBuffer is an immutable recorded command list
type CommandBuffer struct {
	label string
	cmds  []command
}

func (cb *CommandBuffer) Label() string { return cb.label }
func (cb *CommandBuffer) Len() int      { return len(cb.cmds) }

//Labels lists the recorded commands in execution order
func (cb *CommandBuffer) Labels() []string {
	out := make([]string, len(cb.cmds))
	for i, c := range cb.cmds {
		out[i] = c.label
	}
	return out
}

//Encoder records commands. Nothing executes until the finished buffer is
//submitted to the queue.
type Encoder struct {
	label    string
	cmds     []command
	finished bool
}

func (d *Device) NewEncoder(label string) *Encoder {
	return &Encoder{label: label}
}

func (e *Encoder) push(c command) {
	if e.finished {
		panic(fmt.Sprintf("device: encoder %q used after Finish", e.label))
	}
	e.cmds = append(e.cmds, c)
}

//ClearBuffer zeroes every element of b
func (e *Encoder) ClearBuffer(b *Buffer) {
	e.push(command{label: "clear " + b.label, kind: kindTransfer, run: func(int) error {
		if b.released.Load() {
			return fmt.Errorf("clear %q: %w", b.label, ErrReleased)
		}
		b.clear()
		return nil
	}})
}

//CopyBuffer copies src into dst. Kinds and lengths must match.
func (e *Encoder) CopyBuffer(src, dst *Buffer) {
	e.push(command{label: "copy " + src.label + " -> " + dst.label, kind: kindTransfer, run: func(int) error {
		if src.released.Load() || dst.released.Load() {
			return fmt.Errorf("copy %q -> %q: %w", src.label, dst.label, ErrReleased)
		}
		return dst.copyFrom(src)
	}})
}

//Dispatch runs p for every index in [0, n)
func (e *Encoder) Dispatch(p *Pipeline, n int) {
	e.push(command{label: p.label, kind: kindKernel, run: func(workers int) error {
		return dispatch(workers, n, p.kernel)
	}})
}

//Host runs fn on the executor goroutine in stream order
func (e *Encoder) Host(label string, fn func()) {
	e.push(command{label: label, kind: kindHost, run: func(int) error {
		fn()
		return nil
	}})
}

func (e *Encoder) Finish() *CommandBuffer {
	e.finished = true
	return &CommandBuffer{label: e.label, cmds: e.cmds}
}

func dispatch(workers, n int, k Kernel) error {
	if n <= 0 {
		return nil
	}
	if workers <= 1 || n < serialCutoff {
		return serial(n, k)
	}

	var once sync.Once
	var fault error
	parallel.WithNumGoroutines(workers).For(n, func(i int) {
		defer func() {
			if r := recover(); r != nil {
				once.Do(func() { fault = fmt.Errorf("invocation %d: %v", i, r) })
			}
		}()
		k(i)
	})
	return fault
}

func serial(n int, k Kernel) (err error) {
	i := 0
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invocation %d: %v", i, r)
		}
	}()
	for ; i < n; i++ {
		k(i)
	}
	return nil
}

package device

import (
	"fmt"
	"sync/atomic"
)

//Kind is the element type of a device buffer. Every element is 4 bytes wide.
type Kind int

const (
	F32 Kind = iota
	U32
)

const elementBytes = 4

func (k Kind) String() string {
	switch k {
	case F32:
		return "f32"
	case U32:
		return "u32"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

//Buffer is a fixed length block of device memory. Kernels index the raw slice
//views directly; host code reads and writes through the Queue so that transfers
//are ordered with respect to submitted work.
type Buffer struct {
	label    string
	kind     Kind
	length   int
	f32      []float32
	u32      []uint32
	released atomic.Bool
}

func newBuffer(label string, kind Kind, length int) *Buffer {
	b := &Buffer{label: label, kind: kind, length: length}
	switch kind {
	case F32:
		b.f32 = make([]float32, length)
	case U32:
		b.u32 = make([]uint32, length)
	}
	return b
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Kind() Kind    { return b.kind }
func (b *Buffer) Len() int      { return b.length }

//Size in bytes
func (b *Buffer) Size() int64 { return int64(b.length) * elementBytes }

//F32 kernel view. Panics when the buffer holds u32 elements.
func (b *Buffer) F32() []float32 {
	if b.kind != F32 {
		panic(fmt.Sprintf("device: buffer %q is %s, not f32", b.label, b.kind))
	}
	return b.f32
}

//U32 kernel view. Panics when the buffer holds f32 elements.
func (b *Buffer) U32() []uint32 {
	if b.kind != U32 {
		panic(fmt.Sprintf("device: buffer %q is %s, not u32", b.label, b.kind))
	}
	return b.u32
}

//AtomicAdd is fetch-and-add on element i and returns the value before the add.
func (b *Buffer) AtomicAdd(i int, delta uint32) uint32 {
	return atomic.AddUint32(&b.U32()[i], delta) - delta
}

//AtomicLoad reads element i with acquire semantics
func (b *Buffer) AtomicLoad(i int) uint32 {
	return atomic.LoadUint32(&b.U32()[i])
}

func (b *Buffer) clear() {
	switch b.kind {
	case F32:
		for i := range b.f32 {
			b.f32[i] = 0
		}
	case U32:
		for i := range b.u32 {
			b.u32[i] = 0
		}
	}
}

func (b *Buffer) copyFrom(src *Buffer) error {
	if src.kind != b.kind || src.length != b.length {
		return fmt.Errorf("device: copy %q (%s x %d) -> %q (%s x %d): %w",
			src.label, src.kind, src.length, b.label, b.kind, b.length, ErrMismatch)
	}
	switch b.kind {
	case F32:
		copy(b.f32, src.f32)
	case U32:
		copy(b.u32, src.u32)
	}
	return nil
}

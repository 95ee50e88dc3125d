package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateGroupAtomic(t *testing.T) {
	d := New(Options{MaxBytes: 100})
	defer d.Close()

	_, err := d.AllocateGroup("big", []BufferSpec{
		{Role: "a", Kind: F32, Len: 10},
		{Role: "b", Kind: F32, Len: 10},
		{Role: "c", Kind: U32, Len: 10},
	})
	assert.True(t, errors.Is(err, ErrOutOfMemory))
	assert.Equal(t, int64(0), d.Used(), "partial group is released")

	_, err = d.AllocateGroup("dup", []BufferSpec{
		{Role: "a", Kind: F32, Len: 1},
		{Role: "a", Kind: F32, Len: 1},
	})
	assert.Error(t, err)
	assert.Equal(t, int64(0), d.Used())
}

func TestRegistry(t *testing.T) {
	d := New(Options{})
	defer d.Close()

	r, err := d.AllocateGroup("g", []BufferSpec{
		{Role: "pos", Kind: F32, Len: 4},
		{Role: "pos_sorted", Kind: F32, Len: 4},
		{Role: "count", Kind: U32, Len: 2, Scratch: true},
		{Role: "cursor", Kind: U32, Len: 2, Scratch: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(48), r.Bytes())
	assert.Equal(t, []Role{"pos", "pos_sorted", "count", "cursor"}, r.Roles())
	assert.Equal(t, []Role{"count", "cursor"}, r.Scratch())

	pos, sorted := r.Resolve("pos"), r.Resolve("pos_sorted")
	require.NoError(t, r.Exchange("pos", "pos_sorted"))
	assert.Same(t, sorted, r.Resolve("pos"))
	assert.Same(t, pos, r.Resolve("pos_sorted"))

	assert.True(t, errors.Is(r.Exchange("pos", "count"), ErrMismatch))
	assert.Error(t, r.Exchange("pos", "missing"))
	assert.Panics(t, func() { r.Resolve("missing") })

	s, ok := r.Spec("count")
	assert.True(t, ok)
	assert.True(t, s.Scratch)

	r.Release()
	assert.Equal(t, int64(0), d.Used())
	_, ok = r.Lookup("pos")
	assert.False(t, ok)
}

package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"diesel.com/gridsph/vector"
)

//Intuitive Geometry Coordinate Tests
func TestBox(t *testing.T) {
	b := Box(32, 4, 16, vector.Vec32{})
	assert.Equal(t, vector.Vec32{-16, -2, -8}, b.Min)
	assert.Equal(t, vector.Vec32{16, 2, 8}, b.Max)
	assert.Equal(t, vector.Vec32{32, 4, 16}, b.Size())
	assert.Equal(t, vector.Vec32{}, b.Center())

	assert.True(t, b.Contains(vector.Vec32{16, 2, 8}, 0))
	assert.False(t, b.Contains(vector.Vec32{16.5, 0, 0}, 0))
	assert.True(t, b.Contains(vector.Vec32{16.5, 0, 0}, 1))

	p, hit := b.Clamp(vector.Vec32{20, 0, -9})
	assert.Equal(t, vector.Vec32{16, 0, -8}, p)
	assert.Equal(t, uint8(0x5), hit)

	p, hit = b.Clamp(vector.Vec32{1, 1, 1})
	assert.Equal(t, vector.Vec32{1, 1, 1}, p)
	assert.Zero(t, hit)
}

func TestWireBox(t *testing.T) {
	b := Box(2, 2, 2, vector.Vec32{1, 0, 0})
	verts, idx := b.WireBox()
	assert.Len(t, verts, 32)
	assert.Len(t, idx, 24)

	//Every edge joins corners that differ along exactly one axis
	corners := b.Corners()
	for i := 0; i < len(idx); i += 2 {
		d := vector.Sub(corners[idx[i]], corners[idx[i+1]])
		axes := 0
		for a := 0; a < 3; a++ {
			if d[a] != 0 {
				axes++
			}
		}
		assert.Equal(t, 1, axes, "edge %d", i/2)
	}
	for i := 3; i < len(verts); i += 4 {
		assert.Equal(t, float32(1), verts[i])
	}
}

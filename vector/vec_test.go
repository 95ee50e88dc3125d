package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

//Vector module testing
func TestVecAdd(t *testing.T) {
	var x = Vec32{1.0, 1.0, 1.0}

	assert.Equal(t, Vec32{3, 3, 3}, *x.AddScaled(Vec32{1, 1, 1}, 2))
	assert.Equal(t, Vec32{4, 4, 4}, Add(Vec32{2, 2, 2}, Vec32{2, 2, 2}))
}

func TestVecSub(t *testing.T) {
	var x = Vec32{1, 2, 3}
	var y = Vec32{1, 1, 1}

	assert.Equal(t, Vec32{2, 3, 4}, Add(x, y))
	assert.Equal(t, Vec32{0, 1, 2}, Sub(x, y))
}

func TestVector(t *testing.T) {
	a := Vec32{2, 2, 2}

	assert.Equal(t, Vec32{4, 4, 4}, Scale(a, 2.0))
	assert.Equal(t, float32(math.Sqrt(12)), Length(a))
	assert.Equal(t, float32(12), LengthSq(a))

	v := Vec32{1, 0, 0}
	v.AddScaled(Vec32{0, 2, 0}, 0.5)
	assert.Equal(t, Vec32{1, 1, 0}, v)
	assert.Equal(t, float32(1), Length(Sub(v, Vec32{1, 0, 0})))
}

func TestLanes(t *testing.T) {
	buf := make([]float32, 3*Lanes)
	for i := range buf {
		buf[i] = -1
	}
	Store(buf, 1, Vec32{1, 2, 3})

	assert.Equal(t, Vec32{1, 2, 3}, Load(buf, 1))
	assert.Equal(t, float32(0), buf[1*Lanes+3], "pad lane is zeroed")
	assert.Equal(t, Vec32{-1, -1, -1}, Load(buf, 2))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(Vec32{1, 2, 3}))
	assert.False(t, IsFinite(Vec32{float32(math.NaN()), 0, 0}))
	assert.False(t, IsFinite(Vec32{0, float32(math.Inf(1)), 0}))
}

func BenchmarkVecOp(b *testing.B) {
	p := Vec32{1, -1, 0}
	o := Vec32{0, 1, 0}

	for i := 0; i < b.N; i++ {
		r := Add(p, o)
		r.AddScaled(o, 0.5)
		LengthSq(r)
	}
}

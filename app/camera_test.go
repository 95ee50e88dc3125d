package app

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	F "diesel.com/gridsph/fluid"
)

func TestCamera(t *testing.T) {
	cam := NewCamera(F.Box{Width: 32, Height: 4, Depth: 16})
	assert.Greater(t, cam.Distance, float32(32))
	assert.InDelta(t, cam.Distance, cam.Eye().Sub(cam.Target).Len(), 1e-3)

	//The eye maps to the view space origin
	eye := cam.View().Mul4x1(cam.Eye().Vec4(1))
	assert.InDelta(t, 0, eye.Vec3().Len(), 1e-3)

	//The target sits straight ahead, inside the clip volume
	clip := cam.Projection(16.0 / 9.0).Mul4(cam.View()).Mul4x1(cam.Target.Vec4(1))
	ndc := clip.Vec3().Mul(1 / clip.W())
	assert.InDelta(t, 0, ndc.X(), 1e-4)
	assert.InDelta(t, 0, ndc.Y(), 1e-4)
	assert.True(t, ndc.Z() > -1 && ndc.Z() < 1)

	cam.Orbit(0, 1e6)
	assert.Equal(t, float32(maxPitch), cam.Pitch)
	cam.Orbit(0, -2e6)
	assert.Equal(t, float32(-maxPitch), cam.Pitch)
	assert.False(t, mgl32.Vec3{}.ApproxEqual(cam.Eye()))

	d := cam.Distance
	cam.Zoom(1)
	assert.InDelta(t, d*ZoomStep, cam.Distance, 1e-4)
	cam.Zoom(1000)
	assert.Equal(t, cam.minDist, cam.Distance)
}

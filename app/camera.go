package app

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	F "diesel.com/gridsph/fluid"
)

type AppWindow struct {
	Width  int
	Height int
	Name   string
}

//Orbit and zoom rates per pixel of drag and per scroll step
const (
	OrbitSpeed = 0.005
	ZoomStep   = 0.9
	maxPitch   = math.Pi/2 - 0.01
)

//Camera orbits a target at a fixed distance
type Camera struct {
	Target   mgl32.Vec3
	Yaw      float32 //Radians about +y
	Pitch    float32 //Radians above the xz plane
	Distance float32
	Fovy     float32 //Degrees
	minDist  float32
}

//NewCamera frames the whole box from slightly above
func NewCamera(box F.Box) Camera {
	diag := mgl32.Vec3{box.Width, box.Height, box.Depth}.Len()
	return Camera{
		Yaw:      0.6,
		Pitch:    0.5,
		Distance: 1.2 * diag,
		Fovy:     45,
		minDist:  0.05 * diag,
	}
}

func (c *Camera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	dir := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(dir.Mul(c.Distance))
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fovy), aspect, c.Distance/100, c.Distance*10)
}

//Orbit applies a mouse drag in pixels
func (c *Camera) Orbit(dx, dy float64) {
	c.Yaw -= float32(dx * OrbitSpeed)
	c.Pitch += float32(dy * OrbitSpeed)
	if c.Pitch > maxPitch {
		c.Pitch = maxPitch
	}
	if c.Pitch < -maxPitch {
		c.Pitch = -maxPitch
	}
}

//Zoom moves toward the target for positive steps
func (c *Camera) Zoom(steps float64) {
	c.Distance *= float32(math.Pow(ZoomStep, steps))
	if c.Distance < c.minDist {
		c.Distance = c.minDist
	}
}

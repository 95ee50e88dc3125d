package vector

import (
	"fmt"
	"math"
)

//Particle state is stored in padded four lane vectors so a particle occupies
//16 bytes on the device side. The fourth lane is never read by the physics.
//Free functions are immutable, AddScaled mutates the receiver.

//Vec32 three component working vector
type Vec32 [3]float32

//Lanes per particle in a padded device buffer
const Lanes = 4

//Scale - Scales vector by scalar a
func Scale(v Vec32, a float32) Vec32 {
	return Vec32{v[0] * a, v[1] * a, v[2] * a}
}

func Add(v Vec32, b Vec32) Vec32 {
	return Vec32{v[0] + b[0], v[1] + b[1], v[2] + b[2]}
}

func Sub(v Vec32, b Vec32) Vec32 {
	return Vec32{v[0] - b[0], v[1] - b[1], v[2] - b[2]}
}

func Length(a Vec32) float32 {
	return float32(math.Sqrt(float64(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])))
}

//LengthSq avoids the sqrt for kernel support tests
func LengthSq(a Vec32) float32 {
	return a[0]*a[0] + a[1]*a[1] + a[2]*a[2]
}

//AddScaled accumulates b*a into v, the inner operation of every neighbor sum
func (v *Vec32) AddScaled(b Vec32, a float32) *Vec32 {
	v[0] += b[0] * a
	v[1] += b[1] * a
	v[2] += b[2] * a
	return v
}

//IsFinite reports false when any component is NaN or Inf
func IsFinite(v Vec32) bool {
	for i := 0; i < 3; i++ {
		f := float64(v[i])
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

//Load reads lane i of a flat padded float32 slice
func Load(buf []float32, i int) Vec32 {
	o := i * Lanes
	return Vec32{buf[o], buf[o+1], buf[o+2]}
}

//Store writes v into lane i of a flat padded float32 slice, pad is zeroed
func Store(buf []float32, i int, v Vec32) {
	o := i * Lanes
	buf[o] = v[0]
	buf[o+1] = v[1]
	buf[o+2] = v[2]
	buf[o+3] = 0
}

func (a *Vec32) String() string {
	return fmt.Sprintf("[ %f, %f, %f]", a[0], a[1], a[2])
}

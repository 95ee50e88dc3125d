package fluid

import (
	D "diesel.com/gridsph/device"
	V "diesel.com/gridsph/vector"
)

//densityStage sums m*poly6*(h^2-r^2)^3 over the neighbor walk, self included
type densityStage struct{}

func (densityStage) Name() string { return "density" }
func (densityStage) Reads() []D.Role {
	return roles(RolePosition, RoleCellStart, RoleCellCount)
}
func (densityStage) Writes() []D.Role  { return roles(RoleDensity) }
func (densityStage) Scratch() []D.Role { return nil }

func (densityStage) Encode(enc *D.Encoder, f *Frame) error {
	walk := newNeighborWalk(f)
	density := f.f32(RoleDensity)
	K := f.Settings.Kernels
	mass := f.Settings.Mass

	enc.Dispatch(D.NewPipeline("density", func(i int) {
		rho := float32(0.0)
		walk.visit(V.Load(walk.pos, i), func(_ int, _ V.Vec32, r2 float32) {
			rho += K.W(r2)
		})
		density[i] = mass * rho
	}), f.Count())
	return nil
}

//pressureStage applies the linear equation of state p = max(0, k(rho-rho0))
type pressureStage struct{}

func (pressureStage) Name() string      { return "pressure" }
func (pressureStage) Reads() []D.Role   { return roles(RoleDensity) }
func (pressureStage) Writes() []D.Role  { return roles(RolePressure) }
func (pressureStage) Scratch() []D.Role { return nil }

func (pressureStage) Encode(enc *D.Encoder, f *Frame) error {
	density := f.f32(RoleDensity)
	pressure := f.f32(RolePressure)
	k := f.Settings.PressureStiffness
	rho0 := f.Settings.RestDensity

	enc.Dispatch(D.NewPipeline("pressure", func(i int) {
		p := k * (density[i] - rho0)
		if !(p > 0) {
			p = 0
		}
		pressure[i] = p
	}), f.Count())
	return nil
}

package fluid

import (
	"math"

	D "diesel.com/gridsph/device"
	V "diesel.com/gridsph/vector"
)

//Pairs closer than this have no usable direction and are skipped
const minPairDistance = 1e-6

func floorDensity(rho float32) float32 {
	if !(rho > DensityEpsilon) {
		return DensityEpsilon
	}
	return rho
}

//pressureForceStage - symmetric spiky gradient force
//f_i = -sum m (p_i+p_j)/(2 rho_j) gradW(r) d/r with d = x_i - x_j.
//gradW is negative inside the support so the force pushes i away from j.
type pressureForceStage struct{}

func (pressureForceStage) Name() string { return "pressureforce" }
func (pressureForceStage) Reads() []D.Role {
	return roles(RolePosition, RoleDensity, RolePressure, RoleCellStart, RoleCellCount)
}
func (pressureForceStage) Writes() []D.Role  { return roles(RolePressureForce) }
func (pressureForceStage) Scratch() []D.Role { return nil }

func (pressureForceStage) Encode(enc *D.Encoder, f *Frame) error {
	walk := newNeighborWalk(f)
	density := f.f32(RoleDensity)
	pressure := f.f32(RolePressure)
	force := f.f32(RolePressureForce)
	K := f.Settings.Kernels
	mass := f.Settings.Mass

	enc.Dispatch(D.NewPipeline("pressureforce", func(i int) {
		pi := pressure[i]
		acc := V.Vec32{}
		walk.visit(V.Load(walk.pos, i), func(j int, d V.Vec32, r2 float32) {
			if j == i {
				return
			}
			r := float32(math.Sqrt(float64(r2)))
			if r < minPairDistance {
				return
			}
			s := -mass * (pi + pressure[j]) / (2 * floorDensity(density[j])) * K.GradW(r) / r
			acc.AddScaled(d, s)
		})
		V.Store(force, i, acc)
	}), f.Count())
	return nil
}

//viscosityStage - laplacian velocity diffusion scaled by mu. The same walk
//accumulates the XSPH correction used by Integrate.
type viscosityStage struct{}

func (viscosityStage) Name() string { return "viscosity" }
func (viscosityStage) Reads() []D.Role {
	return roles(RolePosition, RoleVelocity, RoleDensity, RoleCellStart, RoleCellCount)
}
func (viscosityStage) Writes() []D.Role  { return roles(RoleViscosityForce, RoleXsph) }
func (viscosityStage) Scratch() []D.Role { return nil }

func (viscosityStage) Encode(enc *D.Encoder, f *Frame) error {
	walk := newNeighborWalk(f)
	vel := f.f32(RoleVelocity)
	density := f.f32(RoleDensity)
	force := f.f32(RoleViscosityForce)
	xsph := f.f32(RoleXsph)
	K := f.Settings.Kernels
	mass := f.Settings.Mass
	mu := f.Settings.Mu

	enc.Dispatch(D.NewPipeline("viscosity", func(i int) {
		vi := V.Load(vel, i)
		rhoI := density[i]
		visc := V.Vec32{}
		corr := V.Vec32{}
		walk.visit(V.Load(walk.pos, i), func(j int, _ V.Vec32, r2 float32) {
			if j == i {
				return
			}
			r := float32(math.Sqrt(float64(r2)))
			dv := V.Sub(V.Load(vel, j), vi)
			rhoJ := density[j]
			visc.AddScaled(dv, mass/floorDensity(rhoJ)*K.LaplW(r))
			corr.AddScaled(dv, mass/floorDensity((rhoI+rhoJ)/2)*K.W(r2))
		})
		V.Store(force, i, V.Scale(visc, mu))
		V.Store(xsph, i, corr)
	}), f.Count())
	return nil
}

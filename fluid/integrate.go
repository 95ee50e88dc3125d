package fluid

import (
	D "diesel.com/gridsph/device"
	V "diesel.com/gridsph/vector"
)

//integrateStage - semi-implicit Euler followed by box collision.
//v += dt (f_p + f_v) / rho, x += dt (v + eta xsph). A particle past a wall is
//clamped onto it, its normal velocity reflected and scaled by restitution,
//and the other components damped by (1 - tangentDamping).
type integrateStage struct{}

func (integrateStage) Name() string { return "integrate" }
func (integrateStage) Reads() []D.Role {
	return roles(RolePosition, RoleVelocity, RoleDensity, RolePressureForce, RoleViscosityForce, RoleXsph)
}
func (integrateStage) Writes() []D.Role  { return roles(RolePosition, RoleVelocity) }
func (integrateStage) Scratch() []D.Role { return nil }

func (integrateStage) Encode(enc *D.Encoder, f *Frame) error {
	pos := f.f32(RolePosition)
	vel := f.f32(RoleVelocity)
	density := f.f32(RoleDensity)
	fp := f.f32(RolePressureForce)
	fv := f.f32(RoleViscosityForce)
	xsph := f.f32(RoleXsph)

	s := f.Settings
	dt := f.Dt
	bounds := s.Box.Bounds()
	eta := s.XsphEta
	restitution := s.Restitution
	keep := 1 - s.TangentDamping

	enc.Dispatch(D.NewPipeline("integrate", func(i int) {
		rho := floorDensity(density[i])
		force := V.Add(V.Load(fp, i), V.Load(fv, i))

		v := V.Load(vel, i)
		v.AddScaled(force, dt/rho)

		x := V.Load(pos, i)
		x.AddScaled(v, dt)
		x.AddScaled(V.Load(xsph, i), dt*eta)

		x, hit := bounds.Clamp(x)
		for a := 0; a < 3; a++ {
			if hit&(1<<uint(a)) == 0 {
				continue
			}
			v[a] = -v[a] * restitution
			for b := 0; b < 3; b++ {
				if b != a {
					v[b] *= keep
				}
			}
		}

		V.Store(pos, i, x)
		V.Store(vel, i, v)
	}), f.Count())
	return nil
}

package fluid

import (
	D "diesel.com/gridsph/device"
)

//gravityStage seeds the step with v.y -= g*dt
type gravityStage struct{}

func (gravityStage) Name() string      { return "gravity" }
func (gravityStage) Reads() []D.Role   { return roles(RoleVelocity) }
func (gravityStage) Writes() []D.Role  { return roles(RoleVelocity) }
func (gravityStage) Scratch() []D.Role { return nil }

func (gravityStage) Encode(enc *D.Encoder, f *Frame) error {
	vel := f.f32(RoleVelocity)
	dv := f.Settings.Gravity * f.Dt

	enc.Dispatch(D.NewPipeline("gravity", func(i int) {
		vel[i*4+1] -= dv
	}), f.Count())
	return nil
}

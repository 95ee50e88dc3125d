package fluid

import (
	"fmt"

	D "diesel.com/gridsph/device"
)

//Buffer roles. Stages name the roles they touch and resolve them against the
//registry while encoding, so the ping-pong flip is visible to every stage
//encoded after it.
const (
	RolePosition       D.Role = "position"
	RoleVelocity       D.Role = "velocity"
	RolePositionOut    D.Role = "position_out"
	RoleVelocityOut    D.Role = "velocity_out"
	RoleCellIndex      D.Role = "cell_index"
	RoleCellCount      D.Role = "cell_count"
	RoleCellStart      D.Role = "cell_start"
	RoleCellCursor     D.Role = "cell_cursor"
	RoleBlockSums      D.Role = "block_sums"
	RoleSortedID       D.Role = "sorted_id"
	RoleDensity        D.Role = "density"
	RolePressure       D.Role = "pressure"
	RolePressureForce  D.Role = "pressure_force"
	RoleViscosityForce D.Role = "viscosity_force"
	RoleXsph           D.Role = "xsph"
	RoleParams         D.Role = "sph_params"
)

//Frame is what a stage sees while it is being encoded
type Frame struct {
	Index     uint64
	Dt        float32
	Settings  *SphSettings
	Grid      GridGeometry
	Registry  *D.Registry
	Particles *ParticleBuffers
}

//Count of particles in this frame
func (f *Frame) Count() int { return f.Settings.Count }

func (f *Frame) f32(role D.Role) []float32 { return f.Registry.Resolve(role).F32() }
func (f *Frame) u32(role D.Role) []uint32  { return f.Registry.Resolve(role).U32() }

//Stage is one data-parallel pass of the frame pipeline
type Stage interface {
	Name() string
	Reads() []D.Role
	Writes() []D.Role
	//Scratch roles are zeroed by the orchestrator right before Encode
	Scratch() []D.Role
	Encode(enc *D.Encoder, f *Frame) error
}

//Roles every frame starts with
var persistentRoles = []D.Role{RolePosition, RoleVelocity, RoleParams}

//validatePlan checks that every role exists and that every read is produced
//by an earlier stage or persists across frames.
func validatePlan(stages []Stage, reg *D.Registry) error {
	ready := map[D.Role]bool{}
	for _, r := range persistentRoles {
		ready[r] = true
	}
	for _, st := range stages {
		for _, group := range [][]D.Role{st.Reads(), st.Writes(), st.Scratch()} {
			for _, r := range group {
				if _, ok := reg.Lookup(r); !ok {
					return fmt.Errorf("stage %s: role %q not allocated", st.Name(), r)
				}
			}
		}
		for _, r := range st.Scratch() {
			ready[r] = true
		}
		for _, r := range st.Reads() {
			if !ready[r] {
				return fmt.Errorf("stage %s reads %q before any stage writes it", st.Name(), r)
			}
		}
		for _, r := range st.Writes() {
			ready[r] = true
		}
	}
	return nil
}

//encodeFrame records the stages in order, clearing scratch roles first
func encodeFrame(enc *D.Encoder, stages []Stage, f *Frame) error {
	for _, st := range stages {
		for _, r := range st.Scratch() {
			enc.ClearBuffer(f.Registry.Resolve(r))
		}
		if err := st.Encode(enc, f); err != nil {
			return fmt.Errorf("encode %s: %w", st.Name(), err)
		}
	}
	return nil
}

//Pipeline returns the eleven stages in frame order
func Pipeline(mode SwapMode) []Stage {
	return []Stage{
		gridStage{},
		prefixStage{},
		scatterStage{},
		reorderStage{},
		swapStage{mode: mode},
		gravityStage{},
		densityStage{},
		pressureStage{},
		pressureForceStage{},
		viscosityStage{},
		integrateStage{},
	}
}

//StageNames lists the stage names of a pipeline
func StageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name()
	}
	return names
}

func roles(r ...D.Role) []D.Role { return r }

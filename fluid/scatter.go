package fluid

import (
	D "diesel.com/gridsph/device"
)

//scatterStage places each particle ID in its cell's run of the sorted ID array.
//The per cell cursor hands out slots start[c]+k with an atomic fetch-and-add,
//so the slots used by cell c are exactly [start[c], start[c]+count[c]).
type scatterStage struct{}

func (scatterStage) Name() string      { return "scatter" }
func (scatterStage) Reads() []D.Role   { return roles(RoleCellIndex, RoleCellStart) }
func (scatterStage) Writes() []D.Role  { return roles(RoleSortedID, RoleCellCursor) }
func (scatterStage) Scratch() []D.Role { return roles(RoleCellCursor) }

func (scatterStage) Encode(enc *D.Encoder, f *Frame) error {
	cellIndex := f.u32(RoleCellIndex)
	start := f.u32(RoleCellStart)
	sorted := f.u32(RoleSortedID)
	cursor := f.Registry.Resolve(RoleCellCursor)

	enc.Dispatch(D.NewPipeline("scatter", func(i int) {
		c := cellIndex[i]
		k := cursor.AtomicAdd(int(c), 1)
		sorted[start[c]+k] = uint32(i)
	}), f.Count())
	return nil
}

//reorderStage gathers particle state into grid order: out[i] = in[sorted[i]]
type reorderStage struct{}

func (reorderStage) Name() string { return "reorder" }
func (reorderStage) Reads() []D.Role {
	return roles(RoleSortedID, RolePosition, RoleVelocity)
}
func (reorderStage) Writes() []D.Role  { return roles(RolePositionOut, RoleVelocityOut) }
func (reorderStage) Scratch() []D.Role { return nil }

func (reorderStage) Encode(enc *D.Encoder, f *Frame) error {
	sorted := f.u32(RoleSortedID)
	posIn, velIn := f.f32(RolePosition), f.f32(RoleVelocity)
	posOut, velOut := f.f32(RolePositionOut), f.f32(RoleVelocityOut)

	enc.Dispatch(D.NewPipeline("reorder", func(i int) {
		src := int(sorted[i]) * 4
		dst := i * 4
		copy(posOut[dst:dst+4], posIn[src:src+4])
		copy(velOut[dst:dst+4], velIn[src:src+4])
	}), f.Count())
	return nil
}

package geometry

import (
	"fmt"

	Vec "diesel.com/gridsph/vector"
)

//diesel geometry library - axis aligned boundary used for particle containment
//checks and the wire frame outline drawn around the fluid

//AABB - axis aligned box
type AABB struct {
	Min Vec.Vec32
	Max Vec.Vec32
}

//Centered box of width/height/depth around origin o
func Box(w float32, h float32, d float32, o Vec.Vec32) AABB {
	half := Vec.Vec32{w / 2, h / 2, d / 2}
	return AABB{Min: Vec.Sub(o, half), Max: Vec.Add(o, half)}
}

func (b AABB) Size() Vec.Vec32 {
	return Vec.Sub(b.Max, b.Min)
}

func (b AABB) Center() Vec.Vec32 {
	return Vec.Scale(Vec.Add(b.Min, b.Max), 0.5)
}

//Contains reports whether p lies inside the box grown by tol on every side
func (b AABB) Contains(p Vec.Vec32, tol float32) bool {
	for a := 0; a < 3; a++ {
		if p[a] < b.Min[a]-tol || p[a] > b.Max[a]+tol {
			return false
		}
	}
	return true
}

//Clamp p onto the box. The returned mask has bit a set when axis a was clamped.
func (b AABB) Clamp(p Vec.Vec32) (Vec.Vec32, uint8) {
	var hit uint8
	for a := 0; a < 3; a++ {
		if p[a] < b.Min[a] {
			p[a] = b.Min[a]
			hit |= 1 << uint(a)
		} else if p[a] > b.Max[a] {
			p[a] = b.Max[a]
			hit |= 1 << uint(a)
		}
	}
	return p, hit
}

//Corners in LBB, RBB, RTB, LTB, LBF, RBF, RTF, LTF order
//(Left/Right x, Bottom/Top y, Back/Front z)
func (b AABB) Corners() [8]Vec.Vec32 {
	lo, hi := b.Min, b.Max
	return [8]Vec.Vec32{
		{lo[0], lo[1], lo[2]},
		{hi[0], lo[1], lo[2]},
		{hi[0], hi[1], lo[2]},
		{lo[0], hi[1], lo[2]},
		{lo[0], lo[1], hi[2]},
		{hi[0], lo[1], hi[2]},
		{hi[0], hi[1], hi[2]},
		{lo[0], hi[1], hi[2]},
	}
}

//Line list indices into Corners: back ring, front ring, then the 4 struts
var WireIndices = [24]uint32{
	0, 1, 1, 2, 2, 3, 3, 0,
	4, 5, 5, 6, 6, 7, 7, 4,
	0, 4, 1, 5, 2, 6, 3, 7,
}

//WireBox - corner vertices (x, y, z, 1) and line indices for drawing the outline
func (b AABB) WireBox() ([]float32, []uint32) {
	corners := b.Corners()
	verts := make([]float32, 0, len(corners)*4)
	for _, c := range corners {
		verts = append(verts, c[0], c[1], c[2], 1)
	}
	idx := make([]uint32, len(WireIndices))
	copy(idx, WireIndices[:])
	return verts, idx
}

func (b AABB) String() string {
	return fmt.Sprintf("[%s .. %s]", b.Min.String(), b.Max.String())
}

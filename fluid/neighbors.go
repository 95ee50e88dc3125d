package fluid

import (
	V "diesel.com/gridsph/vector"
)

//neighborWalk visits the particles in the 27 cells around a position.
//Positions must be in grid order, start/count index runs of that order.
type neighborWalk struct {
	geo   GridGeometry
	start []uint32
	count []uint32
	pos   []float32
	h2    float32
}

func newNeighborWalk(f *Frame) neighborWalk {
	return neighborWalk{
		geo:   f.Grid,
		start: f.u32(RoleCellStart),
		count: f.u32(RoleCellCount),
		pos:   f.f32(RolePosition),
		h2:    f.Settings.Kernels.H2,
	}
}

//visit calls fn for every particle j with |p - x_j|^2 < h^2, self included.
//d is p - x_j.
func (w *neighborWalk) visit(p V.Vec32, fn func(j int, d V.Vec32, r2 float32)) {
	c := w.geo.Coords(p)
	var lo, hi [3]int
	for a := 0; a < 3; a++ {
		lo[a], hi[a] = c[a]-1, c[a]+1
		if lo[a] < 0 {
			lo[a] = 0
		}
		if hi[a] > w.geo.Counts[a]-1 {
			hi[a] = w.geo.Counts[a] - 1
		}
	}

	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				cell := w.geo.Linear([3]int{x, y, z})
				first := int(w.start[cell])
				last := first + int(w.count[cell])
				for j := first; j < last; j++ {
					d := V.Sub(p, V.Load(w.pos, j))
					r2 := V.LengthSq(d)
					if r2 < w.h2 {
						fn(j, d, r2)
					}
				}
			}
		}
	}
}

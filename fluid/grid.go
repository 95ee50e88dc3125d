package fluid

import (
	"fmt"
	"math"

	D "diesel.com/gridsph/device"
	V "diesel.com/gridsph/vector"
)

//GridGeometry - uniform grid over the box with cell edge equal to the
//smoothing radius, so every neighbor within h sits in the 27 surrounding cells
type GridGeometry struct {
	CellSize float32
	Counts   [3]int //Cells along x, y, z
	Cells    int
	Min      V.Vec32 //Box minimum corner
}

//NewGridGeometry - counts per axis are ceil(dimension / h)
func NewGridGeometry(box Box, h float32) (GridGeometry, error) {
	if !(h > 0) {
		return GridGeometry{}, fmt.Errorf("cell size %g: %w", h, ErrInvalidConfig)
	}
	g := GridGeometry{CellSize: h, Min: box.Min(), Cells: 1}
	dims := [3]float32{box.Width, box.Height, box.Depth}
	for a := 0; a < 3; a++ {
		c := int(math.Ceil(float64(dims[a] / h)))
		if c < 1 {
			c = 1
		}
		g.Counts[a] = c
		g.Cells *= c
	}
	if g.Cells <= 0 || g.Cells > math.MaxInt32 {
		return GridGeometry{}, fmt.Errorf("grid %v over box %v: %w", g.Counts, box, ErrInvalidConfig)
	}
	return g, nil
}

//Coords of the cell containing p, clamped into the grid
func (g *GridGeometry) Coords(p V.Vec32) [3]int {
	var c [3]int
	for a := 0; a < 3; a++ {
		f := float64((p[a] - g.Min[a]) / g.CellSize)
		v := 0
		if f > 0 {
			v = int(math.Floor(f))
		}
		if v >= g.Counts[a] {
			v = g.Counts[a] - 1
		}
		c[a] = v
	}
	return c
}

//Linear index x + y*cx + z*cx*cy
func (g *GridGeometry) Linear(c [3]int) int {
	return c[0] + c[1]*g.Counts[0] + c[2]*g.Counts[0]*g.Counts[1]
}

//CellIndex of position p
func (g *GridGeometry) CellIndex(p V.Vec32) int {
	return g.Linear(g.Coords(p))
}

func (g GridGeometry) String() string {
	return fmt.Sprintf("%dx%dx%d cells of %.4g", g.Counts[0], g.Counts[1], g.Counts[2], g.CellSize)
}

//gridStage assigns each particle a cell and counts particles per cell
type gridStage struct{}

func (gridStage) Name() string      { return "grid" }
func (gridStage) Reads() []D.Role   { return roles(RolePosition) }
func (gridStage) Writes() []D.Role  { return roles(RoleCellIndex, RoleCellCount) }
func (gridStage) Scratch() []D.Role { return roles(RoleCellCount) }

func (gridStage) Encode(enc *D.Encoder, f *Frame) error {
	pos := f.f32(RolePosition)
	cellIndex := f.u32(RoleCellIndex)
	counts := f.Registry.Resolve(RoleCellCount)
	geo := f.Grid

	enc.Dispatch(D.NewPipeline("grid", func(i int) {
		c := geo.CellIndex(V.Load(pos, i))
		cellIndex[i] = uint32(c)
		counts.AtomicAdd(c, 1)
	}), f.Count())
	return nil
}

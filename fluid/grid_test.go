package fluid

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	V "diesel.com/gridsph/vector"
)

func TestGridGeometry(t *testing.T) {
	g, err := NewGridGeometry(Box{32, 4, 16}, 12.5)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 1, 2}, g.Counts)
	assert.Equal(t, 6, g.Cells)
	assert.Equal(t, V.Vec32{-16, -2, -8}, g.Min)

	assert.Equal(t, 0, g.CellIndex(V.Vec32{-16, -2, -8}))
	assert.Equal(t, g.Cells-1, g.CellIndex(V.Vec32{16, 2, 8}))
	assert.Equal(t, 1+0*3+1*3, g.CellIndex(V.Vec32{-3, 0, 5}))

	//Out of domain positions clamp into boundary cells
	assert.Equal(t, [3]int{0, 0, 0}, g.Coords(V.Vec32{-100, -100, -100}))
	assert.Equal(t, [3]int{2, 0, 1}, g.Coords(V.Vec32{100, 100, 100}))

	_, err = NewGridGeometry(Box{32, 4, 16}, 0)
	assert.Error(t, err)
}

func TestGridCoversBox(t *testing.T) {
	box := Box{17, 3, 9}
	g, err := NewGridGeometry(box, 1.3)
	require.NoError(t, err)
	for a, d := range []float32{box.Width, box.Height, box.Depth} {
		assert.GreaterOrEqual(t, float32(g.Counts[a])*g.CellSize, d)
	}

	rnd := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		p := V.Vec32{(rnd.Float32() - 0.5) * 17, (rnd.Float32() - 0.5) * 3, (rnd.Float32() - 0.5) * 9}
		c := g.CellIndex(p)
		assert.True(t, c >= 0 && c < g.Cells)
	}
}

func TestExclusiveScan(t *testing.T) {
	src := []uint32{3, 0, 1, 4, 0}
	dst := make([]uint32, len(src))
	assert.Equal(t, uint32(8), exclusiveScan(dst, src))
	assert.Equal(t, []uint32{0, 3, 3, 4, 8}, dst)

	//In place
	assert.Equal(t, uint32(8), exclusiveScan(src, src))
	assert.Equal(t, []uint32{0, 3, 3, 4, 8}, src)
}

func TestSeedPositions(t *testing.T) {
	box := Box{32, 4, 16}
	half := box.HalfExtents()
	for _, mode := range []Seeding{SeedRandom, SeedLattice} {
		buf := SeedPositions(box, 1234, mode, 5)
		require.Len(t, buf, 1234*4)
		for i := 0; i < 1234; i++ {
			p := V.Load(buf, i)
			for a := 0; a < 3; a++ {
				assert.LessOrEqual(t, p[a], half[a], mode.String())
				assert.GreaterOrEqual(t, p[a], -half[a], mode.String())
			}
			assert.Equal(t, float32(0), buf[i*4+3])
		}
		assert.Equal(t, buf, SeedPositions(box, 1234, mode, 5), "seeded placement is reproducible")
	}

	m, err := ParseSeeding("lattice")
	require.NoError(t, err)
	assert.Equal(t, SeedLattice, m)
	_, err = ParseSeeding("poisson")
	assert.Error(t, err)
}

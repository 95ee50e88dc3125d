package fluid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSphParams(t *testing.T) {
	box := Box{32, 4, 16}
	s, err := DeriveSphParams(box, 5000, DefaultOptions())
	require.NoError(t, err)

	spacing := math.Cbrt(2048.0 / 5000.0)
	h := float64(s.Kernels.H)
	assert.InDelta(t, spacing, s.Spacing, 1e-6)
	assert.GreaterOrEqual(t, h, 1.2*spacing-1e-6)
	assert.LessOrEqual(t, h, 2.2*spacing+1e-6)
	assert.InDelta(t, 40, s.NeighborsEst, 1e-2)

	assert.InEpsilon(t, 2048.0/5000.0, s.Mass, 1e-6)
	assert.InEpsilon(t, 315/(64*math.Pi*math.Pow(h, 9)), s.Kernels.Poly6, 1e-5)
	assert.InEpsilon(t, -45/(math.Pi*math.Pow(h, 6)), s.Kernels.SpikyGrad, 1e-5)
	assert.Equal(t, -s.Kernels.SpikyGrad, s.Kernels.ViscLapl)

	cs := 10 * math.Sqrt(9.81*h)
	assert.InEpsilon(t, cs, s.SoundSpeed, 1e-5)
	assert.InEpsilon(t, cs*cs, s.PressureStiffness, 1e-5)
	dt := 0.85 * math.Min(0.25*h/cs, 0.125*h*h/0.12)
	assert.InEpsilon(t, dt, s.Dt, 1e-5)

	assert.Equal(t, float32(0.1), s.Restitution)
	assert.Equal(t, float32(0.1), s.TangentDamping)
	assert.Equal(t, uint64(0), s.Version)
}

func TestDeriveIdempotent(t *testing.T) {
	a, err := DeriveSphParams(Box{16, 4, 16}, 777, DefaultOptions())
	require.NoError(t, err)
	b, err := DeriveSphParams(Box{16, 4, 16}, 777, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, a.Pack(), b.Pack())
}

func TestDeriveClamp(t *testing.T) {
	box := Box{10, 10, 10}

	wide := DefaultOptions()
	wide.TargetNeighbors = 100
	s, err := DeriveSphParams(box, 1000, wide)
	require.NoError(t, err)
	assert.InEpsilon(t, 2.2*float64(s.Spacing), s.Kernels.H, 1e-5)

	narrow := DefaultOptions()
	narrow.TargetNeighbors = 5
	s, err = DeriveSphParams(box, 1000, narrow)
	require.NoError(t, err)
	assert.InEpsilon(t, 1.2*float64(s.Spacing), s.Kernels.H, 1e-5)
}

func TestDeriveRejects(t *testing.T) {
	opts := DefaultOptions()
	cases := map[string]func() error{
		"zero width": func() error {
			_, err := DeriveSphParams(Box{0, 4, 16}, 10, opts)
			return err
		},
		"negative depth": func() error {
			_, err := DeriveSphParams(Box{32, 4, -1}, 10, opts)
			return err
		},
		"nan height": func() error {
			_, err := DeriveSphParams(Box{32, float32(math.NaN()), 16}, 10, opts)
			return err
		},
		"no particles": func() error {
			_, err := DeriveSphParams(Box{32, 4, 16}, 0, opts)
			return err
		},
		"negative mu": func() error {
			o := opts
			o.Mu = -1
			_, err := DeriveSphParams(Box{32, 4, 16}, 10, o)
			return err
		},
		"restitution above one": func() error {
			o := opts
			o.Restitution = 2
			_, err := DeriveSphParams(Box{32, 4, 16}, 10, o)
			return err
		},
	}
	for name, fn := range cases {
		err := fn()
		assert.True(t, errors.Is(err, ErrInvalidConfig), "%s: %v", name, err)
	}
}

func TestPack(t *testing.T) {
	s, err := DeriveSphParams(Box{32, 4, 16}, 5000, DefaultOptions())
	require.NoError(t, err)
	p := s.Pack()
	assert.Len(t, p, ParamCount)
	assert.Equal(t, s.Mass, p[ParamMass])
	assert.Equal(t, s.Kernels.H, p[ParamH])
	assert.Equal(t, s.Dt, p[ParamDt])
	assert.Equal(t, s.PressureStiffness, p[ParamStiffness])
}

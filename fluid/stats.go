package fluid

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	D "diesel.com/gridsph/device"
	V "diesel.com/gridsph/vector"
)

//Stats - frame diagnostics computed from a readback
type Stats struct {
	Frame            uint64
	Particles        int
	DensityMin       float64
	DensityMax       float64
	DensityMean      float64
	DensityStdDev    float64
	PressureMax      float64
	KineticEnergy    float64
	MaxSpeed         float64
	Escaped          int //Particles outside the box beyond Tolerance
	NonFinite        int
	NegativePressure int
}

//Containment slack for float rounding at the walls
const Tolerance = 1e-4

func (s Stats) String() string {
	return fmt.Sprintf("frame %d: rho[min %.4g mean %.4g max %.4g sd %.3g] pmax %.4g ke %.4g vmax %.4g escaped %d nonfinite %d",
		s.Frame, s.DensityMin, s.DensityMean, s.DensityMax, s.DensityStdDev,
		s.PressureMax, s.KineticEnergy, s.MaxSpeed, s.Escaped, s.NonFinite)
}

//Stats waits for submitted frames and summarises the current state
func (s *Simulation) Stats(ctx context.Context) (Stats, error) {
	frame := s.Frame()
	settings := s.Settings()

	read := func(role D.Role) ([]float32, error) {
		d, err := s.ReadRole(ctx, role)
		return d.F32, err
	}
	density, err := read(RoleDensity)
	if err != nil {
		return Stats{}, err
	}
	pressure, err := read(RolePressure)
	if err != nil {
		return Stats{}, err
	}
	pos, err := s.Positions(ctx)
	if err != nil {
		return Stats{}, err
	}
	vel, err := s.Velocities(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Summarize(&settings, pos, vel, density, pressure)
	st.Frame = frame
	return st, nil
}

//Summarize computes Stats from host copies of the particle buffers
func Summarize(settings *SphSettings, pos, vel, density, pressure []float32) Stats {
	n := len(density)
	st := Stats{Particles: n}
	if n == 0 {
		return st
	}

	rho := widen(density)
	p := widen(pressure)
	speed := make([]float64, n)
	bounds := settings.Box.Bounds()

	for i := 0; i < n; i++ {
		x := V.Load(pos, i)
		v := V.Load(vel, i)
		if !V.IsFinite(x) || !V.IsFinite(v) || math.IsNaN(rho[i]) || math.IsInf(rho[i], 0) {
			st.NonFinite++
		}
		if !bounds.Contains(x, Tolerance) {
			st.Escaped++
		}
		if p[i] < 0 {
			st.NegativePressure++
		}
		speed[i] = float64(V.Length(v))
	}

	st.DensityMin = floats.Min(rho)
	st.DensityMax = floats.Max(rho)
	st.DensityMean, st.DensityStdDev = stat.MeanStdDev(rho, nil)
	st.PressureMax = floats.Max(p)
	st.MaxSpeed = floats.Max(speed)
	st.KineticEnergy = 0.5 * float64(settings.Mass) * floats.Dot(speed, speed)
	return st
}

func widen(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

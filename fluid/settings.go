package fluid

import (
	"errors"
	"fmt"
	"math"

	G "diesel.com/gridsph/geometry"
	V "diesel.com/gridsph/vector"
)

//ErrInvalidConfig is returned for configurations rejected before allocation
var ErrInvalidConfig = errors.New("invalid fluid configuration")

//Density floor applied wherever a kernel divides by density
const DensityEpsilon = 1e-6

//Box - Fluid domain centered at the origin
type Box struct {
	Width  float32
	Height float32
	Depth  float32
}

func (b Box) Volume() float64 {
	return float64(b.Width) * float64(b.Height) * float64(b.Depth)
}

//HalfExtents of the box along x, y and z
func (b Box) HalfExtents() V.Vec32 {
	return V.Vec32{b.Width / 2, b.Height / 2, b.Depth / 2}
}

//Bounds of the box centered on the origin
func (b Box) Bounds() G.AABB {
	return G.Box(b.Width, b.Height, b.Depth, V.Vec32{})
}

//Min corner of the box
func (b Box) Min() V.Vec32 {
	return V.Scale(b.HalfExtents(), -1)
}

func (b Box) Validate() error {
	if !(b.Width > 0) || !(b.Height > 0) || !(b.Depth > 0) {
		return fmt.Errorf("box %gx%gx%g: every dimension must be positive: %w", b.Width, b.Height, b.Depth, ErrInvalidConfig)
	}
	if math.IsInf(b.Volume(), 0) {
		return fmt.Errorf("box %gx%gx%g: volume overflows: %w", b.Width, b.Height, b.Depth, ErrInvalidConfig)
	}
	return nil
}

func (b Box) String() string {
	return fmt.Sprintf("%gx%gx%g", b.Width, b.Height, b.Depth)
}

//Options - tunables of the parameter derivation. Zero fields are not defaults,
//start from DefaultOptions.
type Options struct {
	RestDensity     float64 //rho0
	TargetNeighbors float64 //Expected neighbors inside h
	Mu              float64 //Dynamic viscosity
	XsphEta         float64 //XSPH velocity smoothing
	Gravity         float64 //g, applied along -y
	CsFactor        float64 //c_s = CsFactor*sqrt(g*h)
	Safety          float64 //CFL safety factor
	TangentDamping  float64 //Tangential velocity loss on wall contact
	Restitution     float64 //Normal velocity kept on wall contact
}

func DefaultOptions() Options {
	return Options{
		RestDensity:     1.0,
		TargetNeighbors: 40,
		Mu:              0.12,
		XsphEta:         0.03,
		Gravity:         9.81,
		CsFactor:        10,
		Safety:          0.85,
		TangentDamping:  0.1,
		Restitution:     0.1,
	}
}

func (o Options) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"rest density", o.RestDensity},
		{"target neighbors", o.TargetNeighbors},
		{"cs factor", o.CsFactor},
		{"safety", o.Safety},
	}
	for _, p := range positive {
		if !(p.v > 0) {
			return fmt.Errorf("%s must be positive, got %g: %w", p.name, p.v, ErrInvalidConfig)
		}
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"mu", o.Mu},
		{"xsph eta", o.XsphEta},
		{"gravity", o.Gravity},
	}
	for _, p := range nonNegative {
		if !(p.v >= 0) {
			return fmt.Errorf("%s must not be negative, got %g: %w", p.name, p.v, ErrInvalidConfig)
		}
	}
	if !(o.TangentDamping >= 0 && o.TangentDamping <= 1) {
		return fmt.Errorf("tangent damping %g outside [0,1]: %w", o.TangentDamping, ErrInvalidConfig)
	}
	if !(o.Restitution >= 0 && o.Restitution <= 1) {
		return fmt.Errorf("restitution %g outside [0,1]: %w", o.Restitution, ErrInvalidConfig)
	}
	return nil
}

//SphSettings - immutable parameter snapshot derived from box and count.
//Version is stamped by the simulation that owns the snapshot.
type SphSettings struct {
	Version uint64
	Box     Box
	Count   int

	RestDensity  float32
	Mass         float32
	Spacing      float32
	NeighborsEst float32

	Kernels KernelSet

	SoundSpeed        float32
	PressureStiffness float32
	Mu                float32
	XsphEta           float32
	Gravity           float32
	TangentDamping    float32
	Restitution       float32

	Dt float32 //Recommended timestep
}

//DeriveSphParams computes a self consistent parameter set for count particles
//in box. It has no side effects.
func DeriveSphParams(box Box, count int, opts Options) (SphSettings, error) {
	if err := box.Validate(); err != nil {
		return SphSettings{}, err
	}
	if count <= 0 {
		return SphSettings{}, fmt.Errorf("particle count %d: %w", count, ErrInvalidConfig)
	}
	if err := opts.Validate(); err != nil {
		return SphSettings{}, err
	}

	vol := box.Volume()
	n := float64(count) / vol
	spacing := math.Cbrt(vol / float64(count))

	//neighbors ~ n*(4/3)*pi*h^3
	h := math.Cbrt(3 * opts.TargetNeighbors / (4 * math.Pi * n))
	h = math.Min(2.2*spacing, math.Max(1.2*spacing, h))

	cs := opts.CsFactor * math.Sqrt(opts.Gravity*h)
	nu := opts.Mu / opts.RestDensity
	dtPress := math.Inf(1)
	if cs > 0 {
		dtPress = 0.25 * h / cs
	}
	dtVisc := 0.125 * h * h / math.Max(nu, 1e-8)
	dt := opts.Safety * math.Min(dtPress, dtVisc)

	s := SphSettings{
		Box:               box,
		Count:             count,
		RestDensity:       float32(opts.RestDensity),
		Mass:              float32(opts.RestDensity / n),
		Spacing:           float32(spacing),
		NeighborsEst:      float32(n * 4 / 3 * math.Pi * h * h * h),
		Kernels:           NewKernelSet(h),
		SoundSpeed:        float32(cs),
		PressureStiffness: float32(cs * cs),
		Mu:                float32(opts.Mu),
		XsphEta:           float32(opts.XsphEta),
		Gravity:           float32(opts.Gravity),
		TangentDamping:    float32(opts.TangentDamping),
		Restitution:       float32(opts.Restitution),
		Dt:                float32(dt),
	}
	if s.Kernels.H <= 0 || math.IsInf(float64(s.Kernels.Poly6), 0) || s.Dt <= 0 {
		return SphSettings{}, fmt.Errorf("box %v with %d particles gives degenerate h=%g: %w", box, count, h, ErrInvalidConfig)
	}
	return s, nil
}

//Layout of the packed parameter block uploaded to the sph_params buffer
const (
	ParamMass = iota
	ParamH
	ParamH2
	ParamPoly6
	ParamSpikyGrad
	ParamViscLapl
	ParamRestDensity
	ParamStiffness
	ParamMu
	ParamXsphEta
	ParamGravity
	ParamTangentDamping
	ParamRestitution
	ParamDt
	ParamCount
)

//Pack flattens the snapshot in ParamXxx order
func (s *SphSettings) Pack() []float32 {
	p := make([]float32, ParamCount)
	p[ParamMass] = s.Mass
	p[ParamH] = s.Kernels.H
	p[ParamH2] = s.Kernels.H2
	p[ParamPoly6] = s.Kernels.Poly6
	p[ParamSpikyGrad] = s.Kernels.SpikyGrad
	p[ParamViscLapl] = s.Kernels.ViscLapl
	p[ParamRestDensity] = s.RestDensity
	p[ParamStiffness] = s.PressureStiffness
	p[ParamMu] = s.Mu
	p[ParamXsphEta] = s.XsphEta
	p[ParamGravity] = s.Gravity
	p[ParamTangentDamping] = s.TangentDamping
	p[ParamRestitution] = s.Restitution
	p[ParamDt] = s.Dt
	return p
}

func (s *SphSettings) String() string {
	return fmt.Sprintf("v%d box=%v n=%d h=%.4g mass=%.4g k=%.4g dt=%.4g neighbors~%.1f",
		s.Version, s.Box, s.Count, s.Kernels.H, s.Mass, s.PressureStiffness, s.Dt, s.NeighborsEst)
}

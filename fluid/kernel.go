package fluid

import (
	"math"
)

//KernelSet - smoothing kernels sharing one support radius h.
//Poly6 for density, spiky gradient for pressure (negative sign convention),
//viscosity laplacian for diffusion. Powers of H are precomputed.
type KernelSet struct {
	H  float32
	H2 float32
	H3 float32
	H6 float32
	H9 float32

	Poly6     float32 //315/(64 pi h^9)
	SpikyGrad float32 //-45/(pi h^6)
	ViscLapl  float32 //45/(pi h^6)
}

func NewKernelSet(radius float64) KernelSet {
	h2 := radius * radius
	h3 := h2 * radius
	h6 := h3 * h3
	h9 := h6 * h3
	return KernelSet{
		H:         float32(radius),
		H2:        float32(h2),
		H3:        float32(h3),
		H6:        float32(h6),
		H9:        float32(h9),
		Poly6:     float32(315 / (64 * math.Pi * h9)),
		SpikyGrad: float32(-45 / (math.Pi * h6)),
		ViscLapl:  float32(45 / (math.Pi * h6)),
	}
}

//W - poly6 weight for squared distance r2, zero outside the support
func (K *KernelSet) W(r2 float32) float32 {
	if r2 >= K.H2 {
		return 0.0
	}
	x := K.H2 - r2
	return K.Poly6 * x * x * x
}

//GradW - signed radial magnitude of the spiky gradient at distance r
func (K *KernelSet) GradW(r float32) float32 {
	if r >= K.H {
		return 0.0
	}
	x := K.H - r
	return K.SpikyGrad * x * x
}

//LaplW - viscosity laplacian at distance r
func (K *KernelSet) LaplW(r float32) float32 {
	if r >= K.H {
		return 0.0
	}
	return K.ViscLapl * (K.H - r)
}

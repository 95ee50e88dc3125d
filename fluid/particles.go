package fluid

import (
	"fmt"
	"math"
	"math/rand"

	D "diesel.com/gridsph/device"
	V "diesel.com/gridsph/vector"
)

//ParticleBuffers - two generations of position and velocity state.
//In is authoritative, Out is the gather target. Flip exchanges the two by
//rebinding roles, Gen tracks which physical pair is current.
type ParticleBuffers struct {
	reg *D.Registry
	gen uint32
}

func NewParticleBuffers(reg *D.Registry) *ParticleBuffers {
	return &ParticleBuffers{reg: reg}
}

//In returns the authoritative position and velocity buffers
func (p *ParticleBuffers) In() (pos, vel *D.Buffer) {
	return p.reg.Resolve(RolePosition), p.reg.Resolve(RoleVelocity)
}

//Out returns the ping-pong target buffers
func (p *ParticleBuffers) Out() (pos, vel *D.Buffer) {
	return p.reg.Resolve(RolePositionOut), p.reg.Resolve(RoleVelocityOut)
}

//Flip makes the Out pair authoritative
func (p *ParticleBuffers) Flip() error {
	if err := p.reg.Exchange(RolePosition, RolePositionOut); err != nil {
		return err
	}
	if err := p.reg.Exchange(RoleVelocity, RoleVelocityOut); err != nil {
		return err
	}
	p.gen ^= 1
	return nil
}

func (p *ParticleBuffers) Gen() uint32 { return p.gen }

//Seeding selects how initial positions are generated
type Seeding int

const (
	SeedRandom  Seeding = iota //Uniform random inside the box
	SeedLattice                //Staggered lattice at the mean spacing
)

func (s Seeding) String() string {
	switch s {
	case SeedRandom:
		return "random"
	case SeedLattice:
		return "lattice"
	}
	return fmt.Sprintf("Seeding(%d)", int(s))
}

//ParseSeeding is the inverse of Seeding.String
func ParseSeeding(s string) (Seeding, error) {
	switch s {
	case "random", "":
		return SeedRandom, nil
	case "lattice":
		return SeedLattice, nil
	}
	return 0, fmt.Errorf("unknown seeding %q: %w", s, ErrInvalidConfig)
}

//SeedPositions returns count padded positions inside box
func SeedPositions(box Box, count int, mode Seeding, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	buf := make([]float32, count*V.Lanes)
	min := box.Min()
	dims := V.Vec32{box.Width, box.Height, box.Depth}

	switch mode {
	case SeedLattice:
		spacing := float32(math.Cbrt(box.Volume() / float64(count)))
		var cells [3]int
		for a := 0; a < 3; a++ {
			cells[a] = int(math.Ceil(float64(dims[a] / spacing)))
			if cells[a] < 1 {
				cells[a] = 1
			}
		}
		//Fill along y last so the fluid settles from the floor up
		step := V.Vec32{dims[0] / float32(cells[0]), dims[1] / float32(cells[1]), dims[2] / float32(cells[2])}
		i := 0
		for y := 0; y < cells[1] && i < count; y++ {
			for z := 0; z < cells[2] && i < count; z++ {
				for x := 0; x < cells[0] && i < count; x++ {
					p := V.Vec32{
						min[0] + step[0]*(float32(x)+0.5),
						min[1] + step[1]*(float32(y)+0.5),
						min[2] + step[2]*(float32(z)+0.5),
					}
					//Stagger alternate sites to break the lattice symmetry
					if (x+y+z)%2 == 1 {
						for a := 0; a < 3; a++ {
							p[a] += (rng.Float32() - 0.5) * 0.1 * step[a]
						}
					}
					V.Store(buf, i, p)
					i++
				}
			}
		}
		//More particles than sites: the rest fall back to random placement
		for ; i < count; i++ {
			V.Store(buf, i, randomIn(rng, min, dims))
		}
	default:
		for i := 0; i < count; i++ {
			V.Store(buf, i, randomIn(rng, min, dims))
		}
	}
	return buf
}

func randomIn(rng *rand.Rand, min, dims V.Vec32) V.Vec32 {
	return V.Vec32{
		min[0] + rng.Float32()*dims[0],
		min[1] + rng.Float32()*dims[1],
		min[2] + rng.Float32()*dims[2],
	}
}

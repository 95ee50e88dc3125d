package fluid

import (
	"fmt"

	D "diesel.com/gridsph/device"
)

//SwapMode - how the gathered state becomes authoritative
type SwapMode int

const (
	SwapFlip SwapMode = iota //Rebind roles on the host, no device work
	SwapCopy                 //Copy out -> in on the device every frame
)

func (m SwapMode) String() string {
	switch m {
	case SwapFlip:
		return "flip"
	case SwapCopy:
		return "copy"
	}
	return fmt.Sprintf("SwapMode(%d)", int(m))
}

func ParseSwapMode(s string) (SwapMode, error) {
	switch s {
	case "flip", "":
		return SwapFlip, nil
	case "copy":
		return SwapCopy, nil
	}
	return 0, fmt.Errorf("unknown swap mode %q: %w", s, ErrInvalidConfig)
}

type swapStage struct {
	mode SwapMode
}

func (swapStage) Name() string { return "swap" }
func (swapStage) Reads() []D.Role {
	return roles(RolePositionOut, RoleVelocityOut)
}
func (swapStage) Writes() []D.Role  { return roles(RolePosition, RoleVelocity) }
func (swapStage) Scratch() []D.Role { return nil }

func (s swapStage) Encode(enc *D.Encoder, f *Frame) error {
	if s.mode == SwapFlip {
		//Commands already recorded hold their buffers, every stage encoded
		//from here on resolves position/velocity to the gathered pair
		return f.Particles.Flip()
	}

	posOut, velOut := f.f32(RolePositionOut), f.f32(RoleVelocityOut)
	posIn, velIn := f.f32(RolePosition), f.f32(RoleVelocity)
	enc.Dispatch(D.NewPipeline("swap", func(i int) {
		o := i * 4
		copy(posIn[o:o+4], posOut[o:o+4])
		copy(velIn[o:o+4], velOut[o:o+4])
	}), f.Count())
	return nil
}

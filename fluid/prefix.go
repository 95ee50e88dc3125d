package fluid

import (
	D "diesel.com/gridsph/device"
)

//Cells scanned by one invocation of the block pass
const ScanBlock = 256

//ScanBlocks returns how many blocks cover cells
func ScanBlocks(cells int) int {
	return (cells + ScanBlock - 1) / ScanBlock
}

//exclusiveScan writes the exclusive prefix sum of src into dst and returns the total
func exclusiveScan(dst, src []uint32) uint32 {
	var sum uint32
	for i, c := range src {
		dst[i] = sum
		sum += c
	}
	return sum
}

//prefixStage turns cell counts into cell start offsets with a three pass
//hierarchical scan: scan each block, scan the block totals, add the block
//offset back into every cell
type prefixStage struct{}

func (prefixStage) Name() string      { return "prefix" }
func (prefixStage) Reads() []D.Role   { return roles(RoleCellCount) }
func (prefixStage) Writes() []D.Role  { return roles(RoleCellStart, RoleBlockSums) }
func (prefixStage) Scratch() []D.Role { return nil }

func (prefixStage) Encode(enc *D.Encoder, f *Frame) error {
	encodeScan(enc, f.u32(RoleCellCount), f.u32(RoleCellStart), f.u32(RoleBlockSums))
	return nil
}

//encodeScan records start = exclusive scan of counts. sums needs one slot per block.
func encodeScan(enc *D.Encoder, counts, start, sums []uint32) {
	cells := len(counts)
	blocks := ScanBlocks(cells)

	enc.Dispatch(D.NewPipeline("prefix/blocks", func(b int) {
		lo := b * ScanBlock
		hi := lo + ScanBlock
		if hi > cells {
			hi = cells
		}
		sums[b] = exclusiveScan(start[lo:hi], counts[lo:hi])
	}), blocks)

	enc.Dispatch(D.NewPipeline("prefix/sums", func(int) {
		exclusiveScan(sums[:blocks], sums[:blocks])
	}), 1)

	enc.Dispatch(D.NewPipeline("prefix/propagate", func(i int) {
		start[i] += sums[i/ScanBlock]
	}), cells)
}

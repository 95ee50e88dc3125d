package utils

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	V "diesel.com/gridsph/vector"
)

//Application Specific Positional Data Transfer, padded particle lanes to a
//tightly packed xyz stream, Unsafe Access.
//This is intended for a mapped graphics buffer but may be streamed to any pointer
//with room for count Vec32 values.
func TransferPositionData(graphicsPtr unsafe.Pointer, lanes []float32, count int) error {
	if count <= 0 || count*V.Lanes > len(lanes) {
		return fmt.Errorf("size of positional data buffer transfer out of bounds: %d of %d", count, len(lanes)/V.Lanes)
	}
	if graphicsPtr == nil {
		return fmt.Errorf("no valid pointer to graphics memory location")
	}

	dst := unsafe.Slice((*V.Vec32)(graphicsPtr), count)
	for i := 0; i < count; i++ {
		dst[i] = V.Load(lanes, i)
	}
	return nil
}

//PackXYZ drops the padding lane, returning 3*count floats for a vertex buffer
func PackXYZ(lanes []float32) []float32 {
	n := len(lanes) / V.Lanes
	out := make([]float32, n*3)
	for i := 0; i < n; i++ {
		copy(out[i*3:i*3+3], lanes[i*V.Lanes:i*V.Lanes+3])
	}
	return out
}

//Float32Bytes encodes values little-endian, 4 bytes each, appending to dst
func Float32Bytes(dst []byte, values []float32) []byte {
	start := len(dst)
	if cap(dst)-start < len(values)*4 {
		grown := make([]byte, start, start+len(values)*4)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:start+len(values)*4]
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[start+i*4:], math.Float32bits(v))
	}
	return dst
}

//BytesFloat32 decodes a little-endian float32 stream
func BytesFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("float32 stream of %d bytes is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeFloat32s packs a dense vector into a compact little-endian BLOB
// instead of JSON, since every row carries one and dimensions run into the
// hundreds.
func encodeFloat32s(vec []float32) ([]byte, error) {
	if vec == nil {
		return nil, nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf, nil
}

func decodeFloat32s(buf []byte) ([]float32, error) {
	if buf == nil {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("store: dense vector blob length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

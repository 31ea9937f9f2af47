package store

import (
	"encoding/binary"
	"math"

	"github.com/quarry-dev/quarry/internal/domain"
)

// EncodeVector serializes a float32 vector as little-endian bytes, the layout
// both the Redis FT.SEARCH BLOB parameter and the sqlite BLOB column use.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes little-endian bytes back into a float32 vector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, Wrap("codec", "DecodeVector", domain.ErrResponseFormat)
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
